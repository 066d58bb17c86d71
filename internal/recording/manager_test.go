package recording

import (
	"errors"
	"testing"

	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/registry"
	"github.com/blackwell-systems/cubby/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *registry.Registry) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	reg, err := registry.Load(st)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	return NewManager(reg), reg
}

func wildcard(t *testing.T, pattern string) domain.Suffix {
	t.Helper()
	s, err := domain.ParseSuffix("*" + pattern)
	if err != nil {
		t.Fatalf("ParseSuffix(*%s) error = %v", pattern, err)
	}
	return s
}

func TestStartRequiresContainer(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Start("missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("Start(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	m, reg := newTestManager(t)
	c, err := reg.Create(registry.Details{Name: "Work"}, false, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := m.Start(c.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(c.ID); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRecording", err)
	}
}

func TestCaptureIdempotent(t *testing.T) {
	m, reg := newTestManager(t)
	c, _ := reg.Create(registry.Details{Name: "Work"}, false, nil)
	if err := m.Start(c.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := m.Capture(c.ID, wildcard(t, "example.com")); err != nil {
			t.Fatalf("Capture() error = %v", err)
		}
	}
	if err := m.Capture(c.ID, wildcard(t, "example.net")); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	pending, err := m.Pending(c.ID)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Pending() = %v, want 2 distinct suffixes", pending)
	}
	// Discovery order is preserved.
	if pending[0].Pattern != "example.com" || pending[1].Pattern != "example.net" {
		t.Errorf("Pending() order = %v", pending)
	}
}

func TestCaptureWithoutSession(t *testing.T) {
	m, reg := newTestManager(t)
	c, _ := reg.Create(registry.Details{Name: "Work"}, false, nil)
	if err := m.Capture(c.ID, wildcard(t, "example.com")); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Capture() error = %v, want ErrNotRecording", err)
	}
}

func TestConfirmMergesAndDropsConflicts(t *testing.T) {
	m, reg := newTestManager(t)
	other, err := reg.Create(registry.Details{Name: "Other"}, false,
		[]domain.Suffix{wildcard(t, "taken.example")})
	if err != nil {
		t.Fatalf("Create(other) error = %v", err)
	}
	_ = other

	c, _ := reg.Create(registry.Details{Name: "Work"}, false, nil)
	if err := m.Start(c.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.Capture(c.ID, wildcard(t, "example.com"))
	m.Capture(c.ID, wildcard(t, "taken.example")) // conflicts, dropped silently

	added, err := m.Confirm(c.ID)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if added != 1 {
		t.Errorf("Confirm() added = %d, want 1", added)
	}

	got, _ := reg.Get(c.ID)
	if len(got.Suffixes) != 1 || got.Suffixes[0].String() != "*example.com" {
		t.Errorf("container suffixes after confirm = %v", got.Suffixes)
	}

	// Confirm ends the session.
	if m.Active(c.ID) {
		t.Error("session still active after confirm")
	}
	if _, err := m.Confirm(c.ID); !errors.Is(err, ErrNotRecording) {
		t.Errorf("second Confirm() error = %v, want ErrNotRecording", err)
	}
}

func TestCancelDiscards(t *testing.T) {
	m, reg := newTestManager(t)
	c, _ := reg.Create(registry.Details{Name: "Work"}, false, nil)
	if err := m.Start(c.ID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.Capture(c.ID, wildcard(t, "example.com"))

	if err := m.Cancel(c.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	got, _ := reg.Get(c.ID)
	if len(got.Suffixes) != 0 {
		t.Errorf("cancel leaked rules: %v", got.Suffixes)
	}

	// Recording can start again after cancel.
	if err := m.Start(c.ID); err != nil {
		t.Fatalf("Start() after cancel error = %v", err)
	}
}

func TestIndependentSessions(t *testing.T) {
	m, reg := newTestManager(t)
	a, _ := reg.Create(registry.Details{Name: "A"}, false, nil)
	b, _ := reg.Create(registry.Details{Name: "B"}, false, nil)

	if err := m.Start(a.ID); err != nil {
		t.Fatalf("Start(a) error = %v", err)
	}
	if err := m.Start(b.ID); err != nil {
		t.Fatalf("Start(b) error = %v", err)
	}
	m.Capture(a.ID, wildcard(t, "a.example"))
	m.Capture(b.ID, wildcard(t, "b.example"))

	if err := m.Cancel(a.ID); err != nil {
		t.Fatalf("Cancel(a) error = %v", err)
	}
	pending, err := m.Pending(b.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("Pending(b) = %v, %v", pending, err)
	}
}
