package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/registry"
)

func testContainer(t *testing.T, id, name, color string, rules ...string) *registry.Container {
	t.Helper()
	suffixes := make([]domain.Suffix, 0, len(rules))
	for _, r := range rules {
		s, err := domain.ParseSuffix(r)
		if err != nil {
			t.Fatalf("ParseSuffix(%q) error = %v", r, err)
		}
		suffixes = append(suffixes, s)
	}
	return &registry.Container{
		ID:        id,
		Details:   registry.Details{Name: name, Color: color, Icon: "circle"},
		CreatedAt: time.Now().Add(-48 * time.Hour),
		Suffixes:  suffixes,
	}
}

func TestRenderContainerTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name       string
		containers []*registry.Container
		contains   []string
	}{
		{
			name:       "empty",
			containers: nil,
			contains:   []string{"No containers defined."},
		},
		{
			name: "listing",
			containers: []*registry.Container{
				testContainer(t, "cubby-1", "Work", "blue", "*example.com"),
				testContainer(t, "cubby-2", "Shopping", "green"),
			},
			contains: []string{"cubby-1", "Work", "blue", "2 days ago", "Shopping"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderContainerTable(tt.containers, func(string) bool { return false })
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}

func TestRenderContainerTableRecordingStatus(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	c := testContainer(t, "cubby-1", "Research", "purple")
	got := RenderContainerTable([]*registry.Container{c},
		func(id string) bool { return id == "cubby-1" })
	if !strings.Contains(got, "recording") {
		t.Errorf("output missing recording status:\n%s", got)
	}
}

func TestRenderRuleTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	c := testContainer(t, "cubby-1", "Work", "blue",
		"*example.com", "login.example.net", "!mail.example.com")

	got := RenderRuleTable(c)
	for _, want := range []string{"*example.com", "login.example.net", "!mail.example.com", "exclusion"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	empty := testContainer(t, "cubby-2", "Empty", "red")
	if got := RenderRuleTable(empty); !strings.Contains(got, "no rules") {
		t.Errorf("empty output = %q", got)
	}
}

func TestRenderPSLStatus(t *testing.T) {
	got := RenderPSLStatus(9000, time.Now().Add(-3*time.Hour), "bundled snapshot")
	for _, want := range []string{"9000 entries", "3 hours ago", "bundled snapshot"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
}

func TestRenderMigrationReport(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	report := registry.MigrationReport{
		Imported: 3,
		Rejected: 1,
		Failures: []registry.MigrationFailure{
			{Name: "Broken", Reason: "malformed suffix rule"},
		},
	}
	got := RenderMigrationReport(report)
	for _, want := range []string{"Imported: 3", "Rejected: 1", "Broken", "malformed suffix rule"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "never"},
		{"just now", now.Add(-10 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5 minutes ago"},
		{"singular hour", now.Add(-90 * time.Minute), "1 hour ago"},
		{"days", now.Add(-3 * 24 * time.Hour), "3 days ago"},
		{"weeks", now.Add(-2 * 7 * 24 * time.Hour), "2 weeks ago"},
		{"years", now.Add(-2 * 365 * 24 * time.Hour), "2 years ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatRelativeTime(tt.t); got != tt.want {
				t.Errorf("formatRelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"a-very-long-container-name", 10, "a-very-..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}
