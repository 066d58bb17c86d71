// Package recording implements the per-container capture mode that
// observes suffixes visited while a container is active, pending user
// confirmation into permanent rules.
package recording

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/registry"
)

var (
	// ErrAlreadyRecording is returned when a session already exists
	// for the container.
	ErrAlreadyRecording = errors.New("container is already recording")

	// ErrNotRecording is returned for capture/confirm/cancel on a
	// container with no active session.
	ErrNotRecording = errors.New("container is not recording")
)

// session accumulates distinct observed suffixes in discovery order.
type session struct {
	mu       sync.Mutex
	suffixes []domain.Suffix
	seen     map[string]struct{}
}

// Manager tracks at most one recording session per container.
// Sessions for different containers are independent.
type Manager struct {
	mu       sync.Mutex
	reg      *registry.Registry
	sessions map[string]*session
}

// NewManager creates a Manager merging confirmed rules into reg.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		reg:      reg,
		sessions: make(map[string]*session),
	}
}

// Start begins a recording session for the container.
func (m *Manager) Start(containerID string) error {
	if _, err := m.reg.Get(containerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[containerID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRecording, containerID)
	}
	m.sessions[containerID] = &session{seen: make(map[string]struct{})}
	return nil
}

// Active reports whether the container has a session.
func (m *Manager) Active(containerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.sessions[containerID]
	return exists
}

// Capture records an observed suffix. Duplicates are no-ops. Called by
// the tab coordinator, never directly by the UI.
func (m *Manager) Capture(containerID string, suffix domain.Suffix) error {
	s, err := m.session(containerID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := suffix.String()
	if _, dup := s.seen[key]; dup {
		return nil
	}
	s.seen[key] = struct{}{}
	s.suffixes = append(s.suffixes, suffix)
	return nil
}

// Pending returns the captured suffixes in discovery order.
func (m *Manager) Pending(containerID string) ([]domain.Suffix, error) {
	s, err := m.session(containerID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Suffix(nil), s.suffixes...), nil
}

// Confirm merges captured suffixes into the container's rule set and
// ends the session. Recording is advisory, so a capture that now
// conflicts with an existing rule is dropped from the merge silently.
// Returns the number of rules actually added.
func (m *Manager) Confirm(containerID string) (int, error) {
	s, err := m.take(containerID)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, suffix := range s.suffixes {
		err := m.reg.UpdateRules(containerID, []domain.Suffix{suffix}, nil)
		if errors.Is(err, registry.ErrDuplicateRule) {
			continue
		}
		if err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Cancel discards the session and its captures.
func (m *Manager) Cancel(containerID string) error {
	_, err := m.take(containerID)
	return err
}

// Drop removes any session for a container being deleted. Unlike
// Cancel it is a no-op when nothing is recording.
func (m *Manager) Drop(containerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, containerID)
}

func (m *Manager) session(containerID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.sessions[containerID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRecording, containerID)
	}
	return s, nil
}

// take removes and returns the session, ending it.
func (m *Manager) take(containerID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, exists := m.sessions[containerID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRecording, containerID)
	}
	delete(m.sessions, containerID)
	return s, nil
}
