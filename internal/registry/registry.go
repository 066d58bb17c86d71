// Package registry owns the set of containers and their suffix rules,
// preserving the invariant that no rule exists twice anywhere after
// normalization.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/match"
	"github.com/blackwell-systems/cubby/internal/store"
)

var (
	// ErrDuplicateRule is returned when an edit would give two
	// containers (or one container twice) the same normalized rule.
	ErrDuplicateRule = errors.New("duplicate suffix rule")

	// ErrNotFound is returned for operations on unknown container ids.
	ErrNotFound = errors.New("container not found")
)

// Container is an isolated browsing identity with its suffix rules.
// Values handed out by the registry are copies; mutations go through
// registry operations.
type Container struct {
	ID string
	Details
	Temporary bool
	CreatedAt time.Time
	Suffixes  []domain.Suffix
}

// clone returns a deep copy safe to hand to callers.
func (c *Container) clone() *Container {
	out := *c
	out.Suffixes = append([]domain.Suffix(nil), c.Suffixes...)
	return &out
}

// HasSuffix reports whether the container holds the exact rule.
func (c *Container) HasSuffix(s domain.Suffix) bool {
	for _, existing := range c.Suffixes {
		if existing == s {
			return true
		}
	}
	return false
}

// Registry holds all containers in memory and mirrors every mutation
// to the store. Mutations are serialized by a single writer lock;
// reads used by in-flight match decisions take the read side.
type Registry struct {
	mu         sync.RWMutex
	st         *store.Store
	containers map[string]*Container
	order      []string
	ruleOwner  map[string]string // canonical suffix -> container id
}

// Load builds a registry from the store's persisted state.
func Load(st *store.Store) (*Registry, error) {
	r := &Registry{
		st:         st,
		containers: make(map[string]*Container),
		ruleOwner:  make(map[string]string),
	}

	stored, err := st.ListContainers()
	if err != nil {
		return nil, fmt.Errorf("loading containers: %w", err)
	}
	for _, sc := range stored {
		c := &Container{
			ID:        sc.ID,
			Details:   Details{Name: sc.Name, Color: sc.Color, Icon: sc.Icon},
			Temporary: sc.Temporary,
			CreatedAt: sc.CreatedAt,
		}
		for _, encoded := range sc.Suffixes {
			suffix, err := domain.ParseSuffix(encoded)
			if err != nil {
				return nil, fmt.Errorf("stored rule %q for %s: %w", encoded, sc.ID, err)
			}
			c.Suffixes = append(c.Suffixes, suffix)
			r.ruleOwner[suffix.String()] = c.ID
		}
		r.containers[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// Create makes a new container. It fails with ErrDuplicateRule if any
// rule collides with an existing container's rule after normalization,
// leaving the registry unchanged.
func (r *Registry) Create(details Details, temporary bool, suffixes []domain.Suffix) (*Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(suffixes))
	for _, suffix := range suffixes {
		key := suffix.String()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, key)
		}
		if owner, taken := r.ruleOwner[key]; taken {
			return nil, fmt.Errorf("%w: %s already owned by %s", ErrDuplicateRule, key, owner)
		}
		seen[key] = struct{}{}
	}

	c := &Container{
		ID:        "cubby-" + uuid.NewString(),
		Details:   details.fillDefaults(),
		Temporary: temporary,
		CreatedAt: time.Now().UTC(),
		Suffixes:  append([]domain.Suffix(nil), suffixes...),
	}
	if err := r.st.InsertContainer(storedForm(c)); err != nil {
		return nil, err
	}

	r.containers[c.ID] = c
	r.order = append(r.order, c.ID)
	for _, suffix := range c.Suffixes {
		r.ruleOwner[suffix.String()] = c.ID
	}
	return c.clone(), nil
}

// Get returns a copy of the container, or ErrNotFound.
func (r *Registry) Get(id string) (*Container, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

// List returns copies of all containers in creation order.
func (r *Registry) List() []*Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Container, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.containers[id].clone())
	}
	return out
}

// UpdateDetails replaces the identity fields of a container.
func (r *Registry) UpdateDetails(id string, details Details) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	filled := details.fillDefaults()
	if err := r.st.UpdateContainerDetails(id, filled.Name, filled.Color, filled.Icon, c.Temporary); err != nil {
		return err
	}
	c.Details = filled
	return nil
}

// UpdateRules applies removals before additions, re-validates global
// uniqueness, and fails atomically with ErrDuplicateRule leaving the
// container unchanged.
func (r *Registry) UpdateRules(id string, add, remove []domain.Suffix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := make([]domain.Suffix, 0, len(c.Suffixes)+len(add))
	removed := make(map[string]struct{}, len(remove))
	for _, suffix := range remove {
		removed[suffix.String()] = struct{}{}
	}
	for _, suffix := range c.Suffixes {
		if _, drop := removed[suffix.String()]; !drop {
			next = append(next, suffix)
		}
	}

	for _, suffix := range add {
		key := suffix.String()
		if owner, taken := r.ruleOwner[key]; taken {
			if _, wasRemoved := removed[key]; !(wasRemoved && owner == id) {
				return fmt.Errorf("%w: %s already owned by %s", ErrDuplicateRule, key, owner)
			}
		}
		for _, existing := range next {
			if existing.String() == key {
				return fmt.Errorf("%w: %s", ErrDuplicateRule, key)
			}
		}
		next = append(next, suffix)
	}

	encoded := make([]string, len(next))
	for i, suffix := range next {
		encoded[i] = suffix.String()
	}
	if err := r.st.ReplaceRules(id, encoded); err != nil {
		return err
	}

	for _, suffix := range c.Suffixes {
		delete(r.ruleOwner, suffix.String())
	}
	c.Suffixes = next
	for _, suffix := range c.Suffixes {
		r.ruleOwner[suffix.String()] = id
	}
	return nil
}

// Delete removes a container and its rules. Live tabs are not
// touched; reassigning them is the tab coordinator's concern.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.st.DeleteContainer(id); err != nil {
		return err
	}
	for _, suffix := range c.Suffixes {
		delete(r.ruleOwner, suffix.String())
	}
	delete(r.containers, id)
	for i, ordered := range r.order {
		if ordered == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Candidates returns the matcher's view of the current rule sets.
func (r *Registry) Candidates() []match.Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]match.Candidate, 0, len(r.order))
	for _, id := range r.order {
		c := r.containers[id]
		out = append(out, match.Candidate{
			ID:       c.ID,
			Suffixes: append([]domain.Suffix(nil), c.Suffixes...),
		})
	}
	return out
}

// Covered reports whether any rule of any kind applies to the
// normalized host. Used to gate recording captures: a host already
// covered (even by an exclusion) is not worth recording.
func (r *Registry) Covered(host string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.containers {
		for _, suffix := range c.Suffixes {
			if suffix.Matches(host) {
				return true
			}
		}
	}
	return false
}

func storedForm(c *Container) *store.Container {
	encoded := make([]string, len(c.Suffixes))
	for i, suffix := range c.Suffixes {
		encoded[i] = suffix.String()
	}
	return &store.Container{
		ID:        c.ID,
		Name:      c.Name,
		Color:     c.Color,
		Icon:      c.Icon,
		Temporary: c.Temporary,
		CreatedAt: c.CreatedAt,
		Suffixes:  encoded,
	}
}
