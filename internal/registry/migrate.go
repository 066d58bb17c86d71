package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/cubby/internal/domain"
)

// temporaryNamePrefix marks containers generated by automatic
// temporary-container policies; migration can detect them by name.
const temporaryNamePrefix = "Temporary Container "

// MigrationItem is one identity from an external enumeration, such as
// a browser's exported contextual identities.
type MigrationItem struct {
	CookieStoreID string   `json:"cookie_store_id"`
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Icon          string   `json:"icon"`
	Suffixes      []string `json:"suffixes"`
}

// MigrationReport aggregates per-item outcomes. Migration is
// best-effort: items fail individually and never abort the batch.
type MigrationReport struct {
	Imported int
	Rejected int
	Failures []MigrationFailure
}

// MigrationFailure names the item that was rejected and why.
type MigrationFailure struct {
	Name   string
	Reason string
}

// Migrate bulk-imports containers. Each item independently succeeds or
// is rejected with a malformed or duplicate rule, a duplicate id, or a
// store failure. When detectTemp is set, containers carrying the
// generated temporary name are imported as temporary.
func (r *Registry) Migrate(items []MigrationItem, detectTemp bool) MigrationReport {
	var report MigrationReport
	for _, item := range items {
		if err := r.importItem(item, detectTemp); err != nil {
			report.Rejected++
			report.Failures = append(report.Failures, MigrationFailure{
				Name:   item.Name,
				Reason: err.Error(),
			})
			continue
		}
		report.Imported++
	}
	return report
}

func (r *Registry) importItem(item MigrationItem, detectTemp bool) error {
	suffixes := make([]domain.Suffix, 0, len(item.Suffixes))
	for _, encoded := range item.Suffixes {
		suffix, err := domain.ParseSuffix(encoded)
		if err != nil {
			return err
		}
		suffixes = append(suffixes, suffix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := item.CookieStoreID
	if id == "" {
		id = "cubby-" + uuid.NewString()
	}
	if _, exists := r.containers[id]; exists {
		return fmt.Errorf("%w: container %s already exists", ErrDuplicateRule, id)
	}
	seen := make(map[string]struct{}, len(suffixes))
	for _, suffix := range suffixes {
		key := suffix.String()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, key)
		}
		if owner, taken := r.ruleOwner[key]; taken {
			return fmt.Errorf("%w: %s already owned by %s", ErrDuplicateRule, key, owner)
		}
		seen[key] = struct{}{}
	}

	c := &Container{
		ID:        id,
		Details:   Details{Name: item.Name, Color: item.Color, Icon: item.Icon}.fillDefaults(),
		Temporary: detectTemp && strings.HasPrefix(item.Name, temporaryNamePrefix),
		CreatedAt: time.Now().UTC(),
		Suffixes:  suffixes,
	}
	if err := r.st.InsertContainer(storedForm(c)); err != nil {
		return err
	}
	r.containers[c.ID] = c
	r.order = append(r.order, c.ID)
	for _, suffix := range c.Suffixes {
		r.ruleOwner[suffix.String()] = c.ID
	}
	return nil
}
