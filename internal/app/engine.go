package app

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/cubby/internal/psl"
	"github.com/blackwell-systems/cubby/internal/recording"
	"github.com/blackwell-systems/cubby/internal/registry"
	"github.com/blackwell-systems/cubby/internal/store"
)

// engine bundles the startup context shared by the CLI commands: the
// open store, the loaded registry, and the suffix resolver.
type engine struct {
	st       *store.Store
	reg      *registry.Registry
	rec      *recording.Manager
	resolver *psl.Resolver
}

// openEngine opens the database, verifies the schema, and loads the
// registry and suffix table. An empty suffix-table record falls back
// to the bundled snapshot and stamps it.
func openEngine(path string) (*engine, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.EnsureSchema(); err != nil {
		st.Close()
		return nil, err
	}

	reg, err := registry.Load(st)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load containers: %w", err)
	}

	table := psl.Bundled()
	meta, err := st.GetPSLMeta()
	if err != nil {
		st.Close()
		return nil, err
	}
	if meta == nil {
		meta = &store.PSLMeta{
			LastUpdated: table.Updated(),
			EntryCount:  table.Len(),
			Source:      "bundled",
		}
		if err := st.SavePSLMeta(*meta); err != nil {
			st.Close()
			return nil, err
		}
	}

	return &engine{
		st:       st,
		reg:      reg,
		rec:      recording.NewManager(reg),
		resolver: psl.NewResolver(table),
	}, nil
}

func (e *engine) close() {
	e.st.Close()
}

// recordRefresh stamps a successful external refresh in the store so
// the status command reports it across restarts.
func (e *engine) recordRefresh(updated time.Time, source string) error {
	return e.st.SavePSLMeta(store.PSLMeta{
		LastUpdated: updated,
		EntryCount:  e.resolver.Snapshot().Len(),
		Source:      source,
	})
}
