package psl

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultListURL is fetched when a refresh request carries no URL of
// its own.
const DefaultListURL = "https://publicsuffix.org/list/public_suffix_list.dat"

// effectiveDomainCacheSize bounds the host lookup cache. Tab events
// revisit the same hosts constantly, so even a small cache absorbs
// nearly all repeat lookups.
const effectiveDomainCacheSize = 4096

// Resolver computes effective domains against the current public
// suffix table. The table is swapped atomically on refresh, so
// concurrent lookups observe either the old or the new list, never a
// mix. Concurrent refresh requests are coalesced into a single fetch.
type Resolver struct {
	table  atomic.Pointer[Table]
	cache  *lru.Cache[string, string]
	group  singleflight.Group
	client *http.Client
}

// NewResolver creates a resolver seeded with the given table,
// typically Bundled() or a table restored from the store.
func NewResolver(table *Table) *Resolver {
	cache, err := lru.New[string, string](effectiveDomainCacheSize)
	if err != nil {
		panic("psl: cache size is constant and positive: " + err.Error())
	}
	r := &Resolver{
		cache:  cache,
		client: &http.Client{},
	}
	r.table.Store(table)
	return r
}

// Snapshot returns the current table. The caller may read it for the
// duration of one match without further synchronization.
func (r *Resolver) Snapshot() *Table {
	return r.table.Load()
}

// LastUpdated returns the timestamp of the current table.
func (r *Resolver) LastUpdated() time.Time {
	return r.table.Load().Updated()
}

// EffectiveDomain resolves the registrable domain of a normalized
// host, consulting the lookup cache first.
func (r *Resolver) EffectiveDomain(host string) (string, error) {
	if cached, ok := r.cache.Get(host); ok {
		return cached, nil
	}
	eff, err := r.table.Load().EffectiveDomain(host)
	if err != nil {
		return "", err
	}
	r.cache.Add(host, eff)
	return eff, nil
}

// Swap installs a new table and drops the lookup cache. Used by
// Refresh and by startup code restoring a stored list.
func (r *Resolver) Swap(table *Table) {
	r.table.Store(table)
	r.cache.Purge()
}

// Refresh fetches the list at url (DefaultListURL if empty), parses
// it, and swaps it in. Overlapping refreshes share one fetch and one
// resulting timestamp. On failure the previous table stays in place
// and the error wraps ErrRefreshFailed.
func (r *Resolver) Refresh(ctx context.Context, url string) (time.Time, error) {
	if url == "" {
		url = DefaultListURL
	}
	updated, err, _ := r.group.Do(url, func() (interface{}, error) {
		return r.fetchAndSwap(ctx, url)
	})
	if err != nil {
		return time.Time{}, err
	}
	return updated.(time.Time), nil
}

// Reset swaps the bundled snapshot back in, mirroring a psl_update
// request with no URL.
func (r *Resolver) Reset() time.Time {
	table := Bundled()
	r.Swap(table)
	return table.Updated()
}

func (r *Resolver) fetchAndSwap(ctx context.Context, url string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("%w: unexpected status %s", ErrRefreshFailed, resp.Status)
	}

	updated := time.Now().UTC()
	table, err := Parse(resp.Body, updated)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	r.Swap(table)
	return updated, nil
}
