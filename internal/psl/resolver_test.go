package psl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolverRefreshSwapsTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("com\nco.uk\nuk\n"))
	}))
	defer server.Close()

	resolver := NewResolver(Bundled())
	before := resolver.LastUpdated()

	updated, err := resolver.Refresh(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !updated.After(before) {
		t.Errorf("Refresh() timestamp %v not after bundled %v", updated, before)
	}
	if got := resolver.Snapshot().Len(); got != 3 {
		t.Errorf("table Len() after refresh = %d, want 3", got)
	}
}

func TestResolverRefreshFailureKeepsTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := NewResolver(Bundled())
	before := resolver.Snapshot()

	if _, err := resolver.Refresh(context.Background(), server.URL); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("Refresh() error = %v, want ErrRefreshFailed", err)
	}
	if resolver.Snapshot() != before {
		t.Error("failed refresh replaced the table")
	}
}

func TestResolverRefreshCoalesced(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		<-release
		w.Write([]byte("com\n"))
	}))
	defer server.Close()

	resolver := NewResolver(Bundled())

	const callers = 4
	timestamps := make([]time.Time, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			updated, err := resolver.Refresh(context.Background(), server.URL)
			if err != nil {
				t.Errorf("Refresh() error = %v", err)
				return
			}
			timestamps[i] = updated
		}(i)
	}

	// Let all callers pile up on the in-flight fetch before it returns.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := fetches.Load(); got != 1 {
		t.Errorf("server saw %d fetches, want 1", got)
	}
	for i := 1; i < callers; i++ {
		if !timestamps[i].Equal(timestamps[0]) {
			t.Errorf("caller %d got timestamp %v, caller 0 got %v", i, timestamps[i], timestamps[0])
		}
	}
}

func TestResolverEffectiveDomainCached(t *testing.T) {
	resolver := NewResolver(Bundled())

	first, err := resolver.EffectiveDomain("cart.shop.example.com")
	if err != nil {
		t.Fatalf("EffectiveDomain() error = %v", err)
	}
	second, err := resolver.EffectiveDomain("cart.shop.example.com")
	if err != nil {
		t.Fatalf("EffectiveDomain() error = %v", err)
	}
	if first != second || first != "example.com" {
		t.Errorf("EffectiveDomain() = %q then %q, want example.com", first, second)
	}

	// A swap must invalidate cached lookups.
	resolver.Reset()
	if _, ok := resolver.cache.Get("cart.shop.example.com"); ok {
		t.Error("cache survived a table swap")
	}
}
