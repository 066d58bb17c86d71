// Package psl maintains the public suffix list and resolves the
// registrable (effective) domain of a host, as described at
// publicsuffix.org.
package psl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/blackwell-systems/cubby/internal/domain"
)

// ErrRefreshFailed is returned when fetching or parsing a new list
// fails. The previous table remains authoritative.
var ErrRefreshFailed = errors.New("public suffix list refresh failed")

// Table is an immutable snapshot of the public suffix list. Readers
// share snapshots freely; a refresh builds a new Table and swaps it in
// atomically rather than mutating an existing one.
type Table struct {
	exact      map[string]struct{}
	wildcard   map[string]struct{} // "*.foo" entries keyed by "foo"
	exceptions map[string]struct{} // "!bar.foo" entries keyed by "bar.foo"
	updated    time.Time
}

// Parse reads a public suffix list in its published text format.
// Blank lines and comments starting with "//" in column 0 are skipped.
// Entries that cannot be normalized fail the whole parse, as a partial
// table would silently compute wrong domain boundaries.
func Parse(r io.Reader, updated time.Time) (*Table, error) {
	t := &Table{
		exact:      make(map[string]struct{}),
		wildcard:   make(map[string]struct{}),
		exceptions: make(map[string]struct{}),
		updated:    updated,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if err := t.addEntry(line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading suffix list: %w", err)
	}
	return t, nil
}

func (t *Table) addEntry(line string) error {
	switch {
	case strings.HasPrefix(line, "!"):
		name, err := domain.Normalize(line[1:])
		if err != nil {
			return fmt.Errorf("suffix list entry %q: %w", line, err)
		}
		t.exceptions[name] = struct{}{}
	case strings.HasPrefix(line, "*."):
		name, err := domain.Normalize(line[2:])
		if err != nil {
			return fmt.Errorf("suffix list entry %q: %w", line, err)
		}
		t.wildcard[name] = struct{}{}
	default:
		name, err := domain.Normalize(line)
		if err != nil {
			return fmt.Errorf("suffix list entry %q: %w", line, err)
		}
		t.exact[name] = struct{}{}
	}
	return nil
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.exact) + len(t.wildcard) + len(t.exceptions)
}

// Updated returns the timestamp the list was fetched or bundled.
func (t *Table) Updated() time.Time {
	return t.updated
}

// PublicSuffix returns the longest public suffix of the normalized
// host. Per the list's rules an exception entry shortens the suffix by
// one label, a "*.foo" entry extends "foo" by one label, and a host
// whose top-level label is unlisted falls back to that label (the
// implicit "*" rule).
func (t *Table) PublicSuffix(host string) string {
	labels := domain.Labels(host)
	suffix := labels[len(labels)-1]

	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if _, ok := t.exceptions[candidate]; ok {
			// The exception itself is registrable; its parent is
			// the public suffix.
			parent, ok := domain.Parent(candidate)
			if !ok {
				break
			}
			return parent
		}
		if _, ok := t.exact[candidate]; ok {
			if len(candidate) > len(suffix) {
				suffix = candidate
			}
			continue
		}
		if parent, ok := domain.Parent(candidate); ok {
			if _, hit := t.wildcard[parent]; hit {
				if len(candidate) > len(suffix) {
					suffix = candidate
				}
			}
		}
	}
	return suffix
}

// EffectiveDomain returns the registrable domain of the normalized
// host: its public suffix plus exactly one additional label. A host
// that is itself a public suffix is treated as its own registrable
// domain. IP literals never suffix-match and fail with InvalidHost.
func (t *Table) EffectiveDomain(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: empty host", domain.ErrInvalidHost)
	}
	if domain.IsIPLiteral(host) {
		return "", fmt.Errorf("%w: %q is an IP literal", domain.ErrInvalidHost, host)
	}

	suffix := t.PublicSuffix(host)
	if host == suffix {
		return host, nil
	}

	rest := strings.TrimSuffix(host, "."+suffix)
	if rest == host {
		return "", fmt.Errorf("%w: %q does not end in suffix %q", domain.ErrInvalidHost, host, suffix)
	}
	restLabels := domain.Labels(rest)
	return restLabels[len(restLabels)-1] + "." + suffix, nil
}
