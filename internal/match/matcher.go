// Package match selects the container a host belongs to. Matching is
// a pure function over the candidate rule sets: it takes no locks and
// has no side effects, which keeps tab-event races tractable.
package match

import (
	"github.com/blackwell-systems/cubby/internal/domain"
)

// Candidate is one container's view for matching: its identifier and
// its suffix rules.
type Candidate struct {
	ID       string
	Suffixes []domain.Suffix
}

// Result reports the outcome of a match. The zero value means no rule
// matched. Ambiguous means two equally specific rules tied; callers
// must fail closed and keep the tab where it is.
type Result struct {
	ContainerID string
	Suffix      domain.Suffix
	Ambiguous   bool
}

// Matched reports whether the result names a container.
func (r Result) Matched() bool {
	return r.ContainerID != "" && !r.Ambiguous
}

// Match normalizes the host and selects the best-matching candidate.
// An exact match beats a wildcard match; among same-kind matches the
// longer pattern wins; a remaining tie is reported as Ambiguous. An
// exclusion rule removes its own container from candidacy for this
// host regardless of the container's other rules.
func Match(host string, candidates []Candidate) (Result, error) {
	normalized, err := domain.Normalize(host)
	if err != nil {
		return Result{}, err
	}

	best := Result{}
	bestSet := false
	for _, candidate := range candidates {
		suffix, ok := bestSuffix(normalized, candidate.Suffixes)
		if !ok {
			continue
		}
		current := Result{ContainerID: candidate.ID, Suffix: suffix}
		if !bestSet {
			best, bestSet = current, true
			continue
		}
		switch compareSuffixes(current.Suffix, best.Suffix) {
		case 1:
			best = current
		case 0:
			best.Ambiguous = true
		}
	}
	if !bestSet {
		return Result{}, nil
	}
	if best.Ambiguous {
		return Result{Ambiguous: true}, nil
	}
	return best, nil
}

// bestSuffix finds the candidate's most specific applicable inclusive
// rule, or reports false when nothing applies or an exclusion vetoes
// the container.
func bestSuffix(host string, suffixes []domain.Suffix) (domain.Suffix, bool) {
	var best domain.Suffix
	found := false
	for _, suffix := range suffixes {
		if !suffix.Matches(host) {
			continue
		}
		if !suffix.Inclusive() {
			return domain.Suffix{}, false
		}
		if !found || compareSuffixes(suffix, best) > 0 {
			best, found = suffix, true
		}
	}
	return best, found
}

// compareSuffixes orders applicable rules by precedence: exact beats
// wildcard, then longer patterns beat shorter ones. Returns 1, -1, or
// 0 for equal precedence.
func compareSuffixes(a, b domain.Suffix) int {
	aExact := a.Kind == domain.Exact
	bExact := b.Kind == domain.Exact
	if aExact != bExact {
		if aExact {
			return 1
		}
		return -1
	}
	switch {
	case len(a.Pattern) > len(b.Pattern):
		return 1
	case len(a.Pattern) < len(b.Pattern):
		return -1
	default:
		return 0
	}
}
