package domain

import (
	"fmt"
	"strings"
)

// Kind classifies how a suffix rule matches a host.
type Kind int

const (
	// Exact matches the registrable host itself, not its subdomains.
	Exact Kind = iota
	// Wildcard matches the pattern and all of its subdomains.
	Wildcard
	// Exclusion matches like Wildcard but removes its container from
	// candidacy for the host instead of including it.
	Exclusion
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Wildcard:
		return "wildcard"
	case Exclusion:
		return "exclusion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Suffix is a single domain-suffix rule bound to a container.
// The wire encoding is a single-character prefix on the pattern:
// "!pattern" for exclusions, "*pattern" for wildcards, and the bare
// pattern for exact rules. Instances are immutable once parsed.
type Suffix struct {
	Kind    Kind
	Pattern string
}

// ParseSuffix parses the wire form of a suffix rule. The pattern is
// normalized like a host, so two rules that differ only in case or
// IDN encoding collide. The legacy "*.pattern" glob form is accepted
// on input and canonicalized to "*pattern".
func ParseSuffix(s string) (Suffix, error) {
	raw := strings.TrimSpace(s)
	kind := Exact
	switch {
	case strings.HasPrefix(raw, "!"):
		kind = Exclusion
		raw = raw[1:]
	case strings.HasPrefix(raw, "*."):
		kind = Wildcard
		raw = raw[2:]
	case strings.HasPrefix(raw, "*"):
		kind = Wildcard
		raw = raw[1:]
	}
	if raw == "" || strings.ContainsAny(raw, "!*") {
		return Suffix{}, fmt.Errorf("%w: %q", ErrMalformedSuffix, s)
	}
	pattern, err := Normalize(raw)
	if err != nil {
		return Suffix{}, fmt.Errorf("%w: %q: %v", ErrMalformedSuffix, s, err)
	}
	return Suffix{Kind: kind, Pattern: pattern}, nil
}

// String returns the canonical wire form. It round-trips exactly
// through ParseSuffix.
func (s Suffix) String() string {
	switch s.Kind {
	case Wildcard:
		return "*" + s.Pattern
	case Exclusion:
		return "!" + s.Pattern
	default:
		return s.Pattern
	}
}

// Matches reports whether the rule applies to the normalized host.
// Exact rules require equality; Wildcard and Exclusion rules also
// accept any subdomain of the pattern.
func (s Suffix) Matches(host string) bool {
	if host == s.Pattern {
		return true
	}
	if s.Kind == Exact {
		return false
	}
	return strings.HasSuffix(host, "."+s.Pattern)
}

// Inclusive reports whether a match assigns the host to the rule's
// container rather than vetoing it.
func (s Suffix) Inclusive() bool {
	return s.Kind != Exclusion
}
