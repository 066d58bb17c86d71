// Package domain provides host normalization and the suffix rule type
// used for allocating containers to domains.
package domain

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidHost is returned for hosts that cannot be normalized
	// into a domain name.
	ErrInvalidHost = errors.New("invalid host")

	// ErrMalformedSuffix is returned for suffix strings with a bad
	// prefix or an unencodable pattern.
	ErrMalformedSuffix = errors.New("malformed suffix")
)

// Normalize canonicalizes a host for matching: lowercases it, strips a
// single trailing dot and any port, and encodes internationalized names
// to their ASCII (punycode) form. IP literals are returned verbatim in
// their canonical textual form.
func Normalize(host string) (string, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidHost)
	}

	host = stripPort(host)
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidHost)
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return ip.String(), nil
	}

	encoded, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidHost, host, err)
	}
	if err := validateLabels(encoded); err != nil {
		return "", err
	}
	return encoded, nil
}

// IsIPLiteral reports whether the normalized host is an IPv4 or IPv6
// address. IP literals are never suffix-matched against the public
// suffix list.
func IsIPLiteral(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}

// HostFromURL extracts and normalizes the host of a URL. Schemes
// without a host (about:, moz-extension resources and the like) yield
// an empty host with no error so callers can skip them.
func HostFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	if u.Host == "" {
		return "", nil
	}
	return Normalize(u.Host)
}

// Parent returns the host with its leftmost label removed.
// The second return is false for a single-label host.
func Parent(host string) (string, bool) {
	idx := strings.IndexByte(host, '.')
	if idx < 0 {
		return "", false
	}
	return host[idx+1:], true
}

// Labels returns the dot-separated labels of a host.
func Labels(host string) []string {
	return strings.Split(host, ".")
}

// stripPort removes a trailing :port, handling bracketed IPv6 hosts.
// Bare IPv6 literals (more than one colon, no brackets) are left alone.
func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if idx := strings.LastIndex(host, "]:"); idx >= 0 {
			return host[:idx+1]
		}
		return host
	}
	if strings.Count(host, ":") == 1 {
		host, _, _ = strings.Cut(host, ":")
	}
	return host
}

func validateLabels(host string) error {
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return fmt.Errorf("%w: %q has an empty label", ErrInvalidHost, host)
		}
	}
	return nil
}
