package psl

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/cubby/internal/domain"
)

const testList = `
// comment line
com
co.uk
uk
*.ck
!www.ck
github.io
`

func parseTestTable(t *testing.T) *Table {
	t.Helper()
	table, err := Parse(strings.NewReader(testList), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return table
}

func TestParse(t *testing.T) {
	table := parseTestTable(t)
	if got := table.Len(); got != 6 {
		t.Errorf("Len() = %d, want 6", got)
	}
	if got := table.Updated(); got != time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Updated() = %v", got)
	}
}

func TestParseRejectsBadEntry(t *testing.T) {
	if _, err := Parse(strings.NewReader("a..com\n"), time.Now()); err == nil {
		t.Fatal("Parse() accepted an entry with an empty label")
	}
}

func TestEffectiveDomain(t *testing.T) {
	table := parseTestTable(t)

	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "simple tld", host: "example.com", want: "example.com"},
		{name: "subdomain collapses", host: "cart.shop.example.com", want: "example.com"},
		{name: "multi label suffix", host: "shop.example.co.uk", want: "example.co.uk"},
		{name: "suffix itself", host: "co.uk", want: "co.uk"},
		{name: "wildcard entry", host: "shop.store.ck", want: "shop.store.ck"},
		{name: "deeper under wildcard", host: "a.b.store.ck", want: "b.store.ck"},
		{name: "exception entry", host: "www.ck", want: "www.ck"},
		{name: "under exception", host: "sub.www.ck", want: "www.ck"},
		{name: "private suffix", host: "user.github.io", want: "user.github.io"},
		{name: "unlisted tld falls back", host: "router.local", want: "router.local"},
		{name: "ip literal", host: "192.168.1.1", wantErr: true},
		{name: "empty", host: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.EffectiveDomain(tt.host)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EffectiveDomain(%q) = %q, want error", tt.host, got)
				}
				if !errors.Is(err, domain.ErrInvalidHost) {
					t.Errorf("EffectiveDomain(%q) error = %v, want ErrInvalidHost", tt.host, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EffectiveDomain(%q) error = %v", tt.host, err)
			}
			if got != tt.want {
				t.Errorf("EffectiveDomain(%q) = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestBundledSnapshotParses(t *testing.T) {
	table := Bundled()
	if table.Len() == 0 {
		t.Fatal("bundled snapshot is empty")
	}
	eff, err := table.EffectiveDomain("cart.shop.example.co.uk")
	if err != nil {
		t.Fatalf("EffectiveDomain() error = %v", err)
	}
	if eff != "example.co.uk" {
		t.Errorf("EffectiveDomain() = %q, want example.co.uk", eff)
	}
}
