package store

import "time"

// Container is the persisted form of a container: identity details
// plus its suffix rules in their canonical wire encoding, ordered by
// position.
type Container struct {
	ID        string
	Name      string
	Color     string
	Icon      string
	Temporary bool
	CreatedAt time.Time
	Suffixes  []string
}

// PSLMeta records the provenance of the last public suffix list
// refresh, shown by `cubby psl status`.
type PSLMeta struct {
	LastUpdated time.Time
	EntryCount  int
	Source      string
}
