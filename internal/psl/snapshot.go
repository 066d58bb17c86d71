package psl

import (
	_ "embed"
	"strings"
	"time"
)

// snapshotData is a trimmed copy of the public suffix list bundled into
// the binary so the engine can compute domain boundaries before the
// first refresh. Refresh with `cubby psl update` for full coverage.
//
//go:embed snapshot.dat
var snapshotData string

// snapshotDate is the publication date of the bundled snapshot.
var snapshotDate = time.Date(2025, time.June, 19, 0, 0, 0, 0, time.UTC)

// Bundled parses the embedded snapshot. The snapshot is validated by
// tests, so a parse failure here is a build defect.
func Bundled() *Table {
	t, err := Parse(strings.NewReader(snapshotData), snapshotDate)
	if err != nil {
		panic("psl: embedded snapshot is malformed: " + err.Error())
	}
	return t
}
