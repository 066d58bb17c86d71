package registry

import "sync/atomic"

// Details is the identity styling of a container: the fields the
// browser's contextual-identity API understands.
type Details struct {
	Name  string
	Color string
	Icon  string
}

// Colors the browser is known to support. Unknown values are kept
// as-is so future browser additions survive a round trip.
var knownColors = []string{
	"blue", "turquoise", "green", "yellow",
	"orange", "red", "pink", "purple", "toolbar",
}

// Icons the browser is known to support.
var knownIcons = []string{
	"fingerprint", "briefcase", "dollar", "cart", "circle",
	"gift", "vacation", "food", "fruit", "pet", "tree", "chill", "fence",
}

var colorIndex atomic.Uint64

// nextColor rolls forward through the color cycle, shared globally, so
// containers created without an explicit color stay distinguishable.
func nextColor() string {
	idx := colorIndex.Add(1) - 1
	return knownColors[idx%uint64(len(knownColors)-1)] // exclude toolbar
}

// fillDefaults applies the defaults for unspecified identity fields.
func (d Details) fillDefaults() Details {
	if d.Name == "" {
		d.Name = "Cubby"
	}
	if d.Color == "" {
		d.Color = nextColor()
	}
	if d.Icon == "" {
		d.Icon = "circle"
	}
	return d
}
