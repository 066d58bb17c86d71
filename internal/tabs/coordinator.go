// Package tabs reacts to browser tab lifecycle events and decides
// container assignment for each navigation. The coordinator only
// decides; moving a tab between containers is the browser
// collaborator's job, requested fire-and-forget through Mover.
package tabs

import (
	"sync"

	"go.uber.org/zap"

	"github.com/blackwell-systems/cubby/internal/config"
	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/match"
	"github.com/blackwell-systems/cubby/internal/psl"
	"github.com/blackwell-systems/cubby/internal/recording"
	"github.com/blackwell-systems/cubby/internal/registry"
)

// Mover receives relocation requests. Implementations must not block;
// the coordinator does not wait for or observe the outcome.
type Mover interface {
	Move(tabID int64, containerID string)
}

// Binding is the ephemeral association of a live tab to its container
// and last-seen host. Not persisted; rebuilt from browser state after
// a restart.
type Binding struct {
	ContainerID string
	Host        string
}

// Event carries the browser-side properties of a tab event.
type Event struct {
	TabID       int64
	ContainerID string
	OpenerTabID int64 // 0 when the tab has no opener
	URL         string
}

// Coordinator tracks tab bindings and turns navigation events into
// assignment decisions.
type Coordinator struct {
	reg      *registry.Registry
	resolver *psl.Resolver
	rec      *recording.Manager
	mover    Mover
	logger   *zap.Logger

	mu       sync.Mutex
	bindings map[int64]*Binding
	prefs    config.Preferences
}

// NewCoordinator creates a coordinator with the given collaborators.
func NewCoordinator(reg *registry.Registry, resolver *psl.Resolver, rec *recording.Manager, mover Mover, prefs config.Preferences, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		reg:      reg,
		resolver: resolver,
		rec:      rec,
		mover:    mover,
		logger:   logger,
		bindings: make(map[int64]*Binding),
		prefs:    prefs,
	}
}

// Preferences returns the current policy flags.
func (c *Coordinator) Preferences() config.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// SetPreferences swaps the policy flags, typically from a config
// reload. Takes effect for subsequent events only.
func (c *Coordinator) SetPreferences(prefs config.Preferences) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs = prefs
}

// Binding returns the current binding for a tab, if any.
func (c *Coordinator) Binding(tabID int64) (Binding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[tabID]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

// OnTabCreated registers a new tab. Assignment happens on the first
// URL update, so creation only seeds the binding.
func (c *Coordinator) OnTabCreated(ev Event) {
	host, err := domain.HostFromURL(ev.URL)
	if err != nil || host == "" {
		host = ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[ev.TabID] = &Binding{ContainerID: ev.ContainerID, Host: host}
}

// OnTabUpdated handles a navigation. The decision is deterministic
// given the current registry and suffix table: same-domain updates and
// managed-opener same-domain tabs are no-ops, a clean match to a
// different container requests a move, and an ambiguous match silently
// means no reassignment.
func (c *Coordinator) OnTabUpdated(ev Event) {
	rawHost, err := domain.HostFromURL(ev.URL)
	if err != nil || rawHost == "" {
		return
	}
	host, err := domain.Normalize(rawHost)
	if err != nil {
		c.logger.Debug("unassignable host", zap.String("url", ev.URL), zap.Error(err))
		return
	}

	decide, containerID, openerManaged := c.bind(ev, host)
	if !decide {
		return
	}

	result, err := match.Match(host, c.reg.Candidates())
	if err != nil {
		return
	}
	if result.Ambiguous {
		c.logger.Debug("ambiguous match, leaving tab in place",
			zap.Int64("tab", ev.TabID), zap.String("host", host))
		return
	}

	if result.Matched() && result.ContainerID != containerID {
		if openerManaged && c.Preferences().EjectStrategy == config.EjectRemainInPlace {
			c.logger.Debug("eject suppressed by policy",
				zap.Int64("tab", ev.TabID), zap.String("host", host))
		} else {
			c.logger.Info("requesting move",
				zap.Int64("tab", ev.TabID),
				zap.String("host", host),
				zap.String("container", result.ContainerID))
			c.mover.Move(ev.TabID, result.ContainerID)
			c.rebind(ev.TabID, result.ContainerID)
			containerID = result.ContainerID
		}
	}

	c.capture(containerID, host)
}

// OnTabRemoved discards the binding. A pending recording session for
// the tab's container survives so the user can still confirm it.
func (c *Coordinator) OnTabRemoved(tabID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bindings, tabID)
}

// bind updates the tab's binding for the new host and reports whether
// an assignment decision is needed, along with the tab's container and
// whether a managed opener shares the new domain handling applied.
func (c *Coordinator) bind(ev Event, host string) (decide bool, containerID string, openerManaged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var openerHost string
	if ev.OpenerTabID != 0 {
		if opener, ok := c.bindings[ev.OpenerTabID]; ok {
			openerManaged = true
			openerHost = opener.Host
		}
	}

	b, ok := c.bindings[ev.TabID]
	if !ok {
		b = &Binding{ContainerID: ev.ContainerID, Host: host}
		c.bindings[ev.TabID] = b
		return openerHost != host, b.ContainerID, openerManaged
	}

	sameDomain := b.Host == host
	b.Host = host
	if sameDomain || openerHost == host {
		return false, b.ContainerID, openerManaged
	}
	return true, b.ContainerID, openerManaged
}

func (c *Coordinator) rebind(tabID int64, containerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.bindings[tabID]; ok {
		b.ContainerID = containerID
	}
}

// capture feeds the host's effective domain into an active recording
// session, unless a rule anywhere already covers the host.
func (c *Coordinator) capture(containerID string, host string) {
	if containerID == "" || !c.rec.Active(containerID) {
		return
	}
	if c.reg.Covered(host) {
		return
	}
	effective, err := c.resolver.EffectiveDomain(host)
	if err != nil {
		return
	}
	suffix := domain.Suffix{Kind: domain.Wildcard, Pattern: effective}
	if err := c.rec.Capture(containerID, suffix); err != nil {
		c.logger.Debug("capture skipped", zap.String("container", containerID), zap.Error(err))
		return
	}
	c.logger.Info("captured suffix",
		zap.String("container", containerID),
		zap.String("suffix", suffix.String()))
}
