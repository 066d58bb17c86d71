// Package dispatch maps inbound UI requests onto engine operations.
// Requests are a closed set tagged by message_type, with container
// operations further tagged by action. The dispatcher holds no state
// of its own beyond the readiness gate; it only forwards and shapes
// responses.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/cubby/internal/config"
	"github.com/blackwell-systems/cubby/internal/domain"
	"github.com/blackwell-systems/cubby/internal/psl"
	"github.com/blackwell-systems/cubby/internal/recording"
	"github.com/blackwell-systems/cubby/internal/registry"
	"github.com/blackwell-systems/cubby/internal/tabs"
)

// ErrNotReady is returned for requests that arrive before the engine
// finished loading its startup context.
var ErrNotReady = errors.New("engine is not ready")

// Error kind tags surfaced to the UI collaborator.
const (
	KindInvalidHost      = "invalid_host"
	KindDuplicateRule    = "duplicate_rule"
	KindMalformedRule    = "malformed_rule"
	KindNotFound         = "not_found"
	KindAlreadyRecording = "already_recording"
	KindNotRecording     = "not_recording"
	KindRefreshFailed    = "refresh_failed"
	KindNotReady         = "not_ready"
	KindBadRequest       = "bad_request"
	KindInternal         = "internal"
)

// envelope is the outer wire shape. Exactly one payload field is
// meaningful for any given message_type.
type envelope struct {
	MessageType string          `json:"message_type"`
	View        json.RawMessage `json:"view"`
	Action      json.RawMessage `json:"action"`

	// psl_update
	URL *string `json:"url"`

	// apply_preferences
	Preferences map[string]string `json:"preferences"`

	// migrate_container
	MigrateType string                   `json:"migrate_type"`
	DetectTemp  bool                     `json:"detect_temp"`
	Items       []registry.MigrationItem `json:"items"`
}

// containerAction is the inner tagged shape for container_action.
type containerAction struct {
	Action        string `json:"action"`
	CookieStoreID string `json:"cookie_store_id"`

	// update_suffix
	OldSuffix string `json:"old_suffix"`
	NewSuffix string `json:"new_suffix"`

	// submit_identity_details
	Details      *identityDetails `json:"details"`
	ShouldRecord bool             `json:"should_record"`
}

type identityDetails struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type viewRequest struct {
	View          string `json:"view"`
	CookieStoreID string `json:"cookie_store_id"`
}

// Response is the structured reply for every request. Exactly one of
// the payload fields is set on success.
type Response struct {
	OK    bool          `json:"ok"`
	Error *ErrorPayload `json:"error,omitempty"`

	Containers  []ContainerPayload  `json:"containers,omitempty"`
	Container   *ContainerPayload   `json:"container,omitempty"`
	Migration   *MigrationPayload   `json:"migration,omitempty"`
	LastUpdated string              `json:"last_updated,omitempty"`
	Preferences *config.Preferences `json:"preferences,omitempty"`
}

// ErrorPayload tags a failure for the UI.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ContainerPayload is the wire form of one container. Suffixes use the
// single-character-prefixed encoding and must round-trip exactly.
type ContainerPayload struct {
	CookieStoreID   string   `json:"cookie_store_id"`
	Name            string   `json:"name"`
	Color           string   `json:"color"`
	Icon            string   `json:"icon"`
	Temporary       bool     `json:"temporary"`
	Suffixes        []string `json:"suffixes"`
	Recording       bool     `json:"recording"`
	PendingSuffixes []string `json:"pending_suffixes,omitempty"`
}

// MigrationPayload reports per-item migration outcomes.
type MigrationPayload struct {
	Imported int      `json:"imported"`
	Rejected int      `json:"rejected"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Dispatcher routes decoded requests to the engine components.
type Dispatcher struct {
	reg       *registry.Registry
	rec       *recording.Manager
	resolver  *psl.Resolver
	coord     *tabs.Coordinator
	prefsPath string
	logger    *zap.Logger
	ready     <-chan struct{}
}

// New creates a dispatcher. Requests are rejected until ready is
// closed. prefsPath may be empty to skip persisting preferences.
func New(reg *registry.Registry, rec *recording.Manager, resolver *psl.Resolver, coord *tabs.Coordinator, prefsPath string, logger *zap.Logger, ready <-chan struct{}) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		rec:       rec,
		resolver:  resolver,
		coord:     coord,
		prefsPath: prefsPath,
		logger:    logger,
		ready:     ready,
	}
}

// Dispatch decodes and handles one request, always producing a
// response. Errors never escape; they are shaped into tagged payloads.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) Response {
	select {
	case <-d.ready:
	default:
		return fail(ErrNotReady)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Response{OK: false, Error: &ErrorPayload{
			Kind:    KindBadRequest,
			Message: fmt.Sprintf("undecodable request: %v", err),
		}}
	}

	d.logger.Debug("dispatching", zap.String("message_type", env.MessageType))
	switch env.MessageType {
	case "request_page":
		return d.requestPage(env.View)
	case "container_action":
		return d.containerAction(env.Action)
	case "migrate_container":
		return d.migrate(env)
	case "psl_update":
		return d.pslUpdate(ctx, env.URL)
	case "apply_preferences":
		return d.applyPreferences(env.Preferences)
	default:
		return Response{OK: false, Error: &ErrorPayload{
			Kind:    KindBadRequest,
			Message: fmt.Sprintf("unknown message_type %q", env.MessageType),
		}}
	}
}

func (d *Dispatcher) requestPage(raw json.RawMessage) Response {
	var req viewRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return badRequest("undecodable view: %v", err)
	}
	switch req.View {
	case "fetch_all_containers":
		return Response{OK: true, Containers: d.listing()}
	case "container_detail":
		c, err := d.reg.Get(req.CookieStoreID)
		if err != nil {
			return fail(err)
		}
		payload := d.payload(c)
		return Response{OK: true, Container: &payload}
	default:
		return badRequest("unknown view %q", req.View)
	}
}

func (d *Dispatcher) containerAction(raw json.RawMessage) Response {
	var act containerAction
	if err := json.Unmarshal(raw, &act); err != nil {
		return badRequest("undecodable action: %v", err)
	}

	switch act.Action {
	case "update_suffix":
		return d.updateSuffix(act)

	case "confirm_recording":
		if _, err := d.rec.Confirm(act.CookieStoreID); err != nil {
			return fail(err)
		}
		return Response{OK: true, Containers: d.listing()}

	case "cancel_recording":
		if err := d.rec.Cancel(act.CookieStoreID); err != nil {
			return fail(err)
		}
		return Response{OK: true, Containers: d.listing()}

	case "submit_identity_details":
		return d.submitIdentityDetails(act)

	case "delete_container":
		d.rec.Drop(act.CookieStoreID)
		if err := d.reg.Delete(act.CookieStoreID); err != nil {
			return fail(err)
		}
		return Response{OK: true, Containers: d.listing()}

	default:
		return badRequest("unknown action %q", act.Action)
	}
}

// updateSuffix replaces one rule. An empty old_suffix is a plain
// addition; an empty new_suffix deletes the old rule.
func (d *Dispatcher) updateSuffix(act containerAction) Response {
	var add, remove []domain.Suffix
	if act.OldSuffix != "" {
		s, err := domain.ParseSuffix(act.OldSuffix)
		if err != nil {
			return fail(err)
		}
		remove = append(remove, s)
	}
	if act.NewSuffix != "" {
		s, err := domain.ParseSuffix(act.NewSuffix)
		if err != nil {
			return fail(err)
		}
		add = append(add, s)
	}
	if err := d.reg.UpdateRules(act.CookieStoreID, add, remove); err != nil {
		return fail(err)
	}
	return Response{OK: true, Containers: d.listing()}
}

// submitIdentityDetails creates a container when cookie_store_id is
// empty, updates its details otherwise. should_record starts a
// recording session on the created container.
func (d *Dispatcher) submitIdentityDetails(act containerAction) Response {
	details := registry.Details{}
	if act.Details != nil {
		details = registry.Details{
			Name:  act.Details.Name,
			Color: act.Details.Color,
			Icon:  act.Details.Icon,
		}
	}

	if act.CookieStoreID == "" {
		c, err := d.reg.Create(details, false, nil)
		if err != nil {
			return fail(err)
		}
		if act.ShouldRecord {
			if err := d.rec.Start(c.ID); err != nil {
				return fail(err)
			}
		}
		payload := d.payload(c)
		return Response{OK: true, Container: &payload}
	}

	if err := d.reg.UpdateDetails(act.CookieStoreID, details); err != nil {
		return fail(err)
	}
	c, err := d.reg.Get(act.CookieStoreID)
	if err != nil {
		return fail(err)
	}
	payload := d.payload(c)
	return Response{OK: true, Container: &payload}
}

func (d *Dispatcher) migrate(env envelope) Response {
	if env.MigrateType != "native" {
		return badRequest("unknown migrate_type %q", env.MigrateType)
	}
	report := d.reg.Migrate(env.Items, env.DetectTemp)
	payload := MigrationPayload{
		Imported: report.Imported,
		Rejected: report.Rejected,
	}
	for _, f := range report.Failures {
		payload.Reasons = append(payload.Reasons, fmt.Sprintf("%s: %s", f.Name, f.Reason))
	}
	return Response{OK: true, Migration: &payload}
}

// pslUpdate refreshes the suffix table. A null url reloads the bundled
// snapshot; a failed external fetch leaves the previous table
// authoritative.
func (d *Dispatcher) pslUpdate(ctx context.Context, url *string) Response {
	if url == nil {
		return Response{OK: true, LastUpdated: formatUpdated(d.resolver.Reset())}
	}
	updated, err := d.resolver.Refresh(ctx, *url)
	if err != nil {
		return fail(err)
	}
	return Response{OK: true, LastUpdated: formatUpdated(updated)}
}

func (d *Dispatcher) applyPreferences(options map[string]string) Response {
	prefs, err := d.coord.Preferences().Apply(options)
	if err != nil {
		return fail(err)
	}
	d.coord.SetPreferences(prefs)
	if d.prefsPath != "" {
		if err := config.Save(d.prefsPath, prefs); err != nil {
			d.logger.Warn("preferences not persisted", zap.Error(err))
		}
	}
	return Response{OK: true, Preferences: &prefs}
}

func (d *Dispatcher) listing() []ContainerPayload {
	containers := d.reg.List()
	out := make([]ContainerPayload, 0, len(containers))
	for _, c := range containers {
		out = append(out, d.payload(c))
	}
	return out
}

func (d *Dispatcher) payload(c *registry.Container) ContainerPayload {
	p := ContainerPayload{
		CookieStoreID: c.ID,
		Name:          c.Name,
		Color:         c.Color,
		Icon:          c.Icon,
		Temporary:     c.Temporary,
		Suffixes:      make([]string, 0, len(c.Suffixes)),
		Recording:     d.rec.Active(c.ID),
	}
	for _, s := range c.Suffixes {
		p.Suffixes = append(p.Suffixes, s.String())
	}
	if p.Recording {
		if pending, err := d.rec.Pending(c.ID); err == nil {
			for _, s := range pending {
				p.PendingSuffixes = append(p.PendingSuffixes, s.String())
			}
		}
	}
	return p
}

func formatUpdated(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func badRequest(format string, args ...any) Response {
	return Response{OK: false, Error: &ErrorPayload{
		Kind:    KindBadRequest,
		Message: fmt.Sprintf(format, args...),
	}}
}

// fail shapes an engine error into a tagged payload.
func fail(err error) Response {
	return Response{OK: false, Error: &ErrorPayload{
		Kind:    errorKind(err),
		Message: err.Error(),
	}}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, domain.ErrInvalidHost):
		return KindInvalidHost
	case errors.Is(err, domain.ErrMalformedSuffix):
		return KindMalformedRule
	case errors.Is(err, registry.ErrDuplicateRule):
		return KindDuplicateRule
	case errors.Is(err, registry.ErrNotFound):
		return KindNotFound
	case errors.Is(err, recording.ErrAlreadyRecording):
		return KindAlreadyRecording
	case errors.Is(err, recording.ErrNotRecording):
		return KindNotRecording
	case errors.Is(err, psl.ErrRefreshFailed):
		return KindRefreshFailed
	default:
		return KindInternal
	}
}
