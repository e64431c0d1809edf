package mode

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"vigil/internal/audit"
	"vigil/internal/mode/metrics"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/requestcontext"
)

// Capability names one gated action class.
type Capability string

const (
	CapabilityNetwork Capability = "network"
	CapabilityUpload  Capability = "upload"
	CapabilityExport  Capability = "export"
	CapabilityAI      Capability = "ai_generation"
)

// Allows reports whether the row grants capability.
func (c Config) Allows(capability Capability) bool {
	switch capability {
	case CapabilityNetwork:
		return c.AllowNetworkCalls
	case CapabilityUpload:
		return c.AllowFileUpload
	case CapabilityExport:
		return c.AllowExport
	case CapabilityAI:
		return c.AllowAIGeneration
	default:
		return false
	}
}

// external capabilities leave the process and go through IsCallAllowed.
func (k Capability) external() bool {
	return k == CapabilityNetwork || k == CapabilityAI
}

// State is a snapshot of the effective runtime policy.
type State struct {
	Mode         Mode   `json:"mode"`
	NoNetwork    bool   `json:"no_network"`
	Capabilities Config `json:"capabilities"`
}

// Controller owns the effective mode and network kill switch for the process.
// Mode changes go through Switch, which enforces the transition matrix and
// records every change in the audit chain before it takes effect.
type Controller struct {
	mu        sync.RWMutex
	mode      Mode
	noNetwork bool
	audit     audit.Appender
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// NewController starts in initial, which callers normally obtain from
// Resolve. An invalid initial mode starts in STANDBY.
func NewController(initial Mode, noNetwork bool, appender audit.Appender, opts ...Option) (*Controller, error) {
	if appender == nil {
		return nil, errors.New("audit appender is required")
	}
	if !initial.IsValid() {
		initial = Standby
	}
	c := &Controller{
		mode:      initial,
		noNetwork: noNetwork,
		audit:     appender,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.recordState()
	return c, nil
}

// Current returns the effective policy.
func (c *Controller) Current() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		Mode:         c.mode,
		NoNetwork:    c.noNetwork,
		Capabilities: CapabilitiesFor(c.mode),
	}
}

// Authorize checks capability against the current policy. External capabilities go
// through the call gate first. A refusal is audited as CALL_BLOCKED and
// returned as a CodeCallBlocked error; allowed checks are not audited.
func (c *Controller) Authorize(ctx context.Context, capability Capability, operation string) error {
	st := c.Current()
	reason := ""
	if capability.external() {
		if d := IsCallAllowed(st.Mode, st.NoNetwork); !d.Allowed {
			reason = d.Reason
		}
	}
	if reason == "" && !st.Capabilities.Allows(capability) {
		reason = ReasonModeRestricted
	}
	if reason == "" {
		return nil
	}

	if c.metrics != nil {
		c.metrics.IncBlocked(reason)
	}
	_, err := c.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventGovernance,
		Action:       audit.ActionCallBlocked,
		UserID:       requestcontext.UserID(ctx),
		ResourceType: "capability",
		ResourceID:   string(capability),
		Details: audit.Details{
			"mode":      st.Mode.String(),
			"reason":    reason,
			"operation": operation,
		},
	})
	if err != nil && c.logger != nil {
		c.logger.ErrorContext(ctx, "failed to audit blocked call",
			"request_id", requestcontext.RequestID(ctx),
			"reason", reason,
			"error", err,
		)
	}
	return Blocked(reason, operation)
}

// CheckCall gates an outbound network call.
func (c *Controller) CheckCall(ctx context.Context, operation string) error {
	return c.Authorize(ctx, CapabilityNetwork, operation)
}

// Switch moves the process to mode to. Only ADMIN may switch. The audit
// entry is written before the new mode takes effect; if it cannot be
// written the mode is unchanged.
func (c *Controller) Switch(ctx context.Context, to Mode) (State, error) {
	userID := requestcontext.UserID(ctx)
	if !requestcontext.Role(ctx).AtLeast(domain.RoleAdmin) {
		return State{}, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.mode
	if !ValidTransition(from, to) {
		return State{}, dErrors.New(dErrors.CodeValidation, "invalid mode transition from "+from.String()+" to "+to.String())
	}

	if _, err := c.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventGovernance,
		Action:       audit.ActionModeChanged,
		UserID:       userID,
		ResourceType: "mode",
		ResourceID:   to.String(),
		Details: audit.Details{
			"from": from.String(),
			"to":   to.String(),
		},
	}); err != nil {
		return State{}, err
	}

	c.mode = to
	if c.metrics != nil {
		c.metrics.IncTransition(from.String(), to.String())
	}
	c.recordStateLocked()
	if c.logger != nil {
		c.logger.InfoContext(ctx, "operating mode changed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"from", from,
			"to", to,
		)
	}
	return State{Mode: c.mode, NoNetwork: c.noNetwork, Capabilities: CapabilitiesFor(c.mode)}, nil
}

// SetNoNetwork engages or releases the network kill switch. Only ADMIN may
// change it and every change is audited before it takes effect.
func (c *Controller) SetNoNetwork(ctx context.Context, engaged bool) (State, error) {
	if !requestcontext.Role(ctx).AtLeast(domain.RoleAdmin) {
		return State{}, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventGovernance,
		Action:       audit.ActionNetworkKillSwitch,
		UserID:       requestcontext.UserID(ctx),
		ResourceType: "mode",
		ResourceID:   c.mode.String(),
		Details: audit.Details{
			"engaged": strconv.FormatBool(engaged),
		},
	}); err != nil {
		return State{}, err
	}

	c.noNetwork = engaged
	c.recordStateLocked()
	return State{Mode: c.mode, NoNetwork: c.noNetwork, Capabilities: CapabilitiesFor(c.mode)}, nil
}

func (c *Controller) recordState() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.recordStateLocked()
}

func (c *Controller) recordStateLocked() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetState(c.mode.String(), []string{Standby.String(), Demo.String(), Live.String()}, c.noNetwork)
}
