// Package mode maps the operating mode to a fixed capability set and hosts
// the fail-closed gate consulted before any externally visible call.
package mode

import (
	"strings"

	dErrors "vigil/pkg/domain-errors"
)

// Mode is the platform operating mode.
type Mode string

const (
	Standby Mode = "STANDBY"
	Demo    Mode = "DEMO"
	Live    Mode = "LIVE"
)

// restrictiveness orders modes from most (0) to least restrictive.
var restrictiveness = map[Mode]int{
	Standby: 0,
	Demo:    1,
	Live:    2,
}

// ParseMode reads a mode signal case-insensitively.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	return m, m.IsValid()
}

func (m Mode) IsValid() bool {
	_, ok := restrictiveness[m]
	return ok
}

func (m Mode) String() string {
	return string(m)
}

// Config is the capability row for one mode.
type Config struct {
	AllowNetworkCalls        bool `json:"allow_network_calls"`
	AllowFileUpload          bool `json:"allow_file_upload"`
	AllowExport              bool `json:"allow_export"`
	AllowAIGeneration        bool `json:"allow_ai_generation"`
	RequireApprovalForExport bool `json:"require_approval_for_export"`
	AddWatermarks            bool `json:"add_watermarks"`
	UseSyntheticData         bool `json:"use_synthetic_data"`
}

var matrix = map[Mode]Config{
	Standby: {
		AddWatermarks:    true,
		UseSyntheticData: true,
	},
	Demo: {
		AllowNetworkCalls:        true,
		AllowFileUpload:          true,
		AllowAIGeneration:        true,
		RequireApprovalForExport: true,
		AddWatermarks:            true,
		UseSyntheticData:         true,
	},
	Live: {
		AllowNetworkCalls:        true,
		AllowFileUpload:          true,
		AllowExport:              true,
		AllowAIGeneration:        true,
		RequireApprovalForExport: true,
	},
}

// CapabilitiesFor returns the fixed capability row for m. Unknown modes get
// the STANDBY row.
func CapabilitiesFor(m Mode) Config {
	if c, ok := matrix[m]; ok {
		return c
	}
	return matrix[Standby]
}

// Resolve derives the effective mode from the explicit signal and the legacy
// one. A valid explicit signal wins. An explicit signal that is present but
// unrecognized could have meant anything, so it resolves to STANDBY no
// matter what the legacy signal says. With no explicit signal, a valid
// legacy signal is used; otherwise STANDBY.
func Resolve(explicit, legacy string) Mode {
	if strings.TrimSpace(explicit) != "" {
		if m, ok := ParseMode(explicit); ok {
			return m
		}
		return Standby
	}
	if m, ok := ParseMode(legacy); ok {
		return m
	}
	return Standby
}

// Block reasons.
const (
	ReasonStandby        = "standby_mode"
	ReasonNoNetwork      = "no_network"
	ReasonModeRestricted = "mode_restricted"
)

// Decision is the gate outcome. Reason is empty when Allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// IsCallAllowed is the fail-closed gate for external network and AI calls.
// STANDBY (or any unknown mode) is checked first, then the network kill
// switch, which applies in every mode including LIVE.
func IsCallAllowed(m Mode, noNetwork bool) Decision {
	if m == Standby || !m.IsValid() {
		return Decision{Reason: ReasonStandby}
	}
	if noNetwork {
		return Decision{Reason: ReasonNoNetwork}
	}
	return Decision{Allowed: true}
}

// BlockedError carries the reason a call was refused.
type BlockedError struct {
	Reason    string
	Operation string
}

func (e *BlockedError) Error() string {
	if e.Operation == "" {
		return "call blocked: " + e.Reason
	}
	return e.Operation + " blocked: " + e.Reason
}

// BlockReason exposes the reason to transports.
func (e *BlockedError) BlockReason() string {
	return e.Reason
}

// Blocked builds the CodeCallBlocked error for reason.
func Blocked(reason, operation string) error {
	be := &BlockedError{Reason: reason, Operation: operation}
	return dErrors.Wrap(be, dErrors.CodeCallBlocked, be.Error())
}

// Gate returns nil when the call is allowed and a CodeCallBlocked error
// otherwise.
func Gate(m Mode, noNetwork bool) error {
	d := IsCallAllowed(m, noNetwork)
	if d.Allowed {
		return nil
	}
	return Blocked(d.Reason, "")
}

var transitions = map[Mode]map[Mode]bool{
	Standby: {Demo: true},
	Demo:    {Live: true, Standby: true},
	Live:    {Demo: true},
}

// ValidTransition permits only STANDBY→DEMO, DEMO→LIVE, DEMO→STANDBY and
// LIVE→DEMO. Same-mode pairs are invalid.
func ValidTransition(from, to Mode) bool {
	return transitions[from][to]
}
