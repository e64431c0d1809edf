package audit

import (
	"maps"
	"time"

	"github.com/google/uuid"

	dErrors "vigil/pkg/domain-errors"
)

// GenesisHash is the previousHash of the first entry in every chain.
const GenesisHash = "GENESIS"

// EventType is the category tag of an audit entry.
type EventType string

const (
	EventDataUpload EventType = "DATA_UPLOAD"
	EventPHIScan    EventType = "PHI_SCAN"
	EventGovernance EventType = "GOVERNANCE"
	EventDataExport EventType = "DATA_EXPORT"
	EventAuth       EventType = "AUTH"
)

var validEventTypes = map[EventType]bool{
	EventDataUpload: true,
	EventPHIScan:    true,
	EventGovernance: true,
	EventDataExport: true,
	EventAuth:       true,
}

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	return validEventTypes[t]
}

// Actions recorded by the governance modules.
const (
	ActionScanCompleted     = "SCAN_COMPLETED"
	ActionOverrideGranted   = "OVERRIDE_GRANTED"
	ActionOverrideRejected  = "OVERRIDE_REJECTED"
	ActionModeChanged       = "MODE_CHANGED"
	ActionCallBlocked       = "CALL_BLOCKED"
	ActionNetworkKillSwitch = "NETWORK_KILL_SWITCH"
	ActionExportRequested   = "EXPORT_REQUESTED"
	ActionExportApproved    = "EXPORT_APPROVED"
	ActionExportDenied      = "EXPORT_DENIED"
	ActionExportExpired     = "EXPORT_EXPIRED"
	ActionTransitionUndone  = "EXPORT_TRANSITION_REVERTED"
	ActionChainVerifyFailed = "CHAIN_VERIFY_FAILED"
)

// Details is the closed key/value payload of an entry. Values are plain
// strings so the canonical form survives any storage round trip unchanged.
// Details must never carry raw sensitive values.
type Details map[string]string

// Fields is what callers hand to Chain.Append. The chain fills in identity,
// timestamp and hashes.
type Fields struct {
	EventType    EventType
	Action       string
	UserID       string
	ResourceType string
	ResourceID   string
	Details      Details
}

// Validate enforces the append preconditions.
func (f Fields) Validate() error {
	if !f.EventType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit event type")
	}
	if f.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "audit action is required")
	}
	if f.UserID == "" && f.EventType != EventAuth {
		return dErrors.New(dErrors.CodeValidation, "audit user_id is required outside AUTH events")
	}
	return nil
}

// Entry is one immutable link of the chain.
//
// Invariants:
//   - EntryHash == ComputeHash(entry) for every stored entry
//   - PreviousHash is the predecessor's EntryHash, or GenesisHash for the first entry
//   - CreatedAt is UTC with microsecond precision and never decreases along the chain
type Entry struct {
	ID           uuid.UUID `json:"id"`
	EventType    EventType `json:"event_type"`
	Action       string    `json:"action"`
	UserID       string    `json:"user_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Details      Details   `json:"details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	PreviousHash string    `json:"previous_hash"`
	EntryHash    string    `json:"entry_hash"`
}

func newEntry(f Fields, createdAt time.Time, previousHash string) Entry {
	e := Entry{
		ID:           uuid.New(),
		EventType:    f.EventType,
		Action:       f.Action,
		UserID:       f.UserID,
		ResourceType: f.ResourceType,
		ResourceID:   f.ResourceID,
		Details:      maps.Clone(f.Details),
		CreatedAt:    normalizeTime(createdAt),
		PreviousHash: previousHash,
	}
	e.EntryHash = ComputeHash(e)
	return e
}

// normalizeTime truncates to the precision Postgres timestamptz keeps so a
// stored entry re-hashes identically after a round trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Break reasons reported by Validate.
const (
	ReasonLinkMismatch       = "previous_hash_mismatch"
	ReasonContentMismatch    = "entry_hash_mismatch"
	ReasonTimestampRegressed = "created_at_regressed"
)

// Report is the outcome of validating a sequence of entries.
// BrokenAt and BrokenIndex are only meaningful when Valid is false.
type Report struct {
	Valid            bool       `json:"valid"`
	EntriesValidated int        `json:"entries_validated"`
	BrokenAt         *uuid.UUID `json:"broken_at,omitempty"`
	BrokenIndex      int        `json:"broken_index,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}
