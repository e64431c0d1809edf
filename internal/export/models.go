package export

import (
	"strings"
	"time"

	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Status is the lifecycle state of an export request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusPHIBlocked Status = "PHI_BLOCKED"
	StatusApproved   Status = "APPROVED"
	StatusDenied     Status = "DENIED"
	StatusExpired    Status = "EXPIRED"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPHIBlocked, StatusApproved, StatusDenied, StatusExpired:
		return st, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown export status")
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusExpired
}

// Decision is an approver's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionDeny:
		return d, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, "decision must be approve or deny")
	}
}

// BundleType names what is being exported.
type BundleType string

const (
	BundleDataset    BundleType = "dataset"
	BundleManuscript BundleType = "manuscript"
	BundleAnalysis   BundleType = "analysis"
	BundleFull       BundleType = "full"
)

func ParseBundleType(s string) (BundleType, error) {
	switch b := BundleType(strings.ToLower(strings.TrimSpace(s))); b {
	case BundleDataset, BundleManuscript, BundleAnalysis, BundleFull:
		return b, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "bundle_type is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "unknown bundle_type")
	}
}

// PHIOverride records the steward's justification for releasing a
// PHI-blocked bundle.
type PHIOverride struct {
	Approved      bool   `json:"approved"`
	Justification string `json:"justification"`
	ApprovedBy    string `json:"approved_by"`
}

// Request is an export awaiting or past approval.
//
// Invariants:
//   - APPROVED, DENIED and EXPIRED are terminal
//   - ResolvedAt is set exactly when Status is terminal
//   - PHIOverride is only set on an approved request that was PHI_BLOCKED
type Request struct {
	ID            domain.ExportID `json:"id"`
	RequesterID   string          `json:"requester_id"`
	RequesterRole domain.Role     `json:"requester_role"`
	BundleType    BundleType      `json:"bundle_type"`
	ScanID        *domain.ScanID  `json:"scan_id,omitempty"`
	Status        Status          `json:"status"`
	PHIDetected   bool            `json:"phi_detected"`
	PHIOverride   *PHIOverride    `json:"phi_override,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy    string          `json:"resolved_by,omitempty"`
}

// initialStatus is PHI_BLOCKED when the bundle carries detected PHI.
func initialStatus(phiDetected bool) Status {
	if phiDetected {
		return StatusPHIBlocked
	}
	return StatusPending
}

// NewRequest builds a fresh request in its initial state.
func NewRequest(requesterID string, role domain.Role, bundle BundleType, scanID *domain.ScanID, phiDetected bool, now time.Time) *Request {
	return &Request{
		ID:            domain.NewExportID(),
		RequesterID:   requesterID,
		RequesterRole: role,
		BundleType:    bundle,
		ScanID:        scanID,
		Status:        initialStatus(phiDetected),
		PHIDetected:   phiDetected,
		CreatedAt:     now,
	}
}

// IsStale reports whether a non-terminal request has outlived ttl.
func (r *Request) IsStale(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !r.Status.IsTerminal() && !now.Before(r.CreatedAt.Add(ttl))
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	if r.ScanID != nil {
		id := *r.ScanID
		cp.ScanID = &id
	}
	if r.PHIOverride != nil {
		o := *r.PHIOverride
		cp.PHIOverride = &o
	}
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// Resolved returns the request after decision by approver. The receiver is
// unchanged. Resolving a PHI_BLOCKED request always stamps PHIOverride, with
// Approved matching the decision. Callers check terminal state and
// justification first.
func (r *Request) Resolved(d Decision, approver, justification string, now time.Time) *Request {
	next := r.Clone()
	next.Status = StatusDenied
	if d == DecisionApprove {
		next.Status = StatusApproved
	}
	if r.Status == StatusPHIBlocked {
		next.PHIOverride = &PHIOverride{
			Approved:      d == DecisionApprove,
			Justification: justification,
			ApprovedBy:    approver,
		}
	}
	next.ResolvedAt = &now
	next.ResolvedBy = approver
	return next
}

// Expired returns the request moved to EXPIRED at now.
func (r *Request) Expired(now time.Time) *Request {
	next := r.Clone()
	next.Status = StatusExpired
	next.ResolvedAt = &now
	next.ResolvedBy = ""
	return next
}

// AlreadyResolvedError describes why a terminal request cannot be resolved.
func AlreadyResolvedError(s Status) error {
	return dErrors.New(dErrors.CodeAlreadyResolved, "already "+strings.ToLower(string(s)))
}
