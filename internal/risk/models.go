package risk

import (
	"strings"
	"time"

	"vigil/pkg/domain"
)

// Category is the kind of identifier a matcher recognizes.
type Category string

const (
	CategorySSN     Category = "ssn"
	CategoryMRN     Category = "mrn"
	CategoryName    Category = "name"
	CategoryPhone   Category = "phone"
	CategoryEmail   Category = "email"
	CategoryDate    Category = "date"
	CategoryAddress Category = "address"
	CategoryZip     Category = "zip"
)

// Severity ranks how directly a category identifies a person.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// SuggestedAction is the remediation offered for a detection.
type SuggestedAction string

const (
	ActionRedact SuggestedAction = "redact"
	ActionReview SuggestedAction = "review"
	ActionRemove SuggestedAction = "remove"
)

// Level is the aggregate risk of a scan.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// ScanContext is the purpose the scanned content is headed for.
type ScanContext string

const (
	ContextUpload ScanContext = "upload"
	ContextExport ScanContext = "export"
	ContextOther  ScanContext = "other"
)

// ParseScanContext maps external input to a context. Unknown values are
// rejected rather than defaulted.
func ParseScanContext(s string) (ScanContext, bool) {
	switch c := ScanContext(strings.ToLower(strings.TrimSpace(s))); c {
	case ContextUpload, ContextExport, ContextOther:
		return c, true
	default:
		return "", false
	}
}

// Detection locates one identifier by offset. It deliberately has no field
// for the matched text or its surroundings.
//
// StartIndex and EndIndex are byte offsets into the section content,
// half-open.
type Detection struct {
	DetectionID     string          `json:"detection_id"`
	Section         string          `json:"section"`
	Category        Category        `json:"category"`
	Pattern         string          `json:"pattern"`
	StartIndex      int             `json:"start_index"`
	EndIndex        int             `json:"end_index"`
	Severity        Severity        `json:"severity"`
	SuggestedAction SuggestedAction `json:"suggested_action"`
	HIPAAIdentifier string          `json:"hipaa_identifier"`
}

// Section is one named piece of content, e.g. a manuscript section or a
// dataset column.
type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Findings is the pure result of classifying content.
type Findings struct {
	Detected         []Detection      `json:"detected"`
	RiskLevel        Level            `json:"risk_level"`
	RequiresOverride bool             `json:"requires_override"`
	Summary          map[Category]int `json:"summary"`
}

// ScanResult is a retained classification, addressable by ScanID until
// ExpiresAt.
type ScanResult struct {
	ScanID           domain.ScanID    `json:"scan_id"`
	Context          ScanContext      `json:"context"`
	ContentLength    int              `json:"content_length"`
	Detected         []Detection      `json:"detected"`
	RiskLevel        Level            `json:"risk_level"`
	RequiresOverride bool             `json:"requires_override"`
	Summary          map[Category]int `json:"summary"`
	ScannedBy        string           `json:"scanned_by,omitempty"`
	ScannedAt        time.Time        `json:"scanned_at"`
	ExpiresAt        time.Time        `json:"expires_at"`
}

// IsExpired reports whether the result is past its retention at now.
func (r *ScanResult) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HasCategory reports whether any detection is of category c.
func (r *ScanResult) HasCategory(c Category) bool {
	return r.Summary[c] > 0
}

// Override is a persisted, time-boxed permission to proceed despite PHI
// findings. The justification text is kept with the grant and never copied
// into audit details.
type Override struct {
	ID            domain.OverrideID `json:"override_id"`
	ScanID        domain.ScanID     `json:"scan_id"`
	ApprovedBy    string            `json:"approved_by"`
	ApproverRole  domain.Role       `json:"approver_role"`
	Justification string            `json:"justification"`
	Conditions    []string          `json:"conditions"`
	AuditID       string            `json:"audit_id"`
	GrantedAt     time.Time         `json:"granted_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

// IsExpired reports whether the grant has lapsed at now.
func (o *Override) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// OverrideResult is returned to the approver.
type OverrideResult struct {
	Approved   bool              `json:"approved"`
	OverrideID domain.OverrideID `json:"override_id"`
	AuditID    string            `json:"audit_id"`
	Conditions []string          `json:"conditions"`
	ExpiresAt  time.Time         `json:"expires_at"`
}
