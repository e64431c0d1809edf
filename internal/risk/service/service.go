package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/audit"
	"vigil/internal/risk"
	"vigil/internal/risk/metrics"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

const (
	DefaultScanTTL     = time.Hour
	DefaultOverrideTTL = 24 * time.Hour
)

// Override rejection reasons, recorded in audit details and metrics.
const (
	RejectScanNotFound     = "scan_not_found"
	RejectJustification    = "invalid_justification"
	RejectInsufficientRole = "insufficient_role"
)

const (
	outcomeGranted   = "granted"
	resourceScan     = "scan"
	resourceOverride = "phi_override"
)

// Store retains scan results and override grants. Records are returned even
// past their ExpiresAt; the service decides what expiry means. Missing
// records are sentinel.ErrNotFound.
type Store interface {
	SaveScan(ctx context.Context, result *risk.ScanResult) error
	FindScan(ctx context.Context, id domain.ScanID) (*risk.ScanResult, error)
	SaveOverride(ctx context.Context, o *risk.Override) error
	FindOverride(ctx context.Context, id domain.OverrideID) (*risk.Override, error)
}

// AuditAppender records governance events in the audit chain.
type AuditAppender interface {
	Append(ctx context.Context, f audit.Fields) (*audit.Entry, error)
}

// Service scans content for PHI and manages override grants.
type Service struct {
	store       Store
	audit       AuditAppender
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	scanTTL     time.Duration
	overrideTTL time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithScanTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.scanTTL = ttl
		}
	}
}

func WithOverrideTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.overrideTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, appender AuditAppender, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("scan store is required")
	}
	if appender == nil {
		return nil, errors.New("audit appender is required")
	}
	s := &Service{
		store:       store,
		audit:       appender,
		tracer:      otel.Tracer("vigil/risk"),
		scanTTL:     DefaultScanTTL,
		overrideTTL: DefaultOverrideTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan classifies a single piece of content.
func (s *Service) Scan(ctx context.Context, content string, scanContext risk.ScanContext) (*risk.ScanResult, error) {
	return s.ScanSections(ctx, []risk.Section{{Name: risk.DefaultSection, Content: content}}, scanContext)
}

// ScanSections classifies multi-part content as one scan, retains the result
// for the scan TTL and records one PHI_SCAN audit entry. If the entry cannot
// be written the scan fails and its id is never returned.
func (s *Service) ScanSections(ctx context.Context, sections []risk.Section, scanContext risk.ScanContext) (*risk.ScanResult, error) {
	start := time.Now()
	if _, ok := risk.ParseScanContext(string(scanContext)); !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "scan context must be one of upload, export, other")
	}
	if len(sections) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "content is required")
	}

	ctx, span := s.tracer.Start(ctx, "risk.Scan", trace.WithAttributes(
		attribute.String("scan.context", string(scanContext)),
		attribute.Int("scan.sections", len(sections)),
	))
	defer span.End()

	findings := risk.ClassifySections(sections, scanContext)
	length := 0
	for _, sec := range sections {
		length += len(sec.Content)
	}
	now := s.now()
	result := &risk.ScanResult{
		ScanID:           domain.NewScanID(),
		Context:          scanContext,
		ContentLength:    length,
		Detected:         findings.Detected,
		RiskLevel:        findings.RiskLevel,
		RequiresOverride: findings.RequiresOverride,
		Summary:          findings.Summary,
		ScannedBy:        requestcontext.UserID(ctx),
		ScannedAt:        now,
		ExpiresAt:        now.Add(s.scanTTL),
	}
	span.SetAttributes(attribute.String("scan.risk_level", string(result.RiskLevel)))

	if err := s.store.SaveScan(ctx, result); err != nil {
		span.SetStatus(codes.Error, "save scan")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store scan result")
	}

	details := audit.Details{
		"context":           string(result.Context),
		"risk_level":        string(result.RiskLevel),
		"detections":        strconv.Itoa(len(result.Detected)),
		"requires_override": strconv.FormatBool(result.RequiresOverride),
		"content_length":    strconv.Itoa(result.ContentLength),
		"sections":          strconv.Itoa(len(sections)),
	}
	for category, n := range result.Summary {
		details["count_"+string(category)] = strconv.Itoa(n)
	}
	if _, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventPHIScan,
		Action:       audit.ActionScanCompleted,
		UserID:       result.ScannedBy,
		ResourceType: resourceScan,
		ResourceID:   result.ScanID.String(),
		Details:      details,
	}); err != nil {
		span.SetStatus(codes.Error, "audit scan")
		return nil, err
	}

	if s.metrics != nil {
		summary := make(map[string]int, len(result.Summary))
		for c, n := range result.Summary {
			summary[string(c)] = n
		}
		s.metrics.RecordScan(string(result.Context), string(result.RiskLevel), summary, start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "phi scan completed",
			"request_id", requestcontext.RequestID(ctx),
			"scan_id", result.ScanID,
			"context", result.Context,
			"risk_level", result.RiskLevel,
			"detections", len(result.Detected),
		)
	}
	return result, nil
}

// GetScanResult returns a retained scan. Missing and expired scans are both
// CodeNotFound.
func (s *Service) GetScanResult(ctx context.Context, id domain.ScanID) (*risk.ScanResult, error) {
	result, err := s.store.FindScan(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "scan not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scan")
	}
	if result.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeNotFound, "scan not found")
	}
	return result, nil
}

// RequestOverride grants a time-boxed permission to proceed despite the PHI
// found by scan id. The approver is the caller in ctx; approverRole must be
// STEWARD or above. Every rejection is audited as OVERRIDE_REJECTED.
func (s *Service) RequestOverride(ctx context.Context, id domain.ScanID, justification string, approverRole domain.Role) (*risk.OverrideResult, error) {
	ctx, span := s.tracer.Start(ctx, "risk.RequestOverride", trace.WithAttributes(
		attribute.String("scan.id", id.String()),
		attribute.String("approver.role", approverRole.String()),
	))
	defer span.End()

	scan, err := s.GetScanResult(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.auditRejection(ctx, id, approverRole, RejectScanNotFound)
		}
		return nil, err
	}

	justification, err = domain.NormalizeJustification(justification)
	if err != nil {
		s.auditRejection(ctx, id, approverRole, RejectJustification)
		return nil, err
	}

	if !approverRole.CanApprove() {
		s.auditRejection(ctx, id, approverRole, RejectInsufficientRole)
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}

	now := s.now()
	o := &risk.Override{
		ID:            domain.NewOverrideID(),
		ScanID:        scan.ScanID,
		ApprovedBy:    requestcontext.UserID(ctx),
		ApproverRole:  approverRole,
		Justification: justification,
		Conditions:    overrideConditions(scan),
		GrantedAt:     now,
		ExpiresAt:     now.Add(s.overrideTTL),
	}

	entry, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventGovernance,
		Action:       audit.ActionOverrideGranted,
		UserID:       o.ApprovedBy,
		ResourceType: resourceOverride,
		ResourceID:   o.ID.String(),
		Details: audit.Details{
			"scan_id":              scan.ScanID.String(),
			"approver_role":        approverRole.String(),
			"risk_level":           string(scan.RiskLevel),
			"justification_length": strconv.Itoa(len([]rune(justification))),
			"expires_at":           o.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		span.SetStatus(codes.Error, "audit override")
		return nil, err
	}
	o.AuditID = entry.ID.String()

	if err := s.store.SaveOverride(ctx, o); err != nil {
		span.SetStatus(codes.Error, "save override")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store override")
	}

	if s.metrics != nil {
		s.metrics.IncOverride(outcomeGranted)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "phi override granted",
			"request_id", requestcontext.RequestID(ctx),
			"scan_id", scan.ScanID,
			"override_id", o.ID,
			"approver_role", approverRole,
			"expires_at", o.ExpiresAt,
		)
	}
	return &risk.OverrideResult{
		Approved:   true,
		OverrideID: o.ID,
		AuditID:    o.AuditID,
		Conditions: o.Conditions,
		ExpiresAt:  o.ExpiresAt,
	}, nil
}

// ActiveOverride returns a grant that is still in force.
func (s *Service) ActiveOverride(ctx context.Context, id domain.OverrideID) (*risk.Override, error) {
	o, err := s.store.FindOverride(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load override")
	}
	if o.IsExpired(s.now()) {
		return nil, dErrors.New(dErrors.CodeExpired, "override expired")
	}
	return o, nil
}

func (s *Service) auditRejection(ctx context.Context, id domain.ScanID, role domain.Role, reason string) {
	if s.metrics != nil {
		s.metrics.IncOverride(reason)
	}
	_, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventGovernance,
		Action:       audit.ActionOverrideRejected,
		UserID:       requestcontext.UserID(ctx),
		ResourceType: resourceScan,
		ResourceID:   id.String(),
		Details: audit.Details{
			"reason":        reason,
			"approver_role": role.String(),
		},
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to audit override rejection",
			"request_id", requestcontext.RequestID(ctx),
			"scan_id", id,
			"reason", reason,
			"error", err,
		)
	}
}

// overrideConditions derives the operational constraints attached to a
// grant. The list is never empty.
func overrideConditions(scan *risk.ScanResult) []string {
	conds := []string{"access_logged", "no_redistribution"}
	if scan.HasCategory(risk.CategorySSN) || scan.HasCategory(risk.CategoryMRN) {
		conds = append(conds, "redact_direct_identifiers")
	}
	if scan.HasCategory(risk.CategoryAddress) || scan.HasCategory(risk.CategoryZip) {
		conds = append(conds, "generalize_geography")
	}
	if scan.HasCategory(risk.CategoryDate) {
		conds = append(conds, "shift_or_truncate_dates")
	}
	if scan.RiskLevel == risk.LevelHigh {
		conds = append(conds, "steward_review_before_release")
	}
	if scan.Context == risk.ContextExport {
		conds = append(conds, "watermark_exported_bundle")
	}
	return conds
}
