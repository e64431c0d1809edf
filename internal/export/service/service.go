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
	"vigil/internal/export"
	"vigil/internal/export/metrics"
	"vigil/internal/mode"
	"vigil/internal/risk"
	"vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// DefaultRequestTTL bounds how long a request may stay unresolved.
const DefaultRequestTTL = 72 * time.Hour

// systemActor is the audit user for transitions no caller asked for.
const systemActor = "system"

const resourceExport = "export_request"

// Store persists export requests. CompareAndSwap replaces the stored request
// only while its status still equals expected; otherwise it returns
// sentinel.ErrConflict. Missing requests are sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, r *export.Request) error
	FindByID(ctx context.Context, id domain.ExportID) (*export.Request, error)
	List(ctx context.Context, statuses ...export.Status) ([]*export.Request, error)
	CompareAndSwap(ctx context.Context, expected export.Status, updated *export.Request) error
}

// AuditAppender records workflow events in the audit chain.
type AuditAppender interface {
	Append(ctx context.Context, f audit.Fields) (*audit.Entry, error)
}

// Gate checks a capability against the operating mode.
type Gate interface {
	Authorize(ctx context.Context, capability mode.Capability, operation string) error
}

// Scanner classifies export content for PHI.
type Scanner interface {
	ScanSections(ctx context.Context, sections []risk.Section, scanContext risk.ScanContext) (*risk.ScanResult, error)
}

// CreateRequest opens an export for an already classified bundle.
type CreateRequest struct {
	BundleType  export.BundleType
	ScanID      *domain.ScanID
	PHIDetected bool
}

// SubmitRequest carries the content to scan and export.
type SubmitRequest struct {
	BundleType export.BundleType
	Sections   []risk.Section
}

// SubmitResult pairs the opened request with the scan that classified it.
type SubmitResult struct {
	Request *export.Request  `json:"request"`
	Scan    *risk.ScanResult `json:"scan"`
}

// Service runs the export approval workflow.
type Service struct {
	store      Store
	audit      AuditAppender
	gate       Gate
	scanner    Scanner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	requestTTL time.Duration
	now        func() time.Time
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

func WithScanner(scanner Scanner) Option {
	return func(s *Service) {
		s.scanner = scanner
	}
}

// WithRequestTTL sets the unresolved lifetime. Zero disables expiry.
func WithRequestTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.requestTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, appender AuditAppender, gate Gate, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("export store is required")
	}
	if appender == nil {
		return nil, errors.New("audit appender is required")
	}
	if gate == nil {
		return nil, errors.New("mode gate is required")
	}
	s := &Service{
		store:      store,
		audit:      appender,
		gate:       gate,
		tracer:     otel.Tracer("vigil/export"),
		requestTTL: DefaultRequestTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit scans the bundle in export context and opens a request for it.
// The mode gate runs before any content is scanned.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "export.Submit", trace.WithAttributes(
		attribute.String("export.bundle_type", string(req.BundleType)),
	))
	defer span.End()

	if err := s.gate.Authorize(ctx, mode.CapabilityExport, "export.submit"); err != nil {
		span.SetStatus(codes.Error, "blocked")
		return nil, err
	}
	if s.scanner == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "export scanning is not configured")
	}
	if len(req.Sections) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if _, err := export.ParseBundleType(string(req.BundleType)); err != nil {
		return nil, err
	}

	scan, err := s.scanner.ScanSections(ctx, req.Sections, risk.ContextExport)
	if err != nil {
		span.SetStatus(codes.Error, "scan")
		return nil, err
	}

	scanID := scan.ScanID
	created, err := s.Create(ctx, CreateRequest{
		BundleType:  req.BundleType,
		ScanID:      &scanID,
		PHIDetected: scan.RiskLevel != risk.LevelNone,
	})
	if err != nil {
		span.SetStatus(codes.Error, "create")
		return nil, err
	}
	return &SubmitResult{Request: created, Scan: scan}, nil
}

// Create opens an export request for the caller. It is refused outright
// unless the operating mode allows export.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*export.Request, error) {
	if err := s.gate.Authorize(ctx, mode.CapabilityExport, "export.create"); err != nil {
		return nil, err
	}
	bundle, err := export.ParseBundleType(string(req.BundleType))
	if err != nil {
		return nil, err
	}
	requester := requestcontext.UserID(ctx)
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	r := export.NewRequest(requester, requestcontext.Role(ctx), bundle, req.ScanID, req.PHIDetected, s.now())

	details := audit.Details{
		"bundle_type":  string(r.BundleType),
		"status":       string(r.Status),
		"phi_detected": strconv.FormatBool(r.PHIDetected),
	}
	if r.ScanID != nil {
		details["scan_id"] = r.ScanID.String()
	}
	if _, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventDataExport,
		Action:       audit.ActionExportRequested,
		UserID:       requester,
		ResourceType: resourceExport,
		ResourceID:   r.ID.String(),
		Details:      details,
	}); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store export request")
	}

	if s.metrics != nil {
		s.metrics.IncRequest(string(r.Status))
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "export requested",
			"request_id", requestcontext.RequestID(ctx),
			"export_id", r.ID,
			"status", r.Status,
			"bundle_type", r.BundleType,
		)
	}
	return r.Clone(), nil
}

// Resolve records an approver's decision. Exactly one audit entry is written
// per successful resolution; if it cannot be written the transition is
// rolled back and the error returned.
func (s *Service) Resolve(ctx context.Context, id domain.ExportID, approverRole domain.Role, decision export.Decision, justification string) (*export.Request, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "export.Resolve", trace.WithAttributes(
		attribute.String("export.id", id.String()),
		attribute.String("export.decision", string(decision)),
	))
	defer span.End()

	if err := s.gate.Authorize(ctx, mode.CapabilityExport, "export.resolve"); err != nil {
		span.SetStatus(codes.Error, "blocked")
		return nil, err
	}
	if !approverRole.CanApprove() {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	decision, err := export.ParseDecision(string(decision))
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, export.AlreadyResolvedError(current.Status)
	}

	if current.Status == export.StatusPHIBlocked {
		justification, err = domain.NormalizeJustification(justification)
		if err != nil {
			return nil, err
		}
	}

	approver := requestcontext.UserID(ctx)
	next := current.Resolved(decision, approver, justification, s.now())
	if err := s.store.CompareAndSwap(ctx, current.Status, next); err != nil {
		return nil, s.lostRace(ctx, id, err)
	}

	action := audit.ActionExportDenied
	if decision == export.DecisionApprove {
		action = audit.ActionExportApproved
	}
	details := audit.Details{
		"decision":        string(decision),
		"previous_status": string(current.Status),
		"approver_role":   approverRole.String(),
		"bundle_type":     string(current.BundleType),
	}
	if next.PHIOverride != nil {
		details["phi_override"] = strconv.FormatBool(next.PHIOverride.Approved)
		details["justification_length"] = strconv.Itoa(len([]rune(next.PHIOverride.Justification)))
	}
	if _, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventDataExport,
		Action:       action,
		UserID:       approver,
		ResourceType: resourceExport,
		ResourceID:   id.String(),
		Details:      details,
	}); err != nil {
		span.SetStatus(codes.Error, "audit")
		return nil, s.revert(ctx, next, current, err)
	}

	if s.metrics != nil {
		s.metrics.ObserveResolution(string(decision), start)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "export resolved",
			"request_id", requestcontext.RequestID(ctx),
			"export_id", id,
			"decision", decision,
			"previous_status", current.Status,
			"approver_role", approverRole,
		)
	}
	return next, nil
}

// Get returns a request, expiring it first if it has gone stale.
func (s *Service) Get(ctx context.Context, id domain.ExportID) (*export.Request, error) {
	return s.load(ctx, id)
}

// List returns requests in the given statuses (all when none are given),
// newest first. Stale requests are expired before filtering.
func (s *Service) List(ctx context.Context, statuses ...export.Status) ([]*export.Request, error) {
	rows, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list export requests")
	}
	out := make([]*export.Request, 0, len(rows))
	for _, r := range rows {
		if r.IsStale(s.now(), s.requestTTL) {
			r, err = s.expire(ctx, r)
			if err != nil {
				return nil, err
			}
		}
		if matches(r.Status, statuses) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(st export.Status, filter []export.Status) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == st {
			return true
		}
	}
	return false
}

// load reads a request and applies lazy expiry.
func (s *Service) load(ctx context.Context, id domain.ExportID) (*export.Request, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "export request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load export request")
	}
	if r.IsStale(s.now(), s.requestTTL) {
		return s.expire(ctx, r)
	}
	return r, nil
}

// expire moves a stale request to EXPIRED and records EXPORT_EXPIRED. If
// another writer got there first the stored request is returned instead.
func (s *Service) expire(ctx context.Context, r *export.Request) (*export.Request, error) {
	next := r.Expired(s.now())
	if err := s.store.CompareAndSwap(ctx, r.Status, next); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return s.reload(ctx, r.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire export request")
	}

	touchedBy := requestcontext.UserID(ctx)
	if touchedBy == "" {
		touchedBy = systemActor
	}
	if _, err := s.audit.Append(ctx, audit.Fields{
		EventType:    audit.EventDataExport,
		Action:       audit.ActionExportExpired,
		UserID:       systemActor,
		ResourceType: resourceExport,
		ResourceID:   r.ID.String(),
		Details: audit.Details{
			"previous_status": string(r.Status),
			"ttl":             s.requestTTL.String(),
			"touched_by":      touchedBy,
		},
	}); err != nil {
		return nil, s.revert(ctx, next, r, err)
	}

	if s.metrics != nil {
		s.metrics.IncExpired()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "export request expired",
			"request_id", requestcontext.RequestID(ctx),
			"export_id", r.ID,
			"previous_status", r.Status,
		)
	}
	return next, nil
}

// revert swaps applied back to previous after its audit entry failed and
// returns the audit error.
func (s *Service) revert(ctx context.Context, applied, previous *export.Request, auditErr error) error {
	if s.metrics != nil {
		s.metrics.IncRevert()
	}
	if err := s.store.CompareAndSwap(ctx, applied.Status, previous); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "CRITICAL: export transition applied without audit entry",
				"request_id", requestcontext.RequestID(ctx),
				"export_id", applied.ID,
				"status", applied.Status,
				"audit_error", auditErr,
				"error", err,
			)
		}
		return errors.Join(auditErr, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revert export transition"))
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "export transition reverted",
			"request_id", requestcontext.RequestID(ctx),
			"export_id", applied.ID,
			"status", previous.Status,
			"error", auditErr,
		)
	}
	return auditErr
}

// lostRace maps a failed compare-and-swap to the error the caller sees.
func (s *Service) lostRace(ctx context.Context, id domain.ExportID, err error) error {
	if !errors.Is(err, sentinel.ErrConflict) {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "export request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update export request")
	}
	winner, rerr := s.reload(ctx, id)
	if rerr != nil {
		return rerr
	}
	if winner.Status.IsTerminal() {
		return export.AlreadyResolvedError(winner.Status)
	}
	return dErrors.New(dErrors.CodeConflict, "export request changed concurrently")
}

func (s *Service) reload(ctx context.Context, id domain.ExportID) (*export.Request, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "export request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load export request")
	}
	return r, nil
}
