package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/audit/metrics"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/sentinel"
)

// Store persists chain entries in append order.
type Store interface {
	// Tail returns the most recently appended entry, or sentinel.ErrNotFound
	// when the chain is empty.
	Tail(ctx context.Context) (*Entry, error)
	// AppendIfTail stores entry only if the current tail hash equals
	// expectedTail (GenesisHash for an empty chain). It returns
	// sentinel.ErrConflict otherwise.
	AppendIfTail(ctx context.Context, entry Entry, expectedTail string) error
	// List returns every entry in append order.
	List(ctx context.Context) ([]Entry, error)
	// ListRecent returns up to limit of the newest entries in append order.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Appender is the port other modules depend on to record governance events.
type Appender interface {
	Append(ctx context.Context, f Fields) (*Entry, error)
}

// Chain is the single writer of the audit log. Appends are serialized in
// process; the store's compare-and-append catches writers in other processes.
type Chain struct {
	mu      sync.Mutex
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	outbox  chan<- Entry
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Chain)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithOutbox forwards every committed entry to ch without blocking. Entries
// are dropped when ch is full; the store remains the source of truth.
func WithOutbox(ch chan<- Entry) Option {
	return func(c *Chain) {
		c.outbox = ch
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		c.now = now
	}
}

func New(store Store, opts ...Option) (*Chain, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	c := &Chain{
		store:  store,
		tracer: otel.Tracer("vigil/audit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Append links a new entry to the current tail and persists it.
func (c *Chain) Append(ctx context.Context, f Fields) (*Entry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "audit.Append", trace.WithAttributes(
		attribute.String("audit.event_type", string(f.EventType)),
		attribute.String("audit.action", f.Action),
	))
	defer span.End()

	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash := GenesisHash
	createdAt := c.now()
	tail, err := c.store.Tail(ctx)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		span.SetStatus(codes.Error, "read tail")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit chain tail")
	default:
		prevHash = tail.EntryHash
		if createdAt.Before(tail.CreatedAt) {
			createdAt = tail.CreatedAt
		}
	}

	entry := newEntry(f, createdAt, prevHash)
	if err := c.store.AppendIfTail(ctx, entry, prevHash); err != nil {
		span.SetStatus(codes.Error, "append")
		if errors.Is(err, sentinel.ErrConflict) {
			if c.metrics != nil {
				c.metrics.IncConflict()
			}
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "audit chain tail moved during append")
		}
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "audit append failed",
				"event_type", f.EventType,
				"action", f.Action,
				"error", err,
			)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist audit entry")
	}

	span.SetAttributes(attribute.String("audit.entry_id", entry.ID.String()))
	if c.metrics != nil {
		c.metrics.IncAppended(string(entry.EventType))
		c.metrics.ObserveAppend(start)
	}
	c.forward(entry)
	return &entry, nil
}

func (c *Chain) forward(entry Entry) {
	if c.outbox == nil {
		return
	}
	select {
	case c.outbox <- entry:
	default:
		if c.metrics != nil {
			c.metrics.IncOutboxDropped()
		}
		if c.logger != nil {
			c.logger.Warn("audit outbox full, entry not forwarded", "entry_id", entry.ID)
		}
	}
}

// Verify loads the full chain and validates it. A broken chain is reported
// both in the Report and as a CodeChainIntegrity error.
func (c *Chain) Verify(ctx context.Context) (Report, error) {
	ctx, span := c.tracer.Start(ctx, "audit.Verify")
	defer span.End()

	entries, err := c.store.List(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "list")
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit chain")
	}

	report := Validate(entries)
	if c.metrics != nil {
		c.metrics.RecordVerification(report.Valid, report.EntriesValidated)
	}
	span.SetAttributes(
		attribute.Bool("audit.valid", report.Valid),
		attribute.Int("audit.entries_validated", report.EntriesValidated),
	)
	if report.Valid {
		return report, nil
	}

	span.SetStatus(codes.Error, report.Reason)
	if c.logger != nil {
		c.logger.ErrorContext(ctx, "CRITICAL: audit chain integrity violation",
			"broken_index", report.BrokenIndex,
			"broken_at", report.BrokenAt,
			"reason", report.Reason,
		)
	}
	return report, dErrors.New(dErrors.CodeChainIntegrity, "audit chain broken at entry "+report.BrokenAt.String()+": "+report.Reason)
}

// Entries returns up to limit of the newest entries in append order.
// A non-positive limit returns the whole chain.
func (c *Chain) Entries(ctx context.Context, limit int) ([]Entry, error) {
	var (
		entries []Entry
		err     error
	)
	if limit <= 0 {
		entries, err = c.store.List(ctx)
	} else {
		entries, err = c.store.ListRecent(ctx, limit)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}
