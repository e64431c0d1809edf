package audit

import (
	"context"
	"log/slog"

	"vigil/internal/audit/metrics"
	"vigil/pkg/platform/circuit"
)

// Sink receives committed entries for downstream consumers.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}

// Worker drains the chain's outbox into a Sink. Publication is best effort:
// failures are logged and counted, the chain itself is already durable.
// With a breaker attached, entries arriving while the circuit is open are
// skipped instead of queueing behind a dead broker.
type Worker struct {
	sink    Sink
	inbox   <-chan Entry
	logger  *slog.Logger
	metrics *metrics.Metrics
	breaker *circuit.Breaker
}

type WorkerOption func(*Worker)

func WithBreaker(b *circuit.Breaker) WorkerOption {
	return func(w *Worker) {
		w.breaker = b
	}
}

func NewWorker(sink Sink, inbox <-chan Entry, logger *slog.Logger, m *metrics.Metrics, opts ...WorkerOption) *Worker {
	w := &Worker{sink: sink, inbox: inbox, logger: logger, metrics: m}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.publish(ctx, entry)
		}
	}
}

func (w *Worker) publish(ctx context.Context, entry Entry) {
	if w.breaker != nil && !w.breaker.Allow() {
		if w.metrics != nil {
			w.metrics.IncPublishSkipped()
		}
		return
	}

	err := w.sink.Publish(ctx, entry)
	if err == nil {
		if w.breaker != nil {
			if _, change := w.breaker.RecordSuccess(); change.Closed {
				w.log(ctx, slog.LevelInfo, "audit publisher circuit closed", "breaker", w.breaker.Name())
			}
		}
		return
	}

	if w.metrics != nil {
		w.metrics.IncPublishFailures()
	}
	w.log(ctx, slog.LevelWarn, "audit entry publish failed",
		"entry_id", entry.ID,
		"action", entry.Action,
		"error", err,
	)
	if w.breaker != nil {
		if _, change := w.breaker.RecordFailure(); change.Opened {
			w.log(ctx, slog.LevelError, "audit publisher circuit opened", "breaker", w.breaker.Name())
		}
	}
}

func (w *Worker) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if w.logger != nil {
		w.logger.Log(ctx, level, msg, args...)
	}
}
