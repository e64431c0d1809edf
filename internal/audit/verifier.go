package audit

import (
	"context"
	"log/slog"
	"time"
)

// Verifier periodically re-validates the whole chain.
type Verifier struct {
	chain    *Chain
	interval time.Duration
	logger   *slog.Logger
}

func NewVerifier(chain *Chain, interval time.Duration, logger *slog.Logger) *Verifier {
	return &Verifier{chain: chain, interval: interval, logger: logger}
}

// Run verifies once immediately and then on every tick. It returns the
// integrity error on the first broken verification so the process can halt
// rather than keep appending to a tampered log. Load failures are logged and
// retried on the next tick.
func (v *Verifier) Run(ctx context.Context) error {
	if v.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		if err := v.verifyOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (v *Verifier) verifyOnce(ctx context.Context) error {
	report, err := v.chain.Verify(ctx)
	if err == nil {
		if v.logger != nil {
			v.logger.DebugContext(ctx, "audit chain verified", "entries", report.EntriesValidated)
		}
		return nil
	}
	if !report.Valid && report.BrokenAt != nil {
		return err
	}
	if v.logger != nil {
		v.logger.WarnContext(ctx, "audit chain verification skipped", "error", err)
	}
	return nil
}
