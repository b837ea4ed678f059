package verification

import (
	"context"
	"log/slog"
	"time"

	"github.com/resumeworks/resume-verify/pkg/audit"
	"github.com/resumeworks/resume-verify/pkg/tokenstore"
)

// Sweeper periodically removes expired, never-used token rows. It runs off
// the request path; redemption never depends on a sweep having happened.
type Sweeper struct {
	tokens   tokenstore.Repository
	auditLog audit.Recorder
	interval time.Duration
	now      func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets the time between sweeps.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithSweeperClock overrides the sweeper clock.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper creates a sweeper over the given token repository.
func NewSweeper(tokens tokenstore.Repository, auditLog audit.Recorder, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		tokens:   tokens,
		auditLog: auditLog,
		interval: 1 * time.Hour,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes expired unused tokens and records the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	count, err := s.tokens.SweepExpired(ctx, s.now().UTC())
	if err != nil {
		slog.Error("Failed to sweep expired tokens", "err", err)
		s.auditLog.Record(ctx, audit.Entry{
			Action:       audit.ActionSweep,
			Success:      false,
			ErrorMessage: errMessage(err),
		})
		return
	}

	if count > 0 {
		slog.Info("Swept expired verification tokens", "count", count)
	}
	s.auditLog.Record(ctx, audit.Entry{
		Action:  audit.ActionSweep,
		Success: true,
	})
}
