package arrears

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

type runner interface {
	Run(ctx context.Context) (*Result, error)
}

// Scheduler runs the aging job on a fixed interval until its context is
// cancelled. A failed run is simply retried on the next tick.
type Scheduler struct {
	job      runner
	logger   *slog.Logger
	interval time.Duration
}

func NewScheduler(job runner, logger *slog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{job: job, logger: logger, interval: interval}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("aging scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("aging scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.job.Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		s.logger.Debug("aging run already in progress elsewhere")
	default:
		var partial *BatchPartialFailure
		if errors.As(err, &partial) {
			s.logger.Warn("aging run partially failed, retrying next tick", "failed", len(partial.Failed))
			return
		}
		s.logger.Error("aging run failed", "error", err)
	}
}
