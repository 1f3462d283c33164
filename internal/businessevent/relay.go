package businessevent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type relayStore interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.BusinessEvent, error)
	MarkDispatched(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
	MarkFailedAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string, maxAttempts int) (domain.BusinessEventStatus, error)
}

type Publisher interface {
	Publish(ctx context.Context, e domain.BusinessEvent) error
}

type Relay struct {
	db          txBeginner
	store       relayStore
	publisher   Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(db txBeginner, store relayStore, publisher Publisher, opts ...RelayOption) *Relay {
	r := &Relay{
		db:          db,
		store:       store,
		publisher:   publisher,
		logger:      slog.Default(),
		interval:    5 * time.Second,
		batchSize:   50,
		maxAttempts: 10,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("business event relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("business event relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil {
				r.logger.Error("business event relay poll failed", "error", err)
			}
		}
	}
}

// Poll claims one batch of pending events and publishes them in creation
// order. A failed publish counts an attempt against that event and holds back
// the loan's later events in the batch; other loans carry on.
func (r *Relay) Poll(ctx context.Context) (dispatched int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Poll: begin tx: %w", err)
	}
	defer tx.Rollback()

	events, err := r.store.ClaimPending(ctx, tx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("Poll: %w", err)
	}
	r.metrics.SetRelayBacklog(len(events))
	if len(events) == 0 {
		return 0, nil
	}

	held := make(map[uuid.UUID]bool)
	for _, e := range events {
		if held[e.LoanID] {
			r.logger.Debug("business event held behind failed predecessor", "event_id", e.ID, "loan_id", e.LoanID)
			continue
		}
		if pubErr := r.publisher.Publish(ctx, e); pubErr != nil {
			held[e.LoanID] = true
			status, err := r.store.MarkFailedAttempt(ctx, tx, e.ID, pubErr.Error(), r.maxAttempts)
			if err != nil {
				return 0, fmt.Errorf("Poll: %w", err)
			}
			r.metrics.IncEventPublished(string(e.Type), "failed")
			r.logger.Warn("failed to publish business event",
				"event_id", e.ID,
				"loan_id", e.LoanID,
				"attempt", e.Attempts+1,
				"status", status,
				"error", pubErr,
			)
			continue
		}

		if err := r.store.MarkDispatched(ctx, tx, e.ID); err != nil {
			return 0, fmt.Errorf("Poll: %w", err)
		}
		r.metrics.IncEventPublished(string(e.Type), "dispatched")
		dispatched++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("Poll: commit: %w", err)
	}
	return dispatched, nil
}
