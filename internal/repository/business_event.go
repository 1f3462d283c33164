package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const businessEventColumns = `id, event_type, loan_id, from_status, to_status, loan_event,
	actor, payload, status, attempts, last_attempt, last_error, occurred_at, created_at`

type BusinessEventRepository struct {
	db *sql.DB
}

func NewBusinessEventRepository(db *sql.DB) *BusinessEventRepository {
	return &BusinessEventRepository{db: db}
}

func (r *BusinessEventRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.BusinessEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO business_events (
			id, event_type, loan_id, from_status, to_status, loan_event,
			actor, payload, status, attempts, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Type, e.LoanID, e.FromStatus, e.ToStatus, e.Event,
		e.Actor, []byte(e.Payload), e.Status, e.Attempts, e.OccurredAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events, oldest first. Rows locked by
// another relay are skipped. The locks are held until tx ends.
func (r *BusinessEventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.BusinessEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+businessEventColumns+` FROM business_events
		WHERE status = $1 ORDER BY created_at, id LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.BusinessEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.BusinessEvent
	for rows.Next() {
		e, err := scanBusinessEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *BusinessEventRepository) MarkDispatched(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE business_events SET status = $1, attempts = attempts + 1,
			last_attempt = now(), last_error = NULL
		WHERE id = $2`,
		domain.BusinessEventStatusDispatched, id,
	)
	if err != nil {
		return fmt.Errorf("MarkDispatched: %w", err)
	}
	return expectOne(res, "MarkDispatched", domain.ErrNotFound)
}

// MarkFailedAttempt records a failed publish. The event stays pending until
// it has been attempted maxAttempts times.
func (r *BusinessEventRepository) MarkFailedAttempt(ctx context.Context, tx *sql.Tx, id uuid.UUID, reason string, maxAttempts int) (domain.BusinessEventStatus, error) {
	var status domain.BusinessEventStatus
	err := tx.QueryRowContext(ctx,
		`UPDATE business_events SET attempts = attempts + 1, last_attempt = now(), last_error = $1,
			status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4
		RETURNING status`,
		reason, maxAttempts, domain.BusinessEventStatusFailed, id,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("MarkFailedAttempt: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("MarkFailedAttempt: %w", err)
	}
	return status, nil
}

func (r *BusinessEventRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM business_events WHERE status = $1`, domain.BusinessEventStatusPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountPending: %w", err)
	}
	return n, nil
}

func (r *BusinessEventRepository) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]domain.BusinessEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+businessEventColumns+` FROM business_events
		WHERE loan_id = $1 ORDER BY occurred_at, created_at`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByLoan: %w", err)
	}
	defer rows.Close()

	var events []domain.BusinessEvent
	for rows.Next() {
		e, err := scanBusinessEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByLoan: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByLoan: rows: %w", err)
	}
	return events, nil
}

func scanBusinessEvent(s scanner) (*domain.BusinessEvent, error) {
	var e domain.BusinessEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.Type, &e.LoanID, &e.FromStatus, &e.ToStatus, &e.Event,
		&e.Actor, &payload, &e.Status, &e.Attempts, &e.LastAttempt, &e.LastError,
		&e.OccurredAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
