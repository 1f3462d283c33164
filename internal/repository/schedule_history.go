package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const historyColumns = `loan_id, version, installment_number, from_date, due_date,
	principal_due, interest_due, fee_due, penalty_due, archived_at`

type ScheduleHistoryRepository struct {
	db *sql.DB
}

func NewScheduleHistoryRepository(db *sql.DB) *ScheduleHistoryRepository {
	return &ScheduleHistoryRepository{db: db}
}

// Archive stores installments as the next history version of loanID and
// returns that version. Versions start at 1.
func (r *ScheduleHistoryRepository) Archive(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, installments []domain.Installment) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM loan_schedule_history WHERE loan_id = $1`, loanID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("Archive: next version: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO loan_schedule_history (
			loan_id, version, installment_number, from_date, due_date,
			principal_due, interest_due, fee_due, penalty_due
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	)
	if err != nil {
		return 0, fmt.Errorf("Archive: prepare: %w", err)
	}
	defer stmt.Close()

	for _, i := range installments {
		_, err := stmt.ExecContext(ctx,
			loanID, version, i.Number, i.FromDate, i.DueDate,
			i.PrincipalDue, i.InterestDue, i.FeeDue, i.PenaltyDue,
		)
		if err != nil {
			return 0, fmt.Errorf("Archive: insert installment %d: %w", i.Number, err)
		}
	}
	return version, nil
}

// ListLatest returns the installments of the highest archived version of
// loanID, or none when the loan was never rescheduled.
func (r *ScheduleHistoryRepository) ListLatest(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.HistoricalInstallment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM loan_schedule_history
		WHERE loan_id = $1 AND version = (
			SELECT MAX(version) FROM loan_schedule_history WHERE loan_id = $1
		)
		ORDER BY installment_number`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListLatest: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoricalInstallment
	for rows.Next() {
		h, err := scanHistoricalInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListLatest: scan: %w", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListLatest: rows: %w", err)
	}
	return out, nil
}

func scanHistoricalInstallment(s scanner) (*domain.HistoricalInstallment, error) {
	var h domain.HistoricalInstallment
	err := s.Scan(
		&h.LoanID, &h.Version, &h.Number, &h.FromDate, &h.DueDate,
		&h.PrincipalDue, &h.InterestDue, &h.FeeDue, &h.PenaltyDue, &h.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	h.FromDate = dateOf(h.FromDate)
	h.DueDate = dateOf(h.DueDate)
	return &h, nil
}
