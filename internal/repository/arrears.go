package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const arrearsColumns = `loan_id, principal_overdue, interest_overdue, fee_overdue,
	penalty_overdue, total_overdue, overdue_since`

type ArrearsRepository struct {
	db *sql.DB
}

func NewArrearsRepository(db *sql.DB) *ArrearsRepository {
	return &ArrearsRepository{db: db}
}

// ReplaceForLoan deletes the aging row of loanID and inserts rec when it is
// not nil.
func (r *ArrearsRepository) ReplaceForLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, rec *domain.ArrearsAgingRecord) (deleted int, inserted bool, err error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM loan_arrears_aging WHERE loan_id = $1`, loanID)
	if err != nil {
		return 0, false, fmt.Errorf("ReplaceForLoan: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("ReplaceForLoan: rows affected: %w", err)
	}

	if rec == nil {
		return int(n), false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loan_arrears_aging (`+arrearsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		loanID, rec.PrincipalOverdue, rec.InterestOverdue, rec.FeeOverdue,
		rec.PenaltyOverdue, rec.TotalOverdue, rec.OverdueSince,
	)
	if err != nil {
		return 0, false, fmt.Errorf("ReplaceForLoan: insert: %w", err)
	}
	return int(n), true, nil
}

func (r *ArrearsRepository) GetByLoan(ctx context.Context, loanID uuid.UUID) (*domain.ArrearsAgingRecord, error) {
	var rec domain.ArrearsAgingRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT `+arrearsColumns+` FROM loan_arrears_aging WHERE loan_id = $1`, loanID,
	).Scan(
		&rec.LoanID, &rec.PrincipalOverdue, &rec.InterestOverdue, &rec.FeeOverdue,
		&rec.PenaltyOverdue, &rec.TotalOverdue, &rec.OverdueSince,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByLoan: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByLoan: %w", err)
	}
	rec.OverdueSince = dateOf(rec.OverdueSince)
	return &rec, nil
}
