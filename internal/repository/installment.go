package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const installmentColumns = `loan_id, installment_number, from_date, due_date,
	principal_due, principal_completed, principal_written_off,
	interest_due, interest_completed, interest_waived, interest_written_off,
	fee_due, fee_completed, fee_waived, fee_written_off,
	penalty_due, penalty_completed, penalty_waived, penalty_written_off`

type InstallmentRepository struct {
	db *sql.DB
}

func NewInstallmentRepository(db *sql.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

// ListByLoan returns the installments of loanID ordered by number. A nil tx
// reads outside any transaction.
func (r *InstallmentRepository) ListByLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM loan_installments
		WHERE loan_id = $1 ORDER BY installment_number`

	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, loanID)
	} else {
		rows, err = r.db.QueryContext(ctx, query, loanID)
	}
	if err != nil {
		return nil, fmt.Errorf("ListByLoan: %w", err)
	}
	defer rows.Close()

	var out []domain.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByLoan: scan: %w", err)
		}
		out = append(out, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByLoan: rows: %w", err)
	}
	return out, nil
}

// ReplaceForLoan deletes the live schedule of loanID and inserts installments.
func (r *InstallmentRepository) ReplaceForLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, installments []domain.Installment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_installments WHERE loan_id = $1`, loanID); err != nil {
		return fmt.Errorf("ReplaceForLoan: delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO loan_installments (`+installmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
	)
	if err != nil {
		return fmt.Errorf("ReplaceForLoan: prepare: %w", err)
	}
	defer stmt.Close()

	for _, i := range installments {
		_, err := stmt.ExecContext(ctx,
			loanID, i.Number, i.FromDate, i.DueDate,
			i.PrincipalDue, i.PrincipalCompleted, i.PrincipalWrittenOff,
			i.InterestDue, i.InterestCompleted, i.InterestWaived, i.InterestWrittenOff,
			i.FeeDue, i.FeeCompleted, i.FeeWaived, i.FeeWrittenOff,
			i.PenaltyDue, i.PenaltyCompleted, i.PenaltyWaived, i.PenaltyWrittenOff,
		)
		if err != nil {
			return fmt.Errorf("ReplaceForLoan: insert installment %d: %w", i.Number, err)
		}
	}
	return nil
}

func scanInstallment(s scanner) (*domain.Installment, error) {
	var i domain.Installment
	err := s.Scan(
		&i.LoanID, &i.Number, &i.FromDate, &i.DueDate,
		&i.PrincipalDue, &i.PrincipalCompleted, &i.PrincipalWrittenOff,
		&i.InterestDue, &i.InterestCompleted, &i.InterestWaived, &i.InterestWrittenOff,
		&i.FeeDue, &i.FeeCompleted, &i.FeeWaived, &i.FeeWrittenOff,
		&i.PenaltyDue, &i.PenaltyCompleted, &i.PenaltyWaived, &i.PenaltyWrittenOff,
	)
	if err != nil {
		return nil, err
	}
	i.FromDate = dateOf(i.FromDate)
	i.DueDate = dateOf(i.DueDate)
	return &i, nil
}
