package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const loanColumns = `id, external_id, product_id, currency_code, principal, status,
	terms, expected_disbursement_date, actual_disbursement_date, summary,
	grace_on_arrears_ageing, interest_recalculation_enabled, version,
	created_at, updated_at`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error {
	terms, summary, err := marshalLoanDocs(loan)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loans (
			id, external_id, product_id, currency_code, principal, status,
			terms, expected_disbursement_date, actual_disbursement_date, summary,
			grace_on_arrears_ageing, interest_recalculation_enabled, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		loan.ID, loan.ExternalID, loan.ProductID, loan.CurrencyCode, loan.Principal, loan.Status,
		terms, loan.ExpectedDisbursementDate, loan.ActualDisbursementDate, summary,
		loan.GraceOnArrearsAgeing, loan.InterestRecalculationEnabled, loan.Version,
		loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id,
	)
	l, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) ListIDsByStatus(ctx context.Context, status domain.LoanStatus) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM loans WHERE status = $1 ORDER BY id`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("ListIDsByStatus: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListIDsByStatus: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListIDsByStatus: rows: %w", err)
	}
	return ids, nil
}

// Update writes the mutable fields of loan when the stored version still
// equals loan.Version, then bumps loan.Version.
func (r *LoanRepository) Update(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error {
	terms, summary, err := marshalLoanDocs(loan)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET status = $1, terms = $2, actual_disbursement_date = $3,
			summary = $4, version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`,
		loan.Status, terms, loan.ActualDisbursementDate, summary, now,
		loan.ID, loan.Version,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if err := expectOne(res, "Update", domain.ErrVersionConflict); err != nil {
		return err
	}

	loan.Version++
	loan.UpdatedAt = now
	return nil
}

func marshalLoanDocs(loan *domain.Loan) (terms, summary []byte, err error) {
	terms, err = json.Marshal(loan.Terms)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal terms: %w", err)
	}
	summary, err = json.Marshal(loan.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal summary: %w", err)
	}
	return terms, summary, nil
}

func scanLoan(s scanner) (*domain.Loan, error) {
	var l domain.Loan
	var terms, summary []byte

	err := s.Scan(
		&l.ID, &l.ExternalID, &l.ProductID, &l.CurrencyCode, &l.Principal, &l.Status,
		&terms, &l.ExpectedDisbursementDate, &l.ActualDisbursementDate, &summary,
		&l.GraceOnArrearsAgeing, &l.InterestRecalculationEnabled, &l.Version,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(terms, &l.Terms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	if err := json.Unmarshal(summary, &l.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	l.ExpectedDisbursementDate = dateOf(l.ExpectedDisbursementDate)
	l.ActualDisbursementDate = dateOfPtr(l.ActualDisbursementDate)
	return &l, nil
}
