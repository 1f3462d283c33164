package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const productColumns = `id, name, currency_code, default_terms,
	arrears_based_on_original_schedule, interest_recalculation_enabled,
	grace_on_arrears_ageing, created_at`

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.LoanProduct) error {
	terms, err := json.Marshal(p.DefaultTerms)
	if err != nil {
		return fmt.Errorf("Create: marshal terms: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO loan_products (
			id, name, currency_code, default_terms,
			arrears_based_on_original_schedule, interest_recalculation_enabled,
			grace_on_arrears_ageing, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.CurrencyCode, terms,
		p.ArrearsBasedOnOriginalSchedule, p.InterestRecalculationEnabled,
		p.GraceOnArrearsAgeing, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM loan_products WHERE id = $1`, id,
	)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrProductNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func scanProduct(s scanner) (*domain.LoanProduct, error) {
	var p domain.LoanProduct
	var terms []byte

	err := s.Scan(
		&p.ID, &p.Name, &p.CurrencyCode, &terms,
		&p.ArrearsBasedOnOriginalSchedule, &p.InterestRecalculationEnabled,
		&p.GraceOnArrearsAgeing, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(terms, &p.DefaultTerms); err != nil {
		return nil, fmt.Errorf("unmarshal terms: %w", err)
	}
	return &p, nil
}
