package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

type CurrencyRepository struct {
	db *sql.DB
}

func NewCurrencyRepository(db *sql.DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

func (r *CurrencyRepository) GetByCode(ctx context.Context, code string) (money.Currency, error) {
	var c money.Currency
	err := r.db.QueryRowContext(ctx,
		`SELECT code, name, decimal_places, in_multiples_of FROM currencies WHERE code = $1`,
		strings.ToUpper(code),
	).Scan(&c.Code, &c.Name, &c.DecimalPlaces, &c.InMultiplesOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return money.Currency{}, fmt.Errorf("GetByCode %q: %w", code, domain.ErrCurrencyNotFound)
		}
		return money.Currency{}, fmt.Errorf("GetByCode: %w", err)
	}
	return c, nil
}

func (r *CurrencyRepository) Upsert(ctx context.Context, c money.Currency) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO currencies (code, name, decimal_places, in_multiples_of)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name,
			decimal_places = EXCLUDED.decimal_places, in_multiples_of = EXCLUDED.in_multiples_of`,
		c.Code, c.Name, c.DecimalPlaces, c.InMultiplesOf,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
