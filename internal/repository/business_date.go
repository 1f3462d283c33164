package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const businessDateType = "BUSINESS_DATE"

// BusinessDateRepository resolves the tenant business date. Tenants without
// a stored date fall back to the current UTC day.
type BusinessDateRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewBusinessDateRepository(db *sql.DB, now func() time.Time) *BusinessDateRepository {
	if now == nil {
		now = time.Now
	}
	return &BusinessDateRepository{db: db, now: now}
}

func (r *BusinessDateRepository) BusinessDate(ctx context.Context, tenant string) (time.Time, error) {
	var d time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT business_date FROM business_dates WHERE tenant_id = $1 AND date_type = $2`,
		tenant, businessDateType,
	).Scan(&d)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Day(r.now()), nil
		}
		return time.Time{}, fmt.Errorf("BusinessDate: %w", err)
	}
	return dateOf(d), nil
}

func (r *BusinessDateRepository) Set(ctx context.Context, tenant string, date time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO business_dates (tenant_id, date_type, business_date, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, date_type) DO UPDATE
		SET business_date = EXCLUDED.business_date, updated_at = now()`,
		tenant, businessDateType, domain.Day(date),
	)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
