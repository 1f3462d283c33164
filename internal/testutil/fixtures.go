package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

var USD = money.Currency{Code: "USD", Name: "US Dollar", DecimalPlaces: 2}

// MonthlyTerms is a 12 month declining-balance loan at 12% a year.
func MonthlyTerms() domain.LoanTerms {
	return domain.LoanTerms{
		InterestRatePerPeriod: decimal.NewFromInt(12),
		RateFrequency:         domain.RateFrequencyPerYear,
		InterestMethod:        domain.InterestMethodDecliningBalance,
		AmortizationMethod:    domain.AmortizationEqualInstallments,
		RepaymentEvery:        1,
		RepaymentFrequency:    domain.PeriodFrequencyMonths,
		NumberOfRepayments:    12,
		LoanTermFrequency:     12,
		LoanTermFrequencyType: domain.PeriodFrequencyMonths,
	}
}

type ProductOption func(*domain.LoanProduct)

func WithOriginalScheduleArrears() ProductOption {
	return func(p *domain.LoanProduct) {
		p.ArrearsBasedOnOriginalSchedule = true
		p.InterestRecalculationEnabled = true
	}
}

func WithArrearsGrace(days int) ProductOption {
	return func(p *domain.LoanProduct) {
		p.GraceOnArrearsAgeing = days
	}
}

func SeedProduct(t *testing.T, db *sql.DB, opts ...ProductOption) *domain.LoanProduct {
	t.Helper()

	p := &domain.LoanProduct{
		ID:           uuid.New(),
		Name:         "product-" + uuid.NewString()[:8],
		CurrencyCode: USD.Code,
		DefaultTerms: MonthlyTerms(),
		CreatedAt:    time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(p)
	}

	terms, err := json.Marshal(p.DefaultTerms)
	if err != nil {
		t.Fatalf("marshal product terms: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO loan_products (id, name, currency_code, default_terms,
			arrears_based_on_original_schedule, interest_recalculation_enabled,
			grace_on_arrears_ageing, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Name, p.CurrencyCode, terms,
		p.ArrearsBasedOnOriginalSchedule, p.InterestRecalculationEnabled,
		p.GraceOnArrearsAgeing, p.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed product %s: %v", p.Name, err)
	}
	return p
}

// SeedLoan inserts a loan of product in status with no installments.
func SeedLoan(t *testing.T, db *sql.DB, product *domain.LoanProduct, status domain.LoanStatus, principal string) *domain.Loan {
	t.Helper()

	now := time.Now().UTC()
	l := &domain.Loan{
		ID:                           uuid.New(),
		ProductID:                    product.ID,
		CurrencyCode:                 product.CurrencyCode,
		Principal:                    decimal.RequireFromString(principal),
		Status:                       status,
		Terms:                        product.DefaultTerms,
		ExpectedDisbursementDate:     domain.Date(2024, time.January, 1),
		GraceOnArrearsAgeing:         product.GraceOnArrearsAgeing,
		InterestRecalculationEnabled: product.InterestRecalculationEnabled,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}

	terms, err := json.Marshal(l.Terms)
	if err != nil {
		t.Fatalf("marshal loan terms: %v", err)
	}
	summary, err := json.Marshal(l.Summary)
	if err != nil {
		t.Fatalf("marshal loan summary: %v", err)
	}
	_, err = db.Exec(
		`INSERT INTO loans (id, product_id, currency_code, principal, status, terms,
			expected_disbursement_date, summary, grace_on_arrears_ageing,
			interest_recalculation_enabled, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12)`,
		l.ID, l.ProductID, l.CurrencyCode, l.Principal, l.Status, terms,
		l.ExpectedDisbursementDate, summary, l.GraceOnArrearsAgeing,
		l.InterestRecalculationEnabled, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return l
}

// SeedInstallment inserts an installment owing principal and interest, with
// paid settled against principal first.
func SeedInstallment(t *testing.T, db *sql.DB, loanID uuid.UUID, number int, due time.Time, principal, interest, paid string) {
	t.Helper()

	p := decimal.RequireFromString(principal)
	i := decimal.RequireFromString(interest)
	pd := decimal.RequireFromString(paid)
	principalPaid := decimal.Min(pd, p)
	interestPaid := decimal.Min(pd.Sub(principalPaid), i)

	_, err := db.Exec(
		`INSERT INTO loan_installments (loan_id, installment_number, from_date, due_date,
			principal_due, principal_completed, interest_due, interest_completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		loanID, number, due.AddDate(0, -1, 0), due, p, principalPaid, i, interestPaid,
	)
	if err != nil {
		t.Fatalf("seed installment %d of %s: %v", number, loanID, err)
	}
}

func SetBusinessDate(t *testing.T, db *sql.DB, tenant string, date time.Time) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO business_dates (tenant_id, date_type, business_date)
		 VALUES ($1, 'BUSINESS_DATE', $2)
		 ON CONFLICT (tenant_id, date_type) DO UPDATE SET business_date = EXCLUDED.business_date`,
		tenant, domain.Day(date),
	)
	if err != nil {
		t.Fatalf("set business date: %v", err)
	}
}

func CountAgingRows(t *testing.T, db *sql.DB, loanID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM loan_arrears_aging WHERE loan_id = $1`, loanID).Scan(&count)
	if err != nil {
		t.Fatalf("count aging rows for loan %s: %v", loanID, err)
	}
	return count
}

func CountBusinessEvents(t *testing.T, db *sql.DB, loanID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM business_events WHERE loan_id = $1`, loanID).Scan(&count)
	if err != nil {
		t.Fatalf("count business events for loan %s: %v", loanID, err)
	}
	return count
}
