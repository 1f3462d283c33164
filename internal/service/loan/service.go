// Package loan orchestrates the loan lifecycle against storage: every
// operation runs in one database transaction that holds the loan row lock.
package loan

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/lifecycle"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
	"github.com/josh-kwaku/loan-engine/internal/money"
	"github.com/josh-kwaku/loan-engine/internal/schedule"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type loanRepo interface {
	Create(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error)
	Update(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error
}

type installmentRepo interface {
	ListByLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.Installment, error)
	ReplaceForLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, installments []domain.Installment) error
}

type historyRepo interface {
	Archive(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, installments []domain.Installment) (int, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error)
}

type currencyRepo interface {
	GetByCode(ctx context.Context, code string) (money.Currency, error)
}

// notifierBinder hands out a notifier whose writes join tx.
type notifierBinder interface {
	Bind(tx *sql.Tx, actor string) lifecycle.Notifier
}

// AgingRefresher recomputes the arrears aging of the given loans.
type AgingRefresher interface {
	Refresh(ctx context.Context, ids ...uuid.UUID) error
}

type Repositories struct {
	Loans        loanRepo
	Installments installmentRepo
	History      historyRepo
	Products     productRepo
	Currencies   currencyRepo
}

type Service struct {
	db        txBeginner
	repos     Repositories
	machine   *lifecycle.StateMachine
	generator *schedule.Generator
	outbox    notifierBinder
	policy    money.Policy
	aging     AgingRefresher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithAgingRefresher(r AgingRefresher) Option {
	return func(s *Service) {
		s.aging = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	db txBeginner,
	repos Repositories,
	machine *lifecycle.StateMachine,
	outbox notifierBinder,
	policy money.Policy,
	opts ...Option,
) *Service {
	s := &Service{
		db:        db,
		repos:     repos,
		machine:   machine,
		generator: schedule.NewGenerator(policy),
		outbox:    outbox,
		policy:    policy,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	l, err := s.repos.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return l, nil
}

func (s *Service) Installments(ctx context.Context, id uuid.UUID) ([]domain.Installment, error) {
	out, err := s.repos.Installments.ListByLoan(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("Installments: %w", err)
	}
	return out, nil
}

// refreshesAging lists the events after which the loan's overdue position
// can differ.
var refreshesAging = map[domain.LoanEvent]bool{
	domain.LoanEventDisbursed:               true,
	domain.LoanEventWriteOffOutstanding:     true,
	domain.LoanEventWriteOffOutstandingUndo: true,
	domain.LoanEventAdjustTransaction:       true,
	domain.LoanEventRepaidInFull:            true,
	domain.LoanEventChargeback:              true,
}

// refreshAging runs after commit. A failure leaves the row for the next
// scheduled aging run, so it is only logged.
func (s *Service) refreshAging(ctx context.Context, loanID uuid.UUID) {
	if s.aging == nil {
		return
	}
	if err := s.aging.Refresh(ctx, loanID); err != nil {
		s.logger.WarnContext(ctx, "aging refresh failed", "loan_id", loanID, "error", err)
	}
}

func (s *Service) generate(ctx context.Context, code string, principal decimal.Decimal, from time.Time, terms domain.LoanTerms) (*schedule.Schedule, error) {
	currency, err := s.repos.Currencies.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	sched, err := s.generator.Generate(schedule.Terms{
		Principal:        s.policy.Of(currency, principal),
		DisbursementDate: from,
		LoanTerms:        terms,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncScheduleGenerated(string(terms.InterestMethod))
	return sched, nil
}
