package loan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/logging"
	"github.com/josh-kwaku/loan-engine/internal/money"
	"github.com/josh-kwaku/loan-engine/internal/telemetry"
)

type CreateRequest struct {
	ExternalID               *string
	ProductID                uuid.UUID
	Principal                decimal.Decimal
	ExpectedDisbursementDate time.Time
	// Terms overrides the product's default terms when set.
	Terms *domain.LoanTerms
	Actor string
}

type RescheduleRequest struct {
	Terms domain.LoanTerms
	// From is the reschedule date. Installments due on or before it are
	// kept; the outstanding principal of the rest is rescheduled from it.
	From  time.Time
	Actor string
}

func startSpan(ctx context.Context, name string, loanID uuid.UUID) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer().Start(ctx, name)
	if loanID != uuid.Nil {
		span.SetAttributes(attribute.String("loan_id", loanID.String()))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create validates the terms, generates the first schedule and stores the
// loan as SUBMITTED_AND_PENDING_APPROVAL. Creation notifies nobody.
func (s *Service) Create(ctx context.Context, req CreateRequest) (loan *domain.Loan, err error) {
	ctx, span := startSpan(ctx, "loan.Service.Create", uuid.Nil)
	defer func() { endSpan(span, err) }()
	defer money.Recover(&err)

	product, err := s.repos.Products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	terms := product.DefaultTerms
	if req.Terms != nil {
		terms = *req.Terms
	}
	expected := domain.Day(req.ExpectedDisbursementDate)

	sched, err := s.generate(ctx, product.CurrencyCode, req.Principal, expected, terms)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	now := s.now()
	loan = &domain.Loan{
		ID:                           uuid.New(),
		ExternalID:                   req.ExternalID,
		ProductID:                    product.ID,
		CurrencyCode:                 product.CurrencyCode,
		Principal:                    sched.PrincipalDisbursed.Amount(),
		Status:                       domain.LoanStatusNone,
		Terms:                        terms,
		ExpectedDisbursementDate:     expected,
		GraceOnArrearsAgeing:         product.GraceOnArrearsAgeing,
		InterestRecalculationEnabled: product.InterestRecalculationEnabled,
		CreatedAt:                    now,
		UpdatedAt:                    now,
	}
	span.SetAttributes(attribute.String("loan_id", loan.ID.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	defer tx.Rollback()

	if err := s.machine.With(s.outbox.Bind(tx, req.Actor)).Transition(ctx, domain.LoanEventCreated, loan); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := s.repos.Loans.Create(ctx, tx, loan); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := s.repos.Installments.ReplaceForLoan(ctx, tx, loan.ID, sched.Installments(loan.ID)); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Create: commit: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan created",
		"loan_id", loan.ID,
		"product_id", product.ID,
		"principal", sched.PrincipalDisbursed.String(),
		"installments", len(sched.Periods),
	)
	return loan, nil
}

// Transition applies event to the loan. The status write and the business
// event commit together.
func (s *Service) Transition(ctx context.Context, loanID uuid.UUID, event domain.LoanEvent, actor string) (loan *domain.Loan, err error) {
	ctx, span := startSpan(ctx, "loan.Service.Transition", loanID)
	span.SetAttributes(attribute.String("event", string(event)))
	defer func() { endSpan(span, err) }()

	loan, err = s.inLockedLoan(ctx, loanID, func(tx *sql.Tx, loan *domain.Loan) error {
		return s.machine.With(s.outbox.Bind(tx, actor)).Transition(ctx, event, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("Transition: %w", err)
	}

	if refreshesAging[event] {
		s.refreshAging(ctx, loanID)
	}
	return loan, nil
}

// Disburse activates an approved loan on date. When date differs from the
// expected disbursement date the schedule is regenerated from it. Loans with
// interest recalculation archive the disbursed schedule as their original.
func (s *Service) Disburse(ctx context.Context, loanID uuid.UUID, date time.Time, actor string) (loan *domain.Loan, err error) {
	ctx, span := startSpan(ctx, "loan.Service.Disburse", loanID)
	defer func() { endSpan(span, err) }()
	defer money.Recover(&err)

	date = domain.Day(date)
	loan, err = s.inLockedLoan(ctx, loanID, func(tx *sql.Tx, loan *domain.Loan) error {
		if err := s.machine.With(s.outbox.Bind(tx, actor)).Transition(ctx, domain.LoanEventDisbursed, loan); err != nil {
			return err
		}
		loan.ActualDisbursementDate = &date

		var disbursed []domain.Installment
		if !date.Equal(loan.ExpectedDisbursementDate) {
			sched, err := s.generate(ctx, loan.CurrencyCode, loan.Principal, date, loan.Terms)
			if err != nil {
				return err
			}
			disbursed = sched.Installments(loan.ID)
			if err := s.repos.Installments.ReplaceForLoan(ctx, tx, loan.ID, disbursed); err != nil {
				return err
			}
		}
		if !loan.InterestRecalculationEnabled {
			return nil
		}
		if disbursed == nil {
			current, err := s.repos.Installments.ListByLoan(ctx, tx, loan.ID)
			if err != nil {
				return err
			}
			disbursed = current
		}
		return s.archive(ctx, tx, loan.ID, disbursed)
	})
	if err != nil {
		return nil, fmt.Errorf("Disburse: %w", err)
	}

	s.refreshAging(ctx, loanID)
	return loan, nil
}

// Reschedule replaces the unpaid tail of an ACTIVE loan's schedule with one
// generated from req.Terms. The status is unchanged.
func (s *Service) Reschedule(ctx context.Context, loanID uuid.UUID, req RescheduleRequest) (loan *domain.Loan, err error) {
	ctx, span := startSpan(ctx, "loan.Service.Reschedule", loanID)
	defer func() { endSpan(span, err) }()
	defer money.Recover(&err)

	from := domain.Day(req.From)
	loan, err = s.inLockedLoan(ctx, loanID, func(tx *sql.Tx, loan *domain.Loan) error {
		if !loan.Status.IsActive() {
			return fmt.Errorf("loan %s is %s: %w", loan.ID, loan.Status, domain.ErrValidation)
		}

		current, err := s.repos.Installments.ListByLoan(ctx, tx, loan.ID)
		if err != nil {
			return err
		}
		kept, outstanding, err := splitAt(current, from)
		if err != nil {
			return err
		}
		if !outstanding.IsPositive() {
			return fmt.Errorf("no principal outstanding after %s: %w", from.Format(time.DateOnly), domain.ErrValidation)
		}

		sched, err := s.generate(ctx, loan.CurrencyCode, outstanding, from, req.Terms)
		if err != nil {
			return err
		}
		tail := sched.Installments(loan.ID)
		for i := range tail {
			tail[i].Number += len(kept)
		}

		if err := s.replaceSchedule(ctx, tx, loan.ID, append(kept, tail...)); err != nil {
			return err
		}
		loan.Terms = req.Terms
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Reschedule: %w", err)
	}

	logging.FromContext(ctx).InfoContext(ctx, "loan rescheduled",
		"loan_id", loanID,
		"from", from.Format(time.DateOnly),
		"actor", req.Actor,
	)
	s.refreshAging(ctx, loanID)
	return loan, nil
}

// splitAt keeps the installments due on or before from and sums the
// principal still owed by the others. Installments after from must be
// untouched by repayments.
func splitAt(installments []domain.Installment, from time.Time) ([]domain.Installment, decimal.Decimal, error) {
	var kept []domain.Installment
	outstanding := decimal.Zero
	for _, i := range installments {
		if !i.DueDate.After(from) {
			kept = append(kept, i)
			continue
		}
		if !i.PrincipalCompleted.IsZero() || !i.InterestCompleted.IsZero() ||
			!i.FeeCompleted.IsZero() || !i.PenaltyCompleted.IsZero() {
			return nil, decimal.Zero, fmt.Errorf("installment %d due %s has repayments: %w",
				i.Number, i.DueDate.Format(time.DateOnly), domain.ErrValidation)
		}
		outstanding = outstanding.Add(i.PrincipalOutstanding())
	}
	return kept, outstanding, nil
}

func (s *Service) replaceSchedule(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, next []domain.Installment) error {
	current, err := s.repos.Installments.ListByLoan(ctx, tx, loanID)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		if err := s.archive(ctx, tx, loanID, current); err != nil {
			return err
		}
	}
	return s.repos.Installments.ReplaceForLoan(ctx, tx, loanID, next)
}

func (s *Service) archive(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, installments []domain.Installment) error {
	version, err := s.repos.History.Archive(ctx, tx, loanID, installments)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).DebugContext(ctx, "schedule archived", "loan_id", loanID, "version", version)
	return nil
}

// inLockedLoan runs fn on the locked loan and writes the loan back with a
// version check before committing.
func (s *Service) inLockedLoan(ctx context.Context, loanID uuid.UUID, fn func(tx *sql.Tx, loan *domain.Loan) error) (*domain.Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	loan, err := s.repos.Loans.GetForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, loan); err != nil {
		return nil, err
	}
	if err := s.repos.Loans.Update(ctx, tx, loan); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return loan, nil
}
