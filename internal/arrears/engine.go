// Package arrears recomputes the overdue exposure of loans. Engine is the
// pure computation; Job applies it to persisted loans in batches.
package arrears

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

type Category string

const (
	CategoryPrincipal Category = "principal"
	CategoryInterest  Category = "interest"
	CategoryFee       Category = "fee"
	CategoryPenalty   Category = "penalty"
)

// InvariantViolationError reports an overdue amount that came out negative,
// meaning waivers, write-offs or payments exceed what was charged.
type InvariantViolationError struct {
	LoanID      uuid.UUID
	Installment int
	Category    Category
	Amount      decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("loan %s installment %d: %s overdue is %s", e.LoanID, e.Installment, e.Category, e.Amount)
}

func (e *InvariantViolationError) Unwrap() error { return domain.ErrNegativeOverdue }

// Input is everything the engine needs to age one loan.
type Input struct {
	Loan         *domain.Loan
	Product      *domain.LoanProduct
	Installments []domain.Installment
	// History holds the installments of the latest archived schedule version.
	History []domain.HistoricalInstallment
}

type Engine struct{}

// Cutoff is the date installments must be due strictly before to count as
// overdue.
func Cutoff(businessDate time.Time, graceDays int) time.Time {
	return domain.Day(businessDate).AddDate(0, 0, -graceDays)
}

// UsesOriginalSchedule reports whether the loan is aged against its
// pre-reschedule schedule.
func UsesOriginalSchedule(product *domain.LoanProduct, loan *domain.Loan) bool {
	return product != nil && product.ArrearsBasedOnOriginalSchedule && loan.InterestRecalculationEnabled
}

// Compute ages in.Loan as of businessDate. A nil record means nothing is
// overdue and no aging row should exist. A loan on the original-schedule
// policy with nothing archived is aged against its live schedule.
func (e Engine) Compute(in Input, businessDate time.Time) (*domain.ArrearsAgingRecord, error) {
	cutoff := Cutoff(businessDate, in.Loan.GraceOnArrearsAgeing)
	if UsesOriginalSchedule(in.Product, in.Loan) && len(in.History) > 0 {
		return e.ComputeOriginal(in.Loan.ID, in.Loan.Summary, in.History, cutoff)
	}
	return e.ComputeCurrent(in.Loan.ID, in.Installments, cutoff)
}

type totals struct {
	principal, interest, fee, penalty decimal.Decimal
}

func (t totals) sum() decimal.Decimal {
	return t.principal.Add(t.interest).Add(t.fee).Add(t.penalty)
}

func (t *totals) add(loanID uuid.UUID, number int, principal, interest, fee, penalty decimal.Decimal) error {
	for _, c := range []struct {
		cat Category
		v   decimal.Decimal
	}{
		{CategoryPrincipal, principal},
		{CategoryInterest, interest},
		{CategoryFee, fee},
		{CategoryPenalty, penalty},
	} {
		if c.v.IsNegative() {
			return &InvariantViolationError{LoanID: loanID, Installment: number, Category: c.cat, Amount: c.v}
		}
	}
	t.principal = t.principal.Add(principal)
	t.interest = t.interest.Add(interest)
	t.fee = t.fee.Add(fee)
	t.penalty = t.penalty.Add(penalty)
	return nil
}

func (t totals) record(loanID uuid.UUID, since time.Time) *domain.ArrearsAgingRecord {
	return &domain.ArrearsAgingRecord{
		LoanID:           loanID,
		PrincipalOverdue: t.principal,
		InterestOverdue:  t.interest,
		FeeOverdue:       t.fee,
		PenaltyOverdue:   t.penalty,
		TotalOverdue:     t.sum(),
		OverdueSince:     since,
	}
}

// ComputeCurrent sums what is outstanding on the live schedule for every
// incomplete installment due before cutoff.
func (Engine) ComputeCurrent(loanID uuid.UUID, installments []domain.Installment, cutoff time.Time) (*domain.ArrearsAgingRecord, error) {
	var t totals
	var since time.Time

	for i := range installments {
		inst := &installments[i]
		if !inst.DueDate.Before(cutoff) || inst.IsComplete() {
			continue
		}
		err := t.add(loanID, inst.Number,
			inst.PrincipalOutstanding(),
			inst.InterestOutstanding(),
			inst.FeeOutstanding(),
			inst.PenaltyOutstanding(),
		)
		if err != nil {
			return nil, err
		}
		if since.IsZero() || inst.DueDate.Before(since) {
			since = inst.DueDate
		}
	}

	if !t.sum().IsPositive() {
		return nil, nil
	}
	return t.record(loanID, since), nil
}

// Allocation is an owned copy of an archived installment with the amounts
// the loan's running totals cover.
type Allocation struct {
	domain.HistoricalInstallment
	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	FeePaid       decimal.Decimal
	PenaltyPaid   decimal.Decimal
	Complete      bool
}

func take(pool *decimal.Decimal, due decimal.Decimal) (paid decimal.Decimal, covered bool) {
	if due.GreaterThan(*pool) {
		paid = *pool
		*pool = decimal.Zero
		return paid, false
	}
	*pool = pool.Sub(due)
	return due, true
}

// Allocate spreads the loan's running totals over the archived installments
// due before cutoff, oldest first, one category at a time. history is not
// modified.
func Allocate(summary domain.LoanSummary, history []domain.HistoricalInstallment, cutoff time.Time) []Allocation {
	copies := make([]Allocation, 0, len(history))
	for _, h := range history {
		if h.DueDate.Before(cutoff) {
			copies = append(copies, Allocation{HistoricalInstallment: h})
		}
	}
	sort.SliceStable(copies, func(i, j int) bool {
		if !copies[i].DueDate.Equal(copies[j].DueDate) {
			return copies[i].DueDate.Before(copies[j].DueDate)
		}
		return copies[i].Number < copies[j].Number
	})

	principalPool := summary.PrincipalRepaid.Add(summary.PrincipalWrittenOff)
	interestPool := summary.InterestRepaid.Add(summary.InterestWaived)
	feePool := summary.FeeRepaid.Add(summary.FeeWaived)
	penaltyPool := summary.PenaltyRepaid.Add(summary.PenaltyWaived)

	for i := range copies {
		c := &copies[i]
		var okP, okI, okF, okN bool
		c.PrincipalPaid, okP = take(&principalPool, c.PrincipalDue)
		c.InterestPaid, okI = take(&interestPool, c.InterestDue)
		c.FeePaid, okF = take(&feePool, c.FeeDue)
		c.PenaltyPaid, okN = take(&penaltyPool, c.PenaltyDue)
		c.Complete = okP && okI && okF && okN
	}
	return copies
}

// ComputeOriginal ages the loan against its archived pre-reschedule
// schedule. A row is produced only when principal is overdue.
func (Engine) ComputeOriginal(loanID uuid.UUID, summary domain.LoanSummary, history []domain.HistoricalInstallment, cutoff time.Time) (*domain.ArrearsAgingRecord, error) {
	var t totals
	var since time.Time

	for _, c := range Allocate(summary, history, cutoff) {
		if c.Complete {
			continue
		}
		err := t.add(loanID, c.Number,
			c.PrincipalDue.Sub(c.PrincipalPaid),
			c.InterestDue.Sub(c.InterestPaid),
			c.FeeDue.Sub(c.FeePaid),
			c.PenaltyDue.Sub(c.PenaltyPaid),
		)
		if err != nil {
			return nil, err
		}
		if c.PrincipalDue.GreaterThan(c.PrincipalPaid) && (since.IsZero() || c.DueDate.Before(since)) {
			since = c.DueDate
		}
	}

	if !t.principal.IsPositive() {
		return nil, nil
	}
	return t.record(loanID, since), nil
}
