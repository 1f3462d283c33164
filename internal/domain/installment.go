package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Installment is one period of a loan's live repayment schedule.
type Installment struct {
	LoanID   uuid.UUID
	Number   int
	FromDate time.Time
	DueDate  time.Time

	PrincipalDue        decimal.Decimal
	PrincipalCompleted  decimal.Decimal
	PrincipalWrittenOff decimal.Decimal

	InterestDue        decimal.Decimal
	InterestCompleted  decimal.Decimal
	InterestWaived     decimal.Decimal
	InterestWrittenOff decimal.Decimal

	FeeDue        decimal.Decimal
	FeeCompleted  decimal.Decimal
	FeeWaived     decimal.Decimal
	FeeWrittenOff decimal.Decimal

	PenaltyDue        decimal.Decimal
	PenaltyCompleted  decimal.Decimal
	PenaltyWaived     decimal.Decimal
	PenaltyWrittenOff decimal.Decimal
}

func (i *Installment) PrincipalOutstanding() decimal.Decimal {
	return i.PrincipalDue.Sub(i.PrincipalCompleted).Sub(i.PrincipalWrittenOff)
}

func (i *Installment) InterestOutstanding() decimal.Decimal {
	return i.InterestDue.Sub(i.InterestCompleted).Sub(i.InterestWaived).Sub(i.InterestWrittenOff)
}

func (i *Installment) FeeOutstanding() decimal.Decimal {
	return i.FeeDue.Sub(i.FeeCompleted).Sub(i.FeeWaived).Sub(i.FeeWrittenOff)
}

func (i *Installment) PenaltyOutstanding() decimal.Decimal {
	return i.PenaltyDue.Sub(i.PenaltyCompleted).Sub(i.PenaltyWaived).Sub(i.PenaltyWrittenOff)
}

// IsComplete reports whether nothing is outstanding in any category. An
// installment whose outstanding amount went negative is not complete.
func (i *Installment) IsComplete() bool {
	return i.PrincipalOutstanding().IsZero() &&
		i.InterestOutstanding().IsZero() &&
		i.FeeOutstanding().IsZero() &&
		i.PenaltyOutstanding().IsZero()
}

// HistoricalInstallment is an archived installment of a schedule that was
// replaced by a reschedule. Version increases with each archived schedule.
type HistoricalInstallment struct {
	LoanID       uuid.UUID
	Version      int
	Number       int
	FromDate     time.Time
	DueDate      time.Time
	PrincipalDue decimal.Decimal
	InterestDue  decimal.Decimal
	FeeDue       decimal.Decimal
	PenaltyDue   decimal.Decimal
	ArchivedAt   time.Time
}

type ArrearsAgingRecord struct {
	LoanID           uuid.UUID
	PrincipalOverdue decimal.Decimal
	InterestOverdue  decimal.Decimal
	FeeOverdue       decimal.Decimal
	PenaltyOverdue   decimal.Decimal
	TotalOverdue     decimal.Decimal
	OverdueSince     time.Time
}
