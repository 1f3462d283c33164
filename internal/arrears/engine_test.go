package arrears

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

var businessDate = domain.Date(2024, time.June, 15)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func inst(number int, due time.Time, principal, interest string) domain.Installment {
	return domain.Installment{
		Number:       number,
		FromDate:     due.AddDate(0, -1, 0),
		DueDate:      due,
		PrincipalDue: d(principal),
		InterestDue:  d(interest),
	}
}

func activeLoan(grace int) *domain.Loan {
	return &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusActive, GraceOnArrearsAgeing: grace}
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, domain.Date(2024, time.June, 10), Cutoff(businessDate, 5))
	assert.Equal(t, businessDate, Cutoff(businessDate.Add(13*time.Hour), 0))
}

func TestComputeCurrent(t *testing.T) {
	loan := activeLoan(0)

	tests := []struct {
		name         string
		grace        int
		installments []domain.Installment
		wantNil      bool
		want         [5]string // principal, interest, fee, penalty, total
		wantSince    time.Time
	}{
		{
			name: "nothing due before cutoff",
			installments: []domain.Installment{
				inst(1, businessDate, "100", "10"),
				inst(2, businessDate.AddDate(0, 1, 0), "100", "10"),
			},
			wantNil: true,
		},
		{
			name: "single overdue installment",
			installments: []domain.Installment{
				inst(1, domain.Date(2024, time.May, 15), "100", "10"),
				inst(2, businessDate.AddDate(0, 1, 0), "100", "10"),
			},
			want:      [5]string{"100", "10", "0", "0", "110"},
			wantSince: domain.Date(2024, time.May, 15),
		},
		{
			name:  "grace days push installment past cutoff",
			grace: 5,
			installments: []domain.Installment{
				inst(1, domain.Date(2024, time.June, 12), "100", "10"),
			},
			wantNil: true,
		},
		{
			name:  "due on cutoff is not overdue",
			grace: 3,
			installments: []domain.Installment{
				inst(1, domain.Date(2024, time.June, 12), "100", "10"),
			},
			wantNil: true,
		},
		{
			name: "completed installment ignored and earliest due date wins",
			installments: func() []domain.Installment {
				paid := inst(1, domain.Date(2024, time.March, 15), "100", "10")
				paid.PrincipalCompleted = d("100")
				paid.InterestCompleted = d("10")
				partial := inst(2, domain.Date(2024, time.April, 15), "100", "10")
				partial.PrincipalCompleted = d("40")
				partial.InterestWaived = d("4")
				partial.FeeDue = d("5")
				partial.FeeWrittenOff = d("2")
				partial.PenaltyDue = d("7")
				partial.PenaltyCompleted = d("1")
				unpaid := inst(3, domain.Date(2024, time.May, 15), "100", "10")
				unpaid.PrincipalWrittenOff = d("25")
				unpaid.InterestWrittenOff = d("10")
				return []domain.Installment{unpaid, partial, paid}
			}(),
			want:      [5]string{"135", "6", "3", "6", "150"},
			wantSince: domain.Date(2024, time.April, 15),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Engine{}.ComputeCurrent(loan.ID, tc.installments, Cutoff(businessDate, tc.grace))
			require.NoError(t, err)
			if tc.wantNil {
				assert.Nil(t, rec)
				return
			}
			require.NotNil(t, rec)
			assert.Equal(t, loan.ID, rec.LoanID)
			assert.True(t, rec.PrincipalOverdue.Equal(d(tc.want[0])), "principal %s", rec.PrincipalOverdue)
			assert.True(t, rec.InterestOverdue.Equal(d(tc.want[1])), "interest %s", rec.InterestOverdue)
			assert.True(t, rec.FeeOverdue.Equal(d(tc.want[2])), "fee %s", rec.FeeOverdue)
			assert.True(t, rec.PenaltyOverdue.Equal(d(tc.want[3])), "penalty %s", rec.PenaltyOverdue)
			assert.True(t, rec.TotalOverdue.Equal(d(tc.want[4])), "total %s", rec.TotalOverdue)
			assert.Equal(t, tc.wantSince, rec.OverdueSince)
		})
	}
}

func TestComputeCurrent_NegativeOverdueIsInvariantViolation(t *testing.T) {
	loanID := uuid.New()
	over := inst(1, domain.Date(2024, time.May, 15), "100", "10")
	over.InterestWaived = d("8")
	over.InterestWrittenOff = d("5")

	rec, err := Engine{}.ComputeCurrent(loanID, []domain.Installment{over}, businessDate)
	assert.Nil(t, rec)
	require.ErrorIs(t, err, domain.ErrNegativeOverdue)

	var ive *InvariantViolationError
	require.True(t, errors.As(err, &ive))
	assert.Equal(t, loanID, ive.LoanID)
	assert.Equal(t, CategoryInterest, ive.Category)
	assert.Equal(t, 1, ive.Installment)
	assert.True(t, ive.Amount.Equal(d("-3")))
}

func history(dues ...string) []domain.HistoricalInstallment {
	out := make([]domain.HistoricalInstallment, 0, len(dues))
	for i, due := range dues {
		out = append(out, domain.HistoricalInstallment{
			Version:      1,
			Number:       i + 1,
			DueDate:      domain.Date(2024, time.Month(i+1), 15),
			PrincipalDue: d(due),
			InterestDue:  d("10"),
		})
	}
	return out
}

func TestAllocate_OldestFirstPerCategory(t *testing.T) {
	h := history("100", "100", "100")
	// shuffled input order must not matter
	h[0], h[2] = h[2], h[0]
	summary := domain.LoanSummary{
		PrincipalRepaid:     d("120"),
		PrincipalWrittenOff: d("30"),
		InterestRepaid:      d("15"),
		InterestWaived:      d("10"),
	}

	got := Allocate(summary, h, businessDate)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].Number)
	assert.True(t, got[0].PrincipalPaid.Equal(d("100")))
	assert.True(t, got[0].InterestPaid.Equal(d("10")))
	assert.True(t, got[0].Complete)

	assert.True(t, got[1].PrincipalPaid.Equal(d("50")))
	assert.True(t, got[1].InterestPaid.Equal(d("10")))
	assert.False(t, got[1].Complete)

	assert.True(t, got[2].PrincipalPaid.IsZero())
	assert.True(t, got[2].InterestPaid.Equal(d("5")))
	assert.False(t, got[2].Complete)

	// the caller's slice is untouched
	assert.Equal(t, 3, h[0].Number)
	assert.True(t, h[1].PrincipalDue.Equal(d("100")))
}

func TestComputeOriginal(t *testing.T) {
	loanID := uuid.New()
	summary := domain.LoanSummary{
		PrincipalRepaid: d("150"),
		InterestRepaid:  d("15"),
	}

	rec, err := Engine{}.ComputeOriginal(loanID, summary, history("100", "100", "100"), businessDate)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.PrincipalOverdue.Equal(d("150")))
	assert.True(t, rec.InterestOverdue.Equal(d("15")))
	assert.True(t, rec.TotalOverdue.Equal(d("165")))
	assert.Equal(t, domain.Date(2024, time.February, 15), rec.OverdueSince)
}

func TestComputeOriginal_OnlyInterestOverdueYieldsNoRow(t *testing.T) {
	summary := domain.LoanSummary{PrincipalRepaid: d("300")}

	rec, err := Engine{}.ComputeOriginal(uuid.New(), summary, history("100", "100", "100"), businessDate)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestComputeOriginal_CutoffExcludesLaterInstallments(t *testing.T) {
	rec, err := Engine{}.ComputeOriginal(uuid.New(), domain.LoanSummary{}, history("100", "100", "100"), domain.Date(2024, time.February, 15))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.PrincipalOverdue.Equal(d("100")))
	assert.Equal(t, domain.Date(2024, time.January, 15), rec.OverdueSince)
}

func TestCompute_SelectsPolicy(t *testing.T) {
	loan := activeLoan(0)
	loan.Summary = domain.LoanSummary{PrincipalRepaid: d("100"), InterestRepaid: d("10")}
	current := []domain.Installment{inst(1, domain.Date(2024, time.January, 15), "50", "5")}
	in := Input{Loan: loan, Installments: current, History: history("100", "100")}

	t.Run("current schedule by default", func(t *testing.T) {
		in.Product = &domain.LoanProduct{}
		rec, err := Engine{}.Compute(in, businessDate)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.TotalOverdue.Equal(d("55")))
	})

	t.Run("product flag alone is not enough", func(t *testing.T) {
		in.Product = &domain.LoanProduct{ArrearsBasedOnOriginalSchedule: true}
		rec, err := Engine{}.Compute(in, businessDate)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.TotalOverdue.Equal(d("55")))
	})

	t.Run("original schedule with interest recalculation", func(t *testing.T) {
		in.Product = &domain.LoanProduct{ArrearsBasedOnOriginalSchedule: true}
		in.Loan.InterestRecalculationEnabled = true
		rec, err := Engine{}.Compute(in, businessDate)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.PrincipalOverdue.Equal(d("100")))
		assert.True(t, rec.InterestOverdue.Equal(d("10")))
		assert.Equal(t, domain.Date(2024, time.February, 15), rec.OverdueSince)
	})

	t.Run("original schedule without history falls back to live schedule", func(t *testing.T) {
		in.History = nil
		rec, err := Engine{}.Compute(in, businessDate)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.TotalOverdue.Equal(d("55")))
	})
}

func TestCompute_OriginalPolicyWithoutHistoryAgesUnpaidInstallments(t *testing.T) {
	loan := activeLoan(0)
	loan.InterestRecalculationEnabled = true
	in := Input{
		Loan:    loan,
		Product: &domain.LoanProduct{ArrearsBasedOnOriginalSchedule: true},
		Installments: []domain.Installment{
			inst(1, domain.Date(2024, time.January, 15), "100", "10"),
			inst(2, domain.Date(2024, time.February, 15), "100", "10"),
		},
	}

	rec, err := Engine{}.Compute(in, domain.Date(2024, time.June, 15))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.PrincipalOverdue.Equal(d("200")))
	assert.True(t, rec.InterestOverdue.Equal(d("20")))
	assert.True(t, rec.TotalOverdue.Equal(d("220")))
	assert.Equal(t, domain.Date(2024, time.January, 15), rec.OverdueSince)
}
