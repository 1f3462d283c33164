// Package schedule generates loan repayment schedules. Generation is a pure
// function of the terms and the money policy.
package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

// Period is one row of a schedule. Number 0 is the disbursement row.
type Period struct {
	Number             int
	FromDate           time.Time
	DueDate            time.Time
	PrincipalDue       money.Money
	InterestDue        money.Money
	FeeDue             money.Money
	PenaltyDue         money.Money
	TotalDue           money.Money
	OutstandingBalance money.Money
}

type Schedule struct {
	Currency           money.Currency
	Disbursement       Period
	Periods            []Period
	PrincipalDisbursed money.Money
	LoanTermInDays     int

	TotalPrincipal         money.Money
	TotalInterest          money.Money
	TotalFees              money.Money
	TotalPenalties         money.Money
	TotalRepaymentExpected money.Money
}

// Rows returns the disbursement row followed by the repayment periods.
func (s *Schedule) Rows() []Period {
	rows := make([]Period, 0, len(s.Periods)+1)
	rows = append(rows, s.Disbursement)
	return append(rows, s.Periods...)
}

// Installments converts the repayment periods into unpaid installments of loanID.
func (s *Schedule) Installments(loanID uuid.UUID) []domain.Installment {
	out := make([]domain.Installment, 0, len(s.Periods))
	for _, p := range s.Periods {
		out = append(out, domain.Installment{
			LoanID:       loanID,
			Number:       p.Number,
			FromDate:     p.FromDate,
			DueDate:      p.DueDate,
			PrincipalDue: p.PrincipalDue.Amount(),
			InterestDue:  p.InterestDue.Amount(),
			FeeDue:       p.FeeDue.Amount(),
			PenaltyDue:   p.PenaltyDue.Amount(),
		})
	}
	return out
}

type Generator struct {
	policy     money.Policy
	strategies map[domain.InterestMethod]InterestStrategy
}

// NewGenerator builds a generator using strategies, or the flat and
// declining-balance strategies when none are given.
func NewGenerator(policy money.Policy, strategies ...InterestStrategy) *Generator {
	if len(strategies) == 0 {
		strategies = []InterestStrategy{Flat{}, DecliningBalance{}}
	}
	reg := make(map[domain.InterestMethod]InterestStrategy, len(strategies))
	for _, s := range strategies {
		reg[s.Method()] = s
	}
	return &Generator{policy: policy, strategies: reg}
}

func (g *Generator) Generate(terms Terms) (*Schedule, error) {
	terms = terms.withDefaults()
	if err := terms.Validate(); err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}

	strategy, ok := g.strategies[terms.InterestMethod]
	if !ok {
		return nil, fmt.Errorf("Generate: %q: %w", terms.InterestMethod, domain.ErrUnsupportedInterestMethod)
	}

	plan := newPlan(terms, g.policy)
	splits, err := strategy.Amortize(plan)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}
	if len(splits) != plan.Periods() {
		return nil, fmt.Errorf("Generate: strategy %s returned %d periods, want %d", terms.InterestMethod, len(splits), plan.Periods())
	}

	interest := applyInterestGrace(plan, splits)
	return build(plan, splits, interest), nil
}

// applyInterestGrace forgives interest in interest-free periods and defers
// interest of interest-payment grace periods to the first period after them.
func applyInterestGrace(p *Plan, splits []Split) []money.Money {
	zero := p.Terms.Principal.Zero()
	due := make([]money.Money, len(splits))
	deferred := zero

	for i, s := range splits {
		number := i + 1
		accrued := s.Interest
		if p.IsInterestFree(number) {
			accrued = zero
		}
		if p.IsInterestPaymentGrace(number) {
			deferred = deferred.Plus(accrued)
			due[i] = zero
			continue
		}
		due[i] = accrued.Plus(deferred)
		deferred = zero
	}
	return due
}

func build(p *Plan, splits []Split, interest []money.Money) *Schedule {
	principal := p.Terms.Principal
	zero := principal.Zero()
	n := p.Periods()

	totalInterest := zero
	for _, i := range interest {
		totalInterest = totalInterest.Plus(i)
	}

	fees := make([]money.Money, n)
	penalties := make([]money.Money, n)
	for i := range n {
		fees[i], penalties[i] = zero, zero
	}
	disbursementFee := zero

	for _, c := range p.Terms.Charges {
		switch c.Time {
		case domain.ChargeTimeDisbursement:
			disbursementFee = disbursementFee.Plus(chargeAmount(p, c, principal, totalInterest))
		case domain.ChargeTimeInstallmentFee:
			for i := range n {
				amt := chargeAmount(p, c, splits[i].Principal, interest[i])
				if c.Penalty {
					penalties[i] = penalties[i].Plus(amt)
				} else {
					fees[i] = fees[i].Plus(amt)
				}
			}
		case domain.ChargeTimeSpecifiedDueDate:
			i := periodFor(p.Windows, domain.Day(*c.DueDate))
			amt := chargeAmount(p, c, principal, totalInterest)
			if c.Penalty {
				penalties[i] = penalties[i].Plus(amt)
			} else {
				fees[i] = fees[i].Plus(amt)
			}
		}
	}

	s := &Schedule{
		Currency:           principal.Currency(),
		PrincipalDisbursed: principal,
		Disbursement: Period{
			Number:             0,
			FromDate:           p.Terms.DisbursementDate,
			DueDate:            p.Terms.DisbursementDate,
			PrincipalDue:       zero,
			InterestDue:        zero,
			FeeDue:             disbursementFee,
			PenaltyDue:         zero,
			TotalDue:           disbursementFee,
			OutstandingBalance: principal,
		},
		Periods: make([]Period, n),
	}

	balance := principal
	for i, w := range p.Windows {
		balance = balance.Minus(splits[i].Principal)
		s.Periods[i] = Period{
			Number:             w.Number,
			FromDate:           w.From,
			DueDate:            w.Due,
			PrincipalDue:       splits[i].Principal,
			InterestDue:        interest[i],
			FeeDue:             fees[i],
			PenaltyDue:         penalties[i],
			TotalDue:           splits[i].Principal.Plus(interest[i]).Plus(fees[i]).Plus(penalties[i]),
			OutstandingBalance: balance,
		}
	}

	s.TotalPrincipal, s.TotalInterest, s.TotalFees, s.TotalPenalties = zero, zero, zero, zero
	for _, r := range s.Rows() {
		s.TotalPrincipal = s.TotalPrincipal.Plus(r.PrincipalDue)
		s.TotalInterest = s.TotalInterest.Plus(r.InterestDue)
		s.TotalFees = s.TotalFees.Plus(r.FeeDue)
		s.TotalPenalties = s.TotalPenalties.Plus(r.PenaltyDue)
	}
	s.TotalRepaymentExpected = s.TotalPrincipal.Plus(s.TotalInterest).Plus(s.TotalFees).Plus(s.TotalPenalties)
	s.LoanTermInDays = daysBetween(p.Terms.DisbursementDate, p.Windows[n-1].Due)
	return s
}

func chargeAmount(p *Plan, c domain.Charge, principal, interest money.Money) money.Money {
	switch c.Calculation {
	case domain.ChargeCalculationPercentOfAmount:
		return principal.PercentageOf(c.Amount)
	case domain.ChargeCalculationPercentOfAmountAndInterest:
		return principal.Plus(interest).PercentageOf(c.Amount)
	default:
		return p.Money(c.Amount)
	}
}

// periodFor returns the index of the window whose (From, Due] range holds
// date. Dates on or before disbursement land in the first period and dates
// after the last due date in the last one.
func periodFor(windows []Window, date time.Time) int {
	for i, w := range windows {
		if !date.After(w.Due) {
			return i
		}
	}
	return len(windows) - 1
}
