package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Window is the (From, Due] date range of one repayment period.
type Window struct {
	Number int
	From   time.Time
	Due    time.Time
}

func (w Window) Days() int {
	return daysBetween(w.From, w.Due)
}

// Plan is what an InterestStrategy amortizes: validated terms, the period
// windows and the money policy used to round every amount.
type Plan struct {
	Terms   Terms
	Policy  money.Policy
	Windows []Window
}

func newPlan(t Terms, p money.Policy) *Plan {
	n := t.NumberOfRepayments
	first := addPeriod(t.DisbursementDate, t.RepaymentEvery, t.RepaymentFrequency)
	if t.RepaymentsStartingFrom != nil {
		first = domain.Day(*t.RepaymentsStartingFrom)
	}

	windows := make([]Window, n)
	from := t.DisbursementDate
	for i := range n {
		due := addPeriod(first, i*t.RepaymentEvery, t.RepaymentFrequency)
		windows[i] = Window{Number: i + 1, From: from, Due: due}
		from = due
	}
	return &Plan{Terms: t, Policy: p, Windows: windows}
}

func (p *Plan) Periods() int { return len(p.Windows) }

// PrincipalPeriods is the number of periods that repay principal.
func (p *Plan) PrincipalPeriods() int {
	return p.Periods() - p.Terms.GraceOnPrincipalPayment
}

func (p *Plan) IsPrincipalGrace(number int) bool {
	return number <= p.Terms.GraceOnPrincipalPayment
}

func (p *Plan) IsInterestFree(number int) bool {
	return number <= p.Terms.GraceOnInterestCharged
}

func (p *Plan) IsInterestPaymentGrace(number int) bool {
	return number <= p.Terms.GraceOnInterestPayment
}

func (p *Plan) Money(d decimal.Decimal) money.Money {
	return p.Policy.Of(p.Terms.Principal.Currency(), d)
}

// Installment snaps an installment amount to InstallmentAmountInMultiplesOf
// when configured.
func (p *Plan) Installment(m money.Money) money.Money {
	if p.Terms.InstallmentAmountInMultiplesOf <= 0 {
		return m
	}
	return p.Money(money.RoundToMultiplesOf(m.Amount(), p.Terms.InstallmentAmountInMultiplesOf))
}

// PeriodicRate is the nominal rate of one repayment period as a fraction.
func (p *Plan) PeriodicRate() decimal.Decimal {
	annual := p.Terms.AnnualNominalRate().Div(hundred)
	every := decimal.NewFromInt(int64(p.Terms.RepaymentEvery))

	switch p.Terms.RepaymentFrequency {
	case domain.PeriodFrequencyDays:
		return annual.Div(decimal.NewFromInt(int64(p.daysInYear(p.Terms.DisbursementDate)))).Mul(every)
	case domain.PeriodFrequencyWeeks:
		return annual.Div(decimal.NewFromInt(52)).Mul(every)
	case domain.PeriodFrequencyYears:
		return annual.Mul(every)
	default:
		return annual.Div(decimal.NewFromInt(12)).Mul(every)
	}
}

// RateFor is the fraction of the outstanding balance charged as interest in
// w. Interest accrues only from InterestChargedFrom onwards; a window that
// straddles it is pro-rated by days.
func (p *Plan) RateFor(w Window) decimal.Decimal {
	from := w.From
	if cf := p.Terms.InterestChargedFrom; cf != nil {
		start := domain.Day(*cf)
		if !start.Before(w.Due) {
			return decimal.Zero
		}
		if start.After(from) {
			from = start
		}
	}

	if p.Terms.InterestCalculationPeriod == domain.InterestCalculationDaily {
		days := p.periodDays(w)
		if !from.Equal(w.From) {
			days = min(days, daysBetween(from, w.Due))
		}
		annual := p.Terms.AnnualNominalRate().Div(hundred)
		return annual.Div(decimal.NewFromInt(int64(p.daysInYear(from)))).Mul(decimal.NewFromInt(int64(days)))
	}

	rate := p.PeriodicRate()
	if !from.Equal(w.From) {
		rate = rate.Mul(decimal.NewFromInt(int64(daysBetween(from, w.Due)))).
			Div(decimal.NewFromInt(int64(w.Days())))
	}
	return rate
}

// periodDays honours the 30-day month convention for monthly repayments.
func (p *Plan) periodDays(w Window) int {
	if p.Terms.DaysInMonth == domain.DaysInMonth30 && p.Terms.RepaymentFrequency == domain.PeriodFrequencyMonths {
		return 30 * p.Terms.RepaymentEvery
	}
	return w.Days()
}

func (p *Plan) daysInYear(t time.Time) int {
	if p.Terms.DaysInYear == domain.DaysInYearActual {
		if isLeap(t.Year()) {
			return 366
		}
		return 365
	}
	return int(p.Terms.DaysInYear)
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func addPeriod(t time.Time, n int, f domain.PeriodFrequency) time.Time {
	switch f {
	case domain.PeriodFrequencyDays:
		return t.AddDate(0, 0, n)
	case domain.PeriodFrequencyWeeks:
		return t.AddDate(0, 0, 7*n)
	case domain.PeriodFrequencyYears:
		return addMonths(t, 12*n)
	default:
		return addMonths(t, n)
	}
}

// addMonths moves t by n calendar months, clamping the day to the last day
// of the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// pow raises base to n by repeated multiplication, keeping 30 fractional digits.
func pow(base decimal.Decimal, n int) decimal.Decimal {
	r := one
	for range n {
		r = r.Mul(base).Round(30)
	}
	return r
}

// pmt is the level payment that repays principal over n periods at rate.
func pmt(principal, rate decimal.Decimal, n int) decimal.Decimal {
	if rate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}
	f := pow(one.Add(rate), n)
	return principal.Mul(rate).Mul(f).Div(f.Sub(one))
}
