package schedule

import (
	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

// Split is the principal and accrued interest of one period before interest
// grace is applied.
type Split struct {
	Principal money.Money
	Interest  money.Money
}

// InterestStrategy splits a plan into per-period principal and interest. The
// principal of the returned splits must add up to the plan's principal.
type InterestStrategy interface {
	Method() domain.InterestMethod
	Amortize(p *Plan) ([]Split, error)
}

type DecliningBalance struct{}

func (DecliningBalance) Method() domain.InterestMethod { return domain.InterestMethodDecliningBalance }

// Amortize charges interest on the outstanding balance. Equal installments
// use a level payment over the principal periods; equal principal repays the
// same principal every period. The last period takes whatever is left.
func (DecliningBalance) Amortize(p *Plan) ([]Split, error) {
	balance := p.Terms.Principal
	zero := balance.Zero()
	n := p.Periods()
	equalPrincipal := p.Terms.AmortizationMethod == domain.AmortizationEqualPrincipal

	var level money.Money
	if equalPrincipal {
		level = balance.DividedByInt(int64(p.PrincipalPeriods()))
	} else {
		level = p.Installment(p.Money(pmt(balance.Amount(), p.PeriodicRate(), p.PrincipalPeriods())))
	}

	splits := make([]Split, n)
	for i, w := range p.Windows {
		interest := balance.MultipliedBy(p.RateFor(w))
		principal := zero

		if !p.IsPrincipalGrace(w.Number) {
			switch {
			case i == n-1:
				principal = balance
			case equalPrincipal:
				principal = level
			default:
				principal = level.Minus(interest)
			}
			principal = money.Max(zero, money.Min(principal, balance))
		}

		splits[i] = Split{Principal: principal, Interest: interest}
		balance = balance.Minus(principal)
	}
	return splits, nil
}

type Flat struct{}

func (Flat) Method() domain.InterestMethod { return domain.InterestMethodFlat }

// Amortize charges interest on the original principal every period and
// repays principal in equal parts. With equal installments and an installment
// multiple configured, principal absorbs the rounding of each installment.
func (Flat) Amortize(p *Plan) ([]Split, error) {
	principal := p.Terms.Principal
	balance := principal
	zero := principal.Zero()
	n := p.Periods()
	each := principal.DividedByInt(int64(p.PrincipalPeriods()))
	snap := p.Terms.AmortizationMethod == domain.AmortizationEqualInstallments && p.Terms.InstallmentAmountInMultiplesOf > 0

	splits := make([]Split, n)
	for i, w := range p.Windows {
		interest := principal.MultipliedBy(p.RateFor(w))
		part := zero

		if !p.IsPrincipalGrace(w.Number) {
			switch {
			case i == n-1:
				part = balance
			case snap:
				part = p.Installment(each.Plus(interest)).Minus(interest)
			default:
				part = each
			}
			part = money.Max(zero, money.Min(part, balance))
		}

		splits[i] = Split{Principal: part, Interest: interest}
		balance = balance.Minus(part)
	}
	return splits, nil
}
