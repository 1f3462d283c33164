// Package money implements a currency-aware decimal amount whose value is
// always normalized to the currency scale under one rounding mode.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrDivisionByZero   = errors.New("division by zero")
)

var hundred = decimal.NewFromInt(100)

type Currency struct {
	Code          string
	Name          string
	DecimalPlaces int32
	InMultiplesOf int64
}

// ArithmeticError is raised as a panic by operations that mix currencies or
// divide by zero. Both indicate a defect in the calling code.
type ArithmeticError struct {
	Op    string
	Left  string
	Right string
	Err   error
}

func (e *ArithmeticError) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("money.%s: %s: %v", e.Op, e.Left, e.Err)
	}
	return fmt.Sprintf("money.%s: %s vs %s: %v", e.Op, e.Left, e.Right, e.Err)
}

func (e *ArithmeticError) Unwrap() error { return e.Err }

// Recover turns an ArithmeticError panic into an error stored in errp. Any
// other panic is re-raised. It must be called directly by defer.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ae, ok := r.(*ArithmeticError); ok {
		*errp = ae
		return
	}
	panic(r)
}

// Policy carries the rounding mode used to normalize every Money it creates.
// The zero value rounds HALF_EVEN.
type Policy struct {
	mode RoundingMode
}

func NewPolicy(mode RoundingMode) (Policy, error) {
	if !mode.IsValid() {
		return Policy{}, fmt.Errorf("NewPolicy: unknown rounding mode %q", mode)
	}
	return Policy{mode: mode}, nil
}

func (p Policy) Mode() RoundingMode {
	if p.mode == "" {
		return DefaultRoundingMode
	}
	return p.mode
}

func (p Policy) Of(c Currency, amount decimal.Decimal) Money {
	return Money{currency: c, amount: normalize(c, amount, p.Mode()), mode: p.Mode()}
}

func (p Policy) OfInt(c Currency, amount int64) Money {
	return p.Of(c, decimal.NewFromInt(amount))
}

func (p Policy) OfString(c Currency, amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("OfString: %w", err)
	}
	return p.Of(c, d), nil
}

func (p Policy) Zero(c Currency) Money {
	return p.Of(c, decimal.Zero)
}

func normalize(c Currency, v decimal.Decimal, mode RoundingMode) decimal.Decimal {
	if c.DecimalPlaces == 0 && c.InMultiplesOf > 0 && v.IsPositive() {
		v = RoundToMultiplesOf(v, c.InMultiplesOf)
	}
	return round(v, c.DecimalPlaces, mode)
}

type Money struct {
	currency Currency
	amount   decimal.Decimal
	mode     RoundingMode
}

func (m Money) Currency() Currency      { return m.currency }
func (m Money) CurrencyCode() string    { return m.currency.Code }
func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Scale() int32            { return -m.amount.Exponent() }

func (m Money) String() string {
	return m.currency.Code + " " + m.amount.StringFixed(m.currency.DecimalPlaces)
}

func (m Money) with(v decimal.Decimal) Money {
	return Money{currency: m.currency, amount: normalize(m.currency, v, m.mode), mode: m.mode}
}

func (m Money) mustMatch(op string, other Money) {
	if m.currency.Code != other.currency.Code {
		panic(&ArithmeticError{Op: op, Left: m.currency.Code, Right: other.currency.Code, Err: ErrCurrencyMismatch})
	}
}

func (m Money) Zero() Money { return m.with(decimal.Zero) }

func (m Money) Plus(other Money) Money {
	m.mustMatch("Plus", other)
	return m.with(m.amount.Add(other.amount))
}

func (m Money) Minus(other Money) Money {
	m.mustMatch("Minus", other)
	return m.with(m.amount.Sub(other.amount))
}

func (m Money) MultipliedBy(factor decimal.Decimal) Money {
	return m.with(m.amount.Mul(factor))
}

func (m Money) DividedBy(divisor decimal.Decimal) Money {
	if divisor.IsZero() {
		panic(&ArithmeticError{Op: "DividedBy", Left: m.currency.Code, Err: ErrDivisionByZero})
	}
	return m.with(m.amount.Div(divisor))
}

func (m Money) DividedByInt(n int64) Money {
	return m.DividedBy(decimal.NewFromInt(n))
}

// PercentageOf returns pct percent of m.
func (m Money) PercentageOf(pct decimal.Decimal) Money {
	return m.with(m.amount.Mul(pct).Div(hundred))
}

func (m Money) Negated() Money { return m.with(m.amount.Neg()) }
func (m Money) Abs() Money     { return m.with(m.amount.Abs()) }

func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsGreaterThanZero() bool { return m.amount.IsPositive() }
func (m Money) IsLessThanZero() bool    { return m.amount.IsNegative() }

func (m Money) IsGreaterThan(other Money) bool {
	m.mustMatch("IsGreaterThan", other)
	return m.amount.GreaterThan(other.amount)
}

func (m Money) IsGreaterThanOrEqual(other Money) bool {
	m.mustMatch("IsGreaterThanOrEqual", other)
	return m.amount.GreaterThanOrEqual(other.amount)
}

func (m Money) IsLessThan(other Money) bool {
	m.mustMatch("IsLessThan", other)
	return m.amount.LessThan(other.amount)
}

func (m Money) IsEqualTo(other Money) bool {
	m.mustMatch("IsEqualTo", other)
	return m.amount.Equal(other.amount)
}

// Equal reports whether both values share a currency code and amount. Unlike
// IsEqualTo it never panics.
func (m Money) Equal(other Money) bool {
	return m.currency.Code == other.currency.Code && m.amount.Equal(other.amount)
}

func Min(a, b Money) Money {
	if a.IsLessThan(b) {
		return a
	}
	return b
}

func Max(a, b Money) Money {
	if a.IsGreaterThan(b) {
		return a
	}
	return b
}
