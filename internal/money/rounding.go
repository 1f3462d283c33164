package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

type RoundingMode string

const (
	RoundingUp       RoundingMode = "UP"
	RoundingDown     RoundingMode = "DOWN"
	RoundingCeiling  RoundingMode = "CEILING"
	RoundingFloor    RoundingMode = "FLOOR"
	RoundingHalfUp   RoundingMode = "HALF_UP"
	RoundingHalfDown RoundingMode = "HALF_DOWN"
	RoundingHalfEven RoundingMode = "HALF_EVEN"
)

const DefaultRoundingMode = RoundingHalfEven

func (m RoundingMode) IsValid() bool {
	switch m {
	case RoundingUp, RoundingDown, RoundingCeiling, RoundingFloor,
		RoundingHalfUp, RoundingHalfDown, RoundingHalfEven:
		return true
	}
	return false
}

func ParseRoundingMode(s string) (RoundingMode, error) {
	m := RoundingMode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("ParseRoundingMode: unknown rounding mode %q", s)
	}
	return m, nil
}

// round sets d to exactly places fractional digits using mode.
func round(d decimal.Decimal, places int32, mode RoundingMode) decimal.Decimal {
	var r decimal.Decimal
	switch mode {
	case RoundingUp:
		r = d.RoundUp(places)
	case RoundingDown:
		r = d.RoundDown(places)
	case RoundingCeiling:
		r = d.RoundCeil(places)
	case RoundingFloor:
		r = d.RoundFloor(places)
	case RoundingHalfUp:
		r = d.Round(places)
	case RoundingHalfDown:
		r = roundHalfDown(d, places)
	default:
		r = d.RoundBank(places)
	}
	return withScale(r, places)
}

func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	trunc := d.Truncate(places)
	rem := d.Sub(trunc).Abs()
	half := decimal.New(5, -places-1)
	if rem.GreaterThan(half) {
		return d.RoundUp(places)
	}
	return trunc
}

// withScale rewrites an already rounded d so that its exponent is -places.
// The shopspring rounding helpers return d untouched when it already has
// fewer fractional digits, which would otherwise leak through as a smaller
// scale.
func withScale(d decimal.Decimal, places int32) decimal.Decimal {
	exp := d.Exponent()
	if exp == -places {
		return d
	}
	if exp < -places {
		return withScale(d.Truncate(places), places)
	}
	coef := d.Coefficient()
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp+places)), nil)
	coef.Mul(coef, factor)
	return decimal.NewFromBigInt(coef, -places)
}

// RoundToMultiplesOf snaps v to the nearest multiple of unit. An exact tie
// between the two neighbouring multiples resolves to the larger one.
func RoundToMultiplesOf(v decimal.Decimal, unit int64) decimal.Decimal {
	if unit <= 0 {
		return v
	}
	m := decimal.NewFromInt(unit)
	q, r := v.QuoRem(m, 0)
	floor := q.Mul(m)
	if r.IsZero() {
		return floor
	}
	if r.IsNegative() {
		floor = floor.Sub(m)
	}
	ceil := floor.Add(m)
	if v.Sub(floor).LessThan(ceil.Sub(v)) {
		return floor
	}
	return ceil
}
