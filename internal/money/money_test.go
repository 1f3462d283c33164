package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	usd = Currency{Code: "USD", Name: "US Dollar", DecimalPlaces: 2}
	jpy = Currency{Code: "JPY", Name: "Japanese Yen", DecimalPlaces: 0}
	kwd = Currency{Code: "KWD", Name: "Kuwaiti Dinar", DecimalPlaces: 3}
	xof = Currency{Code: "XOF", Name: "CFA Franc", DecimalPlaces: 0, InMultiplesOf: 50}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func arithmeticErr(t *testing.T, fn func()) (err error) {
	t.Helper()
	defer Recover(&err)
	fn()
	return nil
}

func TestOf_ScaleMatchesCurrency(t *testing.T) {
	p := Policy{}
	inputs := []string{"0", "1", "1.5", "100.005", "-3.14159", "12345678901234567890.123456789", "0.0000001"}

	for _, c := range []Currency{usd, jpy, kwd, xof} {
		for _, in := range inputs {
			m := p.Of(c, dec(in))
			assert.Equal(t, c.DecimalPlaces, m.Scale(), "%s %s -> %s", c.Code, in, m.Amount())
		}
	}
}

func TestOf_RoundingModes(t *testing.T) {
	tests := []struct {
		mode  RoundingMode
		input string
		want  string
	}{
		{RoundingHalfEven, "2.345", "2.34"},
		{RoundingHalfEven, "2.355", "2.36"},
		{RoundingHalfUp, "2.345", "2.35"},
		{RoundingHalfUp, "-2.345", "-2.35"},
		{RoundingHalfDown, "2.345", "2.34"},
		{RoundingHalfDown, "2.3451", "2.35"},
		{RoundingHalfDown, "-2.345", "-2.34"},
		{RoundingUp, "2.341", "2.35"},
		{RoundingUp, "-2.341", "-2.35"},
		{RoundingDown, "2.349", "2.34"},
		{RoundingDown, "-2.349", "-2.34"},
		{RoundingCeiling, "-2.349", "-2.34"},
		{RoundingCeiling, "2.341", "2.35"},
		{RoundingFloor, "2.349", "2.34"},
		{RoundingFloor, "-2.341", "-2.35"},
	}

	for _, tc := range tests {
		t.Run(string(tc.mode)+" "+tc.input, func(t *testing.T) {
			p, err := NewPolicy(tc.mode)
			require.NoError(t, err)

			m := p.Of(usd, dec(tc.input))
			assert.True(t, m.Amount().Equal(dec(tc.want)), "got %s, want %s", m.Amount(), tc.want)
			assert.Equal(t, int32(2), m.Scale())
		})
	}
}

func TestOf_MultiplesOf(t *testing.T) {
	p := Policy{}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"floor is nearer", "70", "50"},
		{"ceiling is nearer", "80", "100"},
		{"exact tie resolves to ceiling", "75", "100"},
		{"already a multiple", "150", "150"},
		{"fraction below tie", "74.9", "50"},
		{"small positive snaps up from zero on tie", "25", "50"},
		{"small positive snaps to zero", "24", "0"},
		{"zero untouched", "0", "0"},
		{"negative is not snapped", "-70", "-70"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := p.Of(xof, dec(tc.input))
			assert.True(t, m.Amount().Equal(dec(tc.want)), "got %s, want %s", m.Amount(), tc.want)
		})
	}
}

func TestOf_MultiplesOfAlwaysDivisible(t *testing.T) {
	p := Policy{}
	unit := decimal.NewFromInt(xof.InMultiplesOf)

	for i := int64(1); i <= 1000; i += 7 {
		m := p.Of(xof, decimal.NewFromInt(i).Add(dec("0.37")))
		assert.True(t, m.Amount().Mod(unit).IsZero(), "%d -> %s", i, m.Amount())
	}
}

func TestOf_MultiplesIgnoredWithDecimalPlaces(t *testing.T) {
	c := Currency{Code: "ABC", DecimalPlaces: 2, InMultiplesOf: 50}
	m := Policy{}.Of(c, dec("70"))
	assert.True(t, m.Amount().Equal(dec("70.00")))
}

func TestZero(t *testing.T) {
	p := Policy{}
	for _, c := range []Currency{usd, jpy, xof} {
		z := p.Zero(c)
		assert.True(t, z.IsZero())
		assert.Equal(t, c.DecimalPlaces, z.Scale())

		for _, in := range []string{"0", "12.345", "-7.5", "75", "1000000.01"} {
			x := p.Of(c, dec(in))
			assert.True(t, z.Plus(x).Equal(x), "%s: 0 + %s = %s", c.Code, x, z.Plus(x))
		}
	}
}

func TestArithmetic(t *testing.T) {
	p := Policy{}
	a := p.Of(usd, dec("100.10"))
	b := p.Of(usd, dec("0.25"))

	assert.Equal(t, "USD 100.35", a.Plus(b).String())
	assert.Equal(t, "USD 99.85", a.Minus(b).String())
	assert.Equal(t, "USD 250.25", a.MultipliedBy(dec("2.5")).String())
	assert.Equal(t, "USD 33.37", a.DividedBy(dec("3")).String())
	assert.Equal(t, "USD 33.37", a.DividedByInt(3).String())
	assert.Equal(t, "USD 12.51", a.PercentageOf(dec("12.5")).String())
	assert.Equal(t, "USD -100.10", a.Negated().String())
	assert.Equal(t, "USD 100.10", a.Negated().Abs().String())

	assert.True(t, a.IsGreaterThan(b))
	assert.True(t, b.IsLessThan(a))
	assert.True(t, a.IsGreaterThanOrEqual(a))
	assert.True(t, a.IsEqualTo(p.Of(usd, dec("100.1"))))
	assert.True(t, a.IsGreaterThanZero())
	assert.True(t, a.Negated().IsLessThanZero())
	assert.Equal(t, b, Min(a, b))
	assert.Equal(t, a, Max(a, b))
}

func TestArithmetic_CurrencyMismatch(t *testing.T) {
	p := Policy{}
	a := p.Of(usd, dec("10"))
	b := p.Of(kwd, dec("10"))

	ops := map[string]func(){
		"Plus":                 func() { a.Plus(b) },
		"Minus":                func() { a.Minus(b) },
		"IsGreaterThan":        func() { a.IsGreaterThan(b) },
		"IsGreaterThanOrEqual": func() { a.IsGreaterThanOrEqual(b) },
		"IsLessThan":           func() { a.IsLessThan(b) },
		"IsEqualTo":            func() { a.IsEqualTo(b) },
		"Min":                  func() { Min(a, b) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := arithmeticErr(t, op)
			require.ErrorIs(t, err, ErrCurrencyMismatch)

			var ae *ArithmeticError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, "USD", ae.Left)
			assert.Equal(t, "KWD", ae.Right)
		})
	}

	assert.False(t, a.Equal(b))
}

func TestDividedBy_Zero(t *testing.T) {
	a := Policy{}.Of(usd, dec("10"))
	err := arithmeticErr(t, func() { a.DividedBy(decimal.Zero) })
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestRecover_RepanicsOtherValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		_ = arithmeticErr(t, func() { panic("boom") })
	})
}

func TestParseRoundingMode(t *testing.T) {
	m, err := ParseRoundingMode(" half_up ")
	require.NoError(t, err)
	assert.Equal(t, RoundingHalfUp, m)

	_, err = ParseRoundingMode("HALF_ODD")
	require.Error(t, err)

	_, err = NewPolicy("SIDEWAYS")
	require.Error(t, err)
}

func TestRoundToMultiplesOf(t *testing.T) {
	tests := []struct {
		in   string
		unit int64
		want string
	}{
		{"1234.5", 100, "1200"},
		{"1250", 100, "1300"},
		{"-70", 50, "-50"},
		{"-75", 50, "-50"},
		{"12.34", 0, "12.34"},
	}
	for _, tc := range tests {
		got := RoundToMultiplesOf(dec(tc.in), tc.unit)
		assert.True(t, got.Equal(dec(tc.want)), "%s/%d: got %s, want %s", tc.in, tc.unit, got, tc.want)
	}
}
