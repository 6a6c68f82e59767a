// Package core provides the expense domain types and money handling.
//
// Amounts are kept as integer cents so that sums of user-entered values with
// two fractional digits stay exact. Display rounding happens through
// shopspring/decimal only at the edges.
package core

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

// MaxCents bounds a single amount at one trillion units.
const MaxCents int64 = 100_000_000_000_000

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(MaxCents)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// ParseAmount converts a non-negative decimal string with at most two
// fractional digits into Money. Both "12.34" and "12,34" are accepted.
//
//	ParseAmount("12.5")  -> 1250
//	ParseAmount("0")     -> 0
//	ParseAmount("1.234") -> error
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() || cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Cents: cents.IntPart()}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MoneyFromDecimal rounds d to cents, saturating at the int64 range.
func MoneyFromDecimal(d decimal.Decimal) Money {
	m, err := moneyFromDecimal(d)
	if err != nil {
		if d.Sign() < 0 {
			return Money{Cents: math.MinInt64}
		}
		return Money{Cents: math.MaxInt64}
	}
	return m
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThan(maxInt64) || cents.LessThan(minInt64) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m+o, saturating instead of wrapping on overflow.
func (m Money) Add(o Money) Money {
	sum := m.Cents + o.Cents
	switch {
	case o.Cents > 0 && sum < m.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && sum > m.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: sum}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes m as a plain JSON number, e.g. 10.5.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON reads a JSON number (or numeric string) without going
// through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", data, err)
	}
	v, err := moneyFromDecimal(d)
	if err != nil {
		return fmt.Errorf("decode amount %q: %w", data, err)
	}
	*m = v
	return nil
}
