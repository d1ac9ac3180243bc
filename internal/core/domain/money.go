package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor units (cents). All ledger arithmetic happens on
// this type; textual input is converted with ParseMoney, which truncates.
type Money int64

// centsPerUnit is the scale of Money.
const centsPerUnit = 100

var (
	// ErrNotNumeric is returned when an amount cannot be read as a decimal number.
	ErrNotNumeric = errors.New("amount is not a number")
	// ErrAmountOutOfRange is returned when an amount does not fit in Money.
	ErrAmountOutOfRange = errors.New("amount out of range")

	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// MinimumAmount is the smallest amount a deposit or transfer may carry.
const MinimumAmount Money = 1

// ParseMoney reads a decimal string and truncates it toward zero to cents.
// "1.19999999999999911199" becomes 1.19, "-0.019" becomes -0.01.
func ParseMoney(raw string) (Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrNotNumeric
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return FromDecimal(d)
}

// FromDecimal truncates d to cents.
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := TruncateToCents(d).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrAmountOutOfRange
	}
	return Money(cents.IntPart()), nil
}

// TruncateToCents drops everything past the second fractional digit.
// It never rounds, and applying it twice changes nothing.
func TruncateToCents(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// FromCents builds Money from minor units.
func FromCents(cents int64) Money {
	return Money(cents)
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Neg returns -m.
func (m Money) Neg() Money {
	return -m
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m < 0
}

// String renders the canonical form: optional minus, integer part, a dot and
// exactly two digits. No grouping separators.
func (m Money) String() string {
	sign := ""
	abs := uint64(m)
	if m < 0 {
		sign = "-"
		abs = uint64(-(m + 1)) + 1
	}
	return fmt.Sprintf("%s%d.%02d", sign, abs/centsPerUnit, abs%centsPerUnit)
}

// MarshalJSON encodes Money as its canonical string so clients never see a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON accepts either a quoted decimal or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
