package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by a Money value.
const Scale = 2

var (
	// ErrNotNumeric is returned when an amount cannot be parsed as a decimal.
	ErrNotNumeric = errors.New("amount must be numeric")
	// ErrNotPositive is returned for zero or negative amounts.
	ErrNotPositive = errors.New("amount must be greater than zero")
	// ErrTooPrecise is returned when an amount has more than two fractional digits.
	ErrTooPrecise = errors.New("amount supports at most two decimal places")
	// ErrTooLarge is returned when an amount does not fit in a Money value.
	ErrTooLarge = errors.New("amount is out of range")
)

var maxMinorUnits = decimal.NewFromInt(1 << 62)

// Money is an amount expressed in minor units (cents).
type Money int64

// FromUnits converts a whole number of major units into Money.
func FromUnits(units int64) Money {
	return Money(units * 100)
}

// Parse reads a positive decimal amount with at most two fractional digits.
func Parse(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, ErrNotNumeric
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, trimmed)
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return 0, ErrNotPositive
	}
	minor := value.Shift(Scale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %q", ErrTooLarge, trimmed)
	}
	return Money(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// MulRate multiplies the amount by rate and rounds half-up to the nearest cent.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(rate).Round(0).IntPart())
}

// String renders the amount with two fixed decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// MarshalJSON renders Money as a fixed two-decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// Input is the raw textual form of a client supplied amount. Validation is
// deferred so the caller decides when an invalid amount is reported.
type Input string

// UnmarshalJSON keeps the literal text of a number or the content of a string.
func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*in = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		// Booleans, objects and arrays are kept verbatim and fail Parse later.
		*in = Input(data)
		return nil
	}
	*in = Input(num.String())
	return nil
}
