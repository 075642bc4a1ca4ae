package domain

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places carried by every
// supported currency. Gateways transact in minor units (paise, cents).
const MinorUnitExponent = 2

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// ParseAmount parses a major-unit decimal string such as "499" or "1234.56".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ToMinor converts a positive major-unit amount to minor units. The amount
// must be exact at two decimal places; nothing is rounded.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(MinorUnitExponent)) {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, MinorUnitExponent)
	}
	minor := amount.Shift(MinorUnitExponent).BigInt()
	if !minor.IsInt64() {
		return 0, fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return minor.Int64(), nil
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// FormatMinor renders minor units as a fixed two-decimal major-unit string.
func FormatMinor(minor int64) string {
	return FromMinor(minor).StringFixed(MinorUnitExponent)
}

func ValidCurrency(code string) bool {
	return currencyCode.MatchString(code)
}
