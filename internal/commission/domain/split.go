package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("commission rate must be within [0, 1]")

// Calculator splits a gross amount into commission and net payout.
//
// Commission is rounded half-up to the minor unit; net is always derived by
// subtraction, so commission + net == gross for every input.
type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(rate decimal.Decimal) (Calculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Calculator{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}
	return Calculator{rate: rate}, nil
}

func (c Calculator) Rate() decimal.Decimal { return c.rate }

// Commission returns round(amount * rate) in minor units.
func (c Calculator) Commission(amountMinor int64) int64 {
	// Amounts accepted by the ledger are never negative, so rounding half away
	// from zero is round-half-up.
	return decimal.NewFromInt(amountMinor).Mul(c.rate).Round(0).IntPart()
}

func (c Calculator) Net(amountMinor int64) int64 {
	return amountMinor - c.Commission(amountMinor)
}

func (c Calculator) Split(amountMinor int64) (commission, net int64) {
	commission = c.Commission(amountMinor)
	return commission, amountMinor - commission
}

// Stats aggregates completed payments for one recipient, in minor units.
type Stats struct {
	RecipientID     string
	TotalSales      int64
	TotalCommission int64
	TotalEarned     int64
	CommissionRate  decimal.Decimal
}
