package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calc(t *testing.T, rate string) Calculator {
	t.Helper()
	c, err := NewCalculator(decimal.RequireFromString(rate))
	require.NoError(t, err)
	return c
}

func TestNewCalculatorRejectsOutOfRange(t *testing.T) {
	for _, r := range []string{"-0.01", "1.01", "2"} {
		_, err := NewCalculator(decimal.RequireFromString(r))
		assert.ErrorIs(t, err, ErrInvalidRate, r)
	}
	for _, r := range []string{"0", "0.1", "1"} {
		_, err := NewCalculator(decimal.RequireFromString(r))
		assert.NoError(t, err, r)
	}
}

func TestCommissionRounding(t *testing.T) {
	c := calc(t, "0.10")
	tests := []struct {
		amount int64
		want   int64
	}{
		{amount: 49900, want: 4990},
		{amount: 100000, want: 10000},
		{amount: 5, want: 1},  // 0.5 paise rounds up
		{amount: 4, want: 0},  // 0.4 paise rounds down
		{amount: 15, want: 2}, // 1.5 paise rounds up
		{amount: 1, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Commission(tt.amount), "amount %d", tt.amount)
	}
}

func TestSplitAlwaysSumsToGross(t *testing.T) {
	for _, rate := range []string{"0.10", "0.125", "0.0333", "0.175", "0", "1"} {
		c := calc(t, rate)
		for amount := int64(1); amount <= 20000; amount++ {
			commission, net := c.Split(amount)
			if commission+net != amount {
				t.Fatalf("rate %s amount %d: %d + %d != %d", rate, amount, commission, net, amount)
			}
			if c.Commission(amount)+c.Net(amount) != amount {
				t.Fatalf("rate %s amount %d: Commission+Net mismatch", rate, amount)
			}
			if commission < 0 || net < 0 {
				t.Fatalf("rate %s amount %d: negative split", rate, amount)
			}
		}
	}
}

func TestSplitScenario(t *testing.T) {
	commission, net := calc(t, "0.10").Split(49900)
	assert.Equal(t, int64(4990), commission)
	assert.Equal(t, int64(44910), net)
}
