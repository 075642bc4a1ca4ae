package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "499", want: 49900},
		{in: "499.00", want: 49900},
		{in: "1234.56", want: 123456},
		{in: "0.01", want: 1},
		{in: "10.5", want: 1050},
	}
	for _, tt := range tests {
		got, err := ToMinor(decimal.RequireFromString(tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestToMinorRejects(t *testing.T) {
	for _, in := range []string{"0", "-1", "-0.01", "1.001", "0.005", "99999999999999999999"} {
		_, err := ToMinor(decimal.RequireFromString(in))
		assert.True(t, errors.Is(err, ErrInvalidAmount), "expected invalid amount for %s", in)
	}
}

func TestParseAmount(t *testing.T) {
	_, err := ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	d, err := ParseAmount("12.30")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.3")))
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "499.00", FormatMinor(49900))
	assert.Equal(t, "449.10", FormatMinor(44910))
	assert.Equal(t, "0.01", FormatMinor(1))
	assert.Equal(t, "0.00", FormatMinor(0))
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("INR"))
	assert.True(t, ValidCurrency("USD"))
	assert.False(t, ValidCurrency("inr"))
	assert.False(t, ValidCurrency("RUPEE"))
	assert.False(t, ValidCurrency(""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrGatewayUnavailable))
	assert.False(t, IsRetryable(ErrRefundRejected))
	assert.False(t, IsRetryable(ErrInvalidAmount))
	assert.False(t, IsRetryable(fmt.Errorf("verify p1: %w", ErrTamperDetected)))
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(fmt.Errorf("complete payment p1: %w", errors.New("conn reset by peer"))))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
}
