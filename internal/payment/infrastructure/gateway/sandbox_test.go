package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxSignatureRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := NewSandbox("s3cret")

	orderID, err := g.CreateOrder(ctx, 49900, "INR", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(orderID, "order_"))

	sig := g.Sign(orderID, "pay_ref_1")
	ok, err := g.VerifySignature(ctx, orderID, "pay_ref_1", sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.VerifySignature(ctx, orderID, "pay_ref_2", sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.VerifySignature(ctx, orderID, "pay_ref_1", "zz-not-hex")
	require.NoError(t, err)
	assert.False(t, ok)

	other := NewSandbox("other")
	ok, err = other.VerifySignature(ctx, orderID, "pay_ref_1", sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSandboxRefundBound(t *testing.T) {
	ctx := context.Background()
	g := NewSandbox("s3cret")
	orderID, err := g.CreateOrder(ctx, 100000, "INR", nil)
	require.NoError(t, err)

	ref, err := g.Refund(ctx, orderID, 50000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "rfnd_"))

	_, err = g.Refund(ctx, orderID, 60000)
	assert.ErrorIs(t, err, domain.ErrRefundRejected)

	_, err = g.Refund(ctx, "order_missing", 1)
	assert.ErrorIs(t, err, domain.ErrRefundRejected)
}

func TestSandboxCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSandbox("x").CreateOrder(ctx, 100, "INR", nil)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

type ledgerOrders struct {
	rows  map[string][2]int64
	err   error
	calls int
}

func (l *ledgerOrders) OrderRefundState(_ context.Context, orderID string) (int64, int64, error) {
	l.calls++
	if l.err != nil {
		return 0, 0, l.err
	}
	row, ok := l.rows[orderID]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	return row[0], row[1], nil
}

func TestSandboxRefundAfterRestartUsesLedger(t *testing.T) {
	ctx := context.Background()
	ledger := &ledgerOrders{rows: map[string][2]int64{"order_before_restart": {100000, 30000}}}
	g := NewSandbox("s3cret").WithOrderSource(ledger)

	_, err := g.Refund(ctx, "order_before_restart", 80000)
	assert.ErrorIs(t, err, domain.ErrRefundRejected)

	ref, err := g.Refund(ctx, "order_before_restart", 70000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "rfnd_"))

	_, err = g.Refund(ctx, "order_before_restart", 1)
	assert.ErrorIs(t, err, domain.ErrRefundRejected)
	assert.Equal(t, 1, ledger.calls)

	_, err = g.Refund(ctx, "order_never_created", 1)
	assert.ErrorIs(t, err, domain.ErrRefundRejected)
}

func TestSandboxLedgerOutageIsRetryable(t *testing.T) {
	g := NewSandbox("s3cret").WithOrderSource(&ledgerOrders{err: errors.New("conn refused")})
	_, err := g.Refund(context.Background(), "order_x", 1)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.True(t, domain.IsRetryable(err))
}
