package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRefundScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.initialize(t, "1000.00")
	f.verify(t, res)
	walletAfterSettlement := f.store.WalletBalance(recipientID)

	first, err := f.svc.CreateRefund(ctx, res.PaymentID, amount("500.00"))
	require.NoError(t, err)
	assert.Equal(t, int64(50000), first.AmountMinor)
	assert.Equal(t, int64(50000), first.CumulativeMinor)
	assert.Equal(t, domain.RefundPartial, first.Status)
	assert.NotEmpty(t, first.RefundID)

	_, err = f.svc.CreateRefund(ctx, res.PaymentID, amount("600.00"))
	assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)

	p, err := f.svc.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, int64(50000), p.RefundedMinor)
	assert.Equal(t, domain.RefundPartial, p.RefundStatus)
	require.NotNil(t, p.RefundedAt)
	assert.Len(t, f.store.Refunds(res.PaymentID), 1)
	assert.Equal(t, walletAfterSettlement, f.store.WalletBalance(recipientID))

	events := f.store.Events()
	require.Equal(t, 1, countEvents(events, domain.EventPaymentRefunded))
	refunded := events[len(events)-1].(domain.PaymentRefunded)
	assert.Equal(t, "500.00", refunded.RefundAmount)
	assert.Equal(t, "500.00", refunded.CumulativeRefunded)
}

func TestFullRefundIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.initialize(t, "1000.00")
	f.verify(t, res)

	_, err := f.svc.CreateRefund(ctx, res.PaymentID, amount("400.00"))
	require.NoError(t, err)

	rest, err := f.svc.CreateRefund(ctx, res.PaymentID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), rest.AmountMinor)
	assert.Equal(t, int64(100000), rest.CumulativeMinor)
	assert.Equal(t, domain.RefundFull, rest.Status)

	p, err := f.svc.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, p.Status)
	assert.Equal(t, domain.RefundFull, p.RefundStatus)

	_, err = f.svc.CreateRefund(ctx, res.PaymentID, amount("0.01"))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.svc.CreateRefund(ctx, res.PaymentID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.ErrorIs(t, f.svc.HandlePaymentFailure(ctx, res.PaymentID, "x"), domain.ErrInvalidStateTransition)

	assert.Equal(t, 2, countEvents(f.store.Events(), domain.EventPaymentRefunded))
	assert.Equal(t, domain.StatusRefunded, f.store.History(res.PaymentID)[2].To)
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pendingRes := f.initialize(t, "100.00")
	_, err := f.svc.CreateRefund(ctx, pendingRes.PaymentID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	failedRes := f.initialize(t, "100.00")
	require.NoError(t, f.svc.HandlePaymentFailure(ctx, failedRes.PaymentID, "declined"))
	_, err = f.svc.CreateRefund(ctx, failedRes.PaymentID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.CreateRefund(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefundRejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.initialize(t, "100.00")
	f.verify(t, res)

	_, err := f.svc.CreateRefund(ctx, res.PaymentID, amount("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.CreateRefund(ctx, res.PaymentID, amount("1.005"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.CreateRefund(ctx, res.PaymentID, amount("100.01"))
	assert.ErrorIs(t, err, domain.ErrRefundExceedsAmount)
}

func TestConcurrentPartialRefundsNeverExceedGross(t *testing.T) {
	f := newFixture(t)
	res := f.initialize(t, "1000.00")
	f.verify(t, res)

	const callers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateRefund(context.Background(), res.PaymentID, amount("300.00"))
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, domain.ErrRefundExceedsAmount):
			default:
				t.Errorf("unexpected refund error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	p, err := f.svc.GetPayment(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), p.RefundedMinor)
	assert.Equal(t, domain.StatusCompleted, p.Status)
}

func TestRefundGatewayRejectionLeavesStateUnchanged(t *testing.T) {
	store := newStore()
	gw := &mockGateway{}
	gw.On("CreateOrder", mock.Anything, int64(100000), "INR", mock.Anything).Return("order_9", nil)
	gw.On("VerifySignature", mock.Anything, "order_9", "ref", "sig").Return(true, nil)
	gw.On("Refund", mock.Anything, "order_9", int64(20000)).
		Return("", errors.Join(domain.ErrRefundRejected, errors.New("insufficient merchant balance"))).Once()
	gw.On("Refund", mock.Anything, "order_9", int64(30000)).
		Return("", errors.New("503 from processor")).Once()
	svc := newService(t, store, gw)
	ctx := context.Background()

	res, err := svc.InitializePayment(ctx, application.InitializeRequest{PayerID: payerID, RecipientID: recipientID, Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	out, err := svc.VerifyPayment(ctx, application.VerifyRequest{PaymentID: res.PaymentID, OrderID: "order_9", PaymentReference: "ref", Signature: "sig"})
	require.NoError(t, err)
	require.True(t, out.Verified)

	_, err = svc.CreateRefund(ctx, res.PaymentID, amount("200.00"))
	assert.ErrorIs(t, err, domain.ErrRefundRejected)
	assert.False(t, domain.IsRetryable(err))

	_, err = svc.CreateRefund(ctx, res.PaymentID, amount("300.00"))
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.True(t, domain.IsRetryable(err))

	p, err := svc.GetPayment(ctx, res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.RefundedMinor)
	assert.Equal(t, domain.RefundNone, p.RefundStatus)
	assert.Empty(t, store.Refunds(res.PaymentID))
	assert.Equal(t, 0, countEvents(store.Events(), domain.EventPaymentRefunded))
	gw.AssertExpectations(t)
}
