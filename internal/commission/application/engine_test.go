package application_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmehra2102/payment-engine/internal/commission/application"
	"github.com/dmehra2102/payment-engine/internal/commission/domain"
	payapp "github.com/dmehra2102/payment-engine/internal/payment/application"
	paydomain "github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/dmehra2102/payment-engine/internal/payment/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, store *memory.Store) *application.Engine {
	t.Helper()
	calc, err := domain.NewCalculator(decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	return application.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), calc, store, store)
}

func newStore() *memory.Store {
	store := memory.NewStore()
	store.PutAccount(memory.Account{Payer: paydomain.Payer{ID: "biz-1", Name: "Chai Corner", Email: "owner@example.com"}})
	store.PutAccount(memory.Account{Payer: paydomain.Payer{ID: "biz-2", Name: "Idle Shop", Email: "idle@example.com"}})
	return store
}

// seed stores a payment in the given status without settling it.
func seed(t *testing.T, store *memory.Store, id, recipient string, amountMinor int64, status paydomain.Status) {
	t.Helper()
	ctx := context.Background()
	p := paydomain.NewPayment(id, "user-1", recipient, amountMinor, "INR", "listing_upgrade", nil, now)
	require.NoError(t, store.Create(ctx, p))
	if status == paydomain.StatusPending {
		return
	}
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx payapp.Tx) error {
		locked, err := tx.LockPayment(ctx, id)
		if err != nil {
			return err
		}
		if status == paydomain.StatusFailed {
			_, err = locked.Fail("declined", now)
		} else {
			_, err = locked.Complete("sig", now)
		}
		if err != nil {
			return err
		}
		return tx.SavePayment(ctx, locked)
	}))
}

func TestCalculations(t *testing.T) {
	e := newEngine(t, newStore())
	assert.Equal(t, int64(4990), e.CalculateCommission(49900))
	assert.Equal(t, int64(44910), e.CalculateNetAmount(49900))
	for _, a := range []int64{1, 5, 15, 99, 12345, 100001} {
		assert.Equal(t, a, e.CalculateCommission(a)+e.CalculateNetAmount(a), "amount %d", a)
	}
}

func TestProcessCommissionIsIdempotent(t *testing.T) {
	store := newStore()
	e := newEngine(t, store)
	ctx := context.Background()
	seed(t, store, "pay-1", "biz-1", 49900, paydomain.StatusCompleted)

	settled, err := e.ProcessCommission(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, settled)

	first, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, first.CommissionMinor)
	assert.Equal(t, int64(4990), *first.CommissionMinor)
	assert.Equal(t, int64(44910), *first.NetMinor)
	assert.Equal(t, int64(44910), store.WalletBalance("biz-1"))

	settled, err = e.ProcessCommission(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, settled)

	second, err := store.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, *first.CommissionMinor, *second.CommissionMinor)
	assert.Equal(t, *first.NetMinor, *second.NetMinor)
	assert.Equal(t, int64(44910), store.WalletBalance("biz-1"))
}

func TestProcessCommissionSkipsUncompleted(t *testing.T) {
	store := newStore()
	e := newEngine(t, store)
	ctx := context.Background()
	seed(t, store, "pay-pending", "biz-1", 10000, paydomain.StatusPending)
	seed(t, store, "pay-failed", "biz-1", 10000, paydomain.StatusFailed)

	for _, id := range []string{"pay-pending", "pay-failed"} {
		settled, err := e.ProcessCommission(ctx, id)
		require.NoError(t, err)
		assert.False(t, settled, id)
		p, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p.CommissionMinor, id)
	}
	assert.Equal(t, int64(0), store.WalletBalance("biz-1"))

	_, err := e.ProcessCommission(ctx, "missing")
	assert.ErrorIs(t, err, paydomain.ErrNotFound)
}

func TestProcessCommissionWithoutRecipient(t *testing.T) {
	store := newStore()
	e := newEngine(t, store)
	ctx := context.Background()
	seed(t, store, "pay-sub", "", 99900, paydomain.StatusCompleted)

	settled, err := e.ProcessCommission(ctx, "pay-sub")
	require.NoError(t, err)
	assert.True(t, settled)

	p, err := store.Get(ctx, "pay-sub")
	require.NoError(t, err)
	assert.Equal(t, int64(9990), *p.CommissionMinor)
	assert.Equal(t, int64(89910), *p.NetMinor)
}

func TestProcessCommissionUnknownRecipientRollsBack(t *testing.T) {
	store := newStore()
	e := newEngine(t, store)
	ctx := context.Background()
	seed(t, store, "pay-x", "biz-gone", 10000, paydomain.StatusCompleted)

	_, err := e.ProcessCommission(ctx, "pay-x")
	assert.ErrorIs(t, err, paydomain.ErrNotFound)

	p, err := store.Get(ctx, "pay-x")
	require.NoError(t, err)
	assert.Nil(t, p.CommissionMinor)
}

func TestGetCommissionStats(t *testing.T) {
	store := newStore()
	e := newEngine(t, store)
	ctx := context.Background()

	seed(t, store, "pay-a", "biz-1", 100000, paydomain.StatusCompleted)
	seed(t, store, "pay-b", "biz-1", 50000, paydomain.StatusCompleted)
	seed(t, store, "pay-c", "biz-1", 70000, paydomain.StatusPending)
	seed(t, store, "pay-d", "biz-1", 30000, paydomain.StatusFailed)
	for _, id := range []string{"pay-a", "pay-b"} {
		_, err := e.ProcessCommission(ctx, id)
		require.NoError(t, err)
	}

	stats, err := e.GetCommissionStats(ctx, "biz-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), stats.TotalSales)
	assert.Equal(t, int64(15000), stats.TotalCommission)
	assert.Equal(t, int64(135000), stats.TotalEarned)
	assert.True(t, stats.CommissionRate.Equal(decimal.RequireFromString("0.1")))

	empty, err := e.GetCommissionStats(ctx, "biz-2")
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{RecipientID: "biz-2", CommissionRate: stats.CommissionRate}, empty)
}
