package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/payment-engine/internal/commission/domain"
	payapp "github.com/dmehra2102/payment-engine/internal/payment/application"
	paydomain "github.com/dmehra2102/payment-engine/internal/payment/domain"
)

// Engine settles completed payments: it records the commission/net split on
// the payment and credits the net amount to the recipient's wallet, once.
type Engine struct {
	log   *slog.Logger
	calc  domain.Calculator
	store payapp.Store
	stats StatsReader
	nowFn func() time.Time
}

func NewEngine(log *slog.Logger, calc domain.Calculator, store payapp.Store, stats StatsReader) *Engine {
	return &Engine{
		log:   log,
		calc:  calc,
		store: store,
		stats: stats,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) CalculateCommission(amountMinor int64) int64 {
	return e.calc.Commission(amountMinor)
}

func (e *Engine) CalculateNetAmount(amountMinor int64) int64 {
	return e.calc.Net(amountMinor)
}

// Settle runs inside the caller's transaction. The payment must already be
// locked by tx. It returns false without writing anything when the payment
// is not completed or has been settled before.
func (e *Engine) Settle(ctx context.Context, tx payapp.Tx, p *paydomain.Payment) (bool, error) {
	if !p.CanSettle() {
		return false, nil
	}
	commission, net := e.calc.Split(p.AmountMinor)
	if err := p.RecordSettlement(commission, net, e.nowFn()); err != nil {
		return false, err
	}
	if err := tx.SavePayment(ctx, *p); err != nil {
		return false, err
	}
	if p.RecipientID != "" && net > 0 {
		if err := tx.CreditWallet(ctx, p.RecipientID, net); err != nil {
			return false, fmt.Errorf("credit wallet %s: %w", p.RecipientID, err)
		}
	}
	return true, nil
}

// ProcessCommission settles one payment in its own transaction. Calling it
// again for the same payment is a no-op.
func (e *Engine) ProcessCommission(ctx context.Context, paymentID string) (bool, error) {
	var settled bool
	err := e.store.InTx(ctx, func(ctx context.Context, tx payapp.Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		settled, err = e.Settle(ctx, tx, &p)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("process commission %s: %w", paymentID, err)
	}
	if settled {
		e.log.Info("commission settled", "payment_id", paymentID)
	} else {
		e.log.Debug("commission settlement skipped", "payment_id", paymentID)
	}
	return settled, nil
}

// GetCommissionStats aggregates completed payments only. A recipient with no
// completed payments gets zeros.
func (e *Engine) GetCommissionStats(ctx context.Context, recipientID string) (domain.Stats, error) {
	sales, commission, earned, err := e.stats.CommissionTotals(ctx, recipientID)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("commission totals %s: %w", recipientID, err)
	}
	return domain.Stats{
		RecipientID:     recipientID,
		TotalSales:      sales,
		TotalCommission: commission,
		TotalEarned:     earned,
		CommissionRate:  e.calc.Rate(),
	}, nil
}
