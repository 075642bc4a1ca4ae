package application

import (
	"context"
	"fmt"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/shopspring/decimal"
)

// CreateRefund refunds amount, or everything still refundable when amount is
// nil. The row lock is held across the gateway call so concurrent partial
// refunds serialize and never exceed the gross amount.
func (s *Service) CreateRefund(ctx context.Context, paymentID string, amount *decimal.Decimal) (RefundResult, error) {
	var requested int64
	if amount != nil {
		minor, err := domain.ToMinor(*amount)
		if err != nil {
			return RefundResult{}, err
		}
		requested = minor
	}

	var result RefundResult
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		refundMinor, err := p.CheckRefund(requested)
		if err != nil {
			return err
		}
		reference, err := s.gateway.Refund(ctx, p.OrderID, refundMinor)
		if err != nil {
			return gatewayError(err)
		}

		now := s.nowFn()
		change, err := p.ApplyRefund(refundMinor, now)
		if err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, p); err != nil {
			return err
		}
		if change != nil {
			if err := tx.AppendHistory(ctx, *change); err != nil {
				return err
			}
		}
		refund := domain.Refund{ID: s.newID(), PaymentID: p.ID, AmountMinor: refundMinor, Reference: reference, CreatedAt: now}
		if err := tx.AppendRefund(ctx, refund); err != nil {
			return err
		}
		if err := tx.Enqueue(ctx, domain.PaymentRefunded{
			PaymentID:          p.ID,
			PayerID:            p.PayerID,
			RefundAmount:       domain.FormatMinor(refundMinor),
			CumulativeRefunded: domain.FormatMinor(p.RefundedMinor),
			RefundReference:    reference,
		}); err != nil {
			return err
		}
		result = RefundResult{
			RefundID:        reference,
			AmountMinor:     refundMinor,
			CumulativeMinor: p.RefundedMinor,
			Status:          p.RefundStatus,
		}
		return nil
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("refund payment %s: %w", paymentID, err)
	}
	s.log.Info("payment refunded", "payment_id", paymentID, "refund_id", result.RefundID,
		"amount_minor", result.AmountMinor, "cumulative_minor", result.CumulativeMinor)
	return result, nil
}
