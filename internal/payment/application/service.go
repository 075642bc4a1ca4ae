package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/google/uuid"
)

type Service struct {
	log      *slog.Logger
	store    Store
	gateway  Gateway
	payers   PayerDirectory
	settler  Settler
	currency string
	nowFn    func() time.Time
	newID    func() string
}

func NewService(log *slog.Logger, store Store, gateway Gateway, payers PayerDirectory, settler Settler, currency string) *Service {
	return &Service{
		log:      log,
		store:    store,
		gateway:  gateway,
		payers:   payers,
		settler:  settler,
		currency: currency,
		nowFn:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithClock replaces the time source. Used by tests and replay tooling.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.nowFn = now
	return s
}

func (s *Service) InitializePayment(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	amountMinor, err := domain.ToMinor(req.Amount)
	if err != nil {
		return InitializeResult{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if !domain.ValidCurrency(currency) {
		return InitializeResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, req.Currency)
	}

	payer, err := s.payers.Resolve(ctx, req.PayerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return InitializeResult{}, fmt.Errorf("%w: payer %s not found", domain.ErrInvalidPayer, req.PayerID)
		}
		return InitializeResult{}, err
	}
	if err := payer.Validate(); err != nil {
		return InitializeResult{}, fmt.Errorf("%w: payer %s needs a name and an email or phone", err, payer.ID)
	}

	recipient := strings.TrimSpace(req.RecipientID)
	if recipient != "" {
		if _, err := s.payers.Resolve(ctx, recipient); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return InitializeResult{}, fmt.Errorf("%w: recipient %s not found", domain.ErrInvalidPayer, recipient)
			}
			return InitializeResult{}, err
		}
	}

	p := domain.NewPayment(s.newID(), payer.ID, recipient, amountMinor, currency,
		strings.TrimSpace(req.Purpose), req.Metadata, s.nowFn())
	if err := s.store.Create(ctx, p); err != nil {
		return InitializeResult{}, fmt.Errorf("create payment: %w", err)
	}

	orderMeta := make(map[string]string, len(p.Metadata)+2)
	for k, v := range p.Metadata {
		orderMeta[k] = v
	}
	orderMeta["payment_id"] = p.ID
	orderMeta["purpose"] = p.Purpose

	orderID, err := s.gateway.CreateOrder(ctx, amountMinor, currency, orderMeta)
	if err != nil {
		// The pending row stays for audit; a retry or expiry sweep handles it.
		s.log.Warn("gateway create order failed", "payment_id", p.ID, "err", err)
		return InitializeResult{}, gatewayError(err)
	}
	if err := s.store.AttachOrder(ctx, p.ID, orderID); err != nil {
		return InitializeResult{}, fmt.Errorf("attach order: %w", err)
	}

	s.log.Info("payment initialized", "payment_id", p.ID, "order_id", orderID, "amount_minor", amountMinor, "currency", currency)
	return InitializeResult{
		PaymentID:   p.ID,
		OrderID:     orderID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Prefill:     Prefill{Name: payer.Name, Email: payer.Email, Phone: payer.Phone},
	}, nil
}

// VerifyPayment completes a pending payment once the gateway signature checks
// out. Completion, settlement and the PaymentCompleted event commit together.
// Concurrent callers race on the row lock; the loser gets Verified=false and
// the terminal status.
func (s *Service) VerifyPayment(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	p, err := s.store.Get(ctx, req.PaymentID)
	if err != nil {
		return VerifyResult{}, err
	}
	if p.OrderID == "" || p.OrderID != req.OrderID {
		s.log.Error("order id mismatch on verify",
			"security_event", true,
			"payment_id", p.ID,
			"supplied_order_id", req.OrderID,
		)
		return VerifyResult{}, fmt.Errorf("%w: order id does not match payment %s", domain.ErrTamperDetected, p.ID)
	}
	if p.Status != domain.StatusPending {
		return VerifyResult{Verified: false, Status: p.Status}, nil
	}

	ok, err := s.gateway.VerifySignature(ctx, p.OrderID, req.PaymentReference, req.Signature)
	if err != nil {
		return VerifyResult{}, gatewayError(err)
	}
	if !ok {
		s.log.Warn("payment signature rejected", "payment_id", p.ID, "order_id", p.OrderID)
		return VerifyResult{Verified: false, Status: p.Status}, nil
	}

	var result VerifyResult
	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		if locked.Status != domain.StatusPending {
			result = VerifyResult{Verified: false, Status: locked.Status}
			return nil
		}
		change, err := locked.Complete(req.Signature, s.nowFn())
		if err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, locked); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, change); err != nil {
			return err
		}
		if _, err := s.settler.Settle(ctx, tx, &locked); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		if err := tx.Enqueue(ctx, domain.CompletedEvent(locked)); err != nil {
			return err
		}
		result = VerifyResult{Verified: true, Status: locked.Status}
		return nil
	})
	if err != nil {
		return VerifyResult{}, fmt.Errorf("complete payment %s: %w", p.ID, err)
	}
	if result.Verified {
		s.log.Info("payment completed", "payment_id", p.ID, "order_id", p.OrderID)
	} else {
		s.log.Info("payment already handled", "payment_id", p.ID, "status", result.Status)
	}
	return result, nil
}

func (s *Service) HandlePaymentFailure(ctx context.Context, paymentID, reason string) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		change, err := p.Fail(reason, s.nowFn())
		if err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, p); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, change); err != nil {
			return err
		}
		return tx.Enqueue(ctx, domain.PaymentFailed{PaymentID: p.ID, PayerID: p.PayerID, Reason: reason})
	})
	if err != nil {
		return fmt.Errorf("fail payment %s: %w", paymentID, err)
	}
	s.log.Info("payment failed", "payment_id", paymentID, "reason", reason)
	return nil
}

func (s *Service) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	return s.store.Get(ctx, paymentID)
}

func (s *Service) GetUserPayments(ctx context.Context, payerID string, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.ListByPayer(ctx, payerID, limit)
}

func gatewayError(err error) error {
	if errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, domain.ErrRefundRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}
