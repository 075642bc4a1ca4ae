package application

import (
	"context"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
)

// Store is the payment ledger. Rows are created once and never deleted.
type Store interface {
	Create(ctx context.Context, p domain.Payment) error
	AttachOrder(ctx context.Context, paymentID, orderID string) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	ListByPayer(ctx context.Context, payerID string, limit int) ([]domain.Payment, error)
	// InTx runs fn in one transaction; any error rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of writes allowed inside a ledger transaction.
type Tx interface {
	// LockPayment reads the row and holds its lock until the transaction ends.
	LockPayment(ctx context.Context, id string) (domain.Payment, error)
	SavePayment(ctx context.Context, p domain.Payment) error
	AppendHistory(ctx context.Context, change domain.StatusChange) error
	AppendRefund(ctx context.Context, r domain.Refund) error
	// CreditWallet atomically adds amountMinor to the account's wallet balance.
	CreditWallet(ctx context.Context, accountID string, amountMinor int64) error
	Enqueue(ctx context.Context, ev domain.Event) error
}

// Gateway is the payment processor capability. Implementations return errors
// wrapping domain.ErrGatewayUnavailable or domain.ErrRefundRejected.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (string, error)
	VerifySignature(ctx context.Context, orderID, paymentReference, signature string) (bool, error)
	Refund(ctx context.Context, orderID string, amountMinor int64) (string, error)
}

type PayerDirectory interface {
	Resolve(ctx context.Context, payerID string) (domain.Payer, error)
}

// Settler splits a completed payment and credits the recipient inside tx.
// It reports false when the payment was not eligible (already settled or not completed).
type Settler interface {
	Settle(ctx context.Context, tx Tx, p *domain.Payment) (bool, error)
}
