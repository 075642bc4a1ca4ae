// Package gateway holds Gateway adapters. Sandbox mimics a hosted-checkout
// processor: orders are created locally and completion signatures are
// HMAC-SHA256 over "order_id|payment_reference".
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/google/uuid"
)

type order struct {
	amountMinor   int64
	refundedMinor int64
	currency      string
}

// OrderSource reports what the ledger knows about an order. Orders are held in
// memory, so after a restart the sandbox rebuilds them from here on first use.
// Implementations return domain.ErrNotFound for orders they have never seen.
type OrderSource interface {
	OrderRefundState(ctx context.Context, orderID string) (amountMinor, refundedMinor int64, err error)
}

type Sandbox struct {
	secret []byte
	source OrderSource

	mu     sync.Mutex
	orders map[string]*order
}

func NewSandbox(secret string) *Sandbox {
	return &Sandbox{secret: []byte(secret), orders: map[string]*order{}}
}

func (g *Sandbox) WithOrderSource(src OrderSource) *Sandbox {
	g.source = src
	return g
}

func (g *Sandbox) CreateOrder(ctx context.Context, amountMinor int64, currency string, _ map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if amountMinor <= 0 {
		return "", fmt.Errorf("%w: order amount %d", domain.ErrInvalidAmount, amountMinor)
	}
	id := "order_" + uuid.NewString()
	g.mu.Lock()
	g.orders[id] = &order{amountMinor: amountMinor, currency: currency}
	g.mu.Unlock()
	return id, nil
}

// Sign produces the signature the hosted checkout would hand back to the payer.
func (g *Sandbox) Sign(orderID, paymentReference string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderID + "|" + paymentReference))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *Sandbox) VerifySignature(ctx context.Context, orderID, paymentReference, signature string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if signature == "" || paymentReference == "" {
		return false, nil
	}
	want, err := hex.DecodeString(g.Sign(orderID, paymentReference))
	if err != nil {
		return false, err
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	return hmac.Equal(want, got), nil
}

func (g *Sandbox) Refund(ctx context.Context, orderID string, amountMinor int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if err := g.rehydrate(ctx, orderID); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return "", fmt.Errorf("%w: unknown order %s", domain.ErrRefundRejected, orderID)
	}
	if amountMinor <= 0 || o.refundedMinor+amountMinor > o.amountMinor {
		return "", fmt.Errorf("%w: refund %d exceeds order %s", domain.ErrRefundRejected, amountMinor, orderID)
	}
	o.refundedMinor += amountMinor
	return "rfnd_" + uuid.NewString(), nil
}

// rehydrate loads an order this process did not create. Missing orders are
// left for Refund to reject.
func (g *Sandbox) rehydrate(ctx context.Context, orderID string) error {
	if g.source == nil {
		return nil
	}
	g.mu.Lock()
	_, known := g.orders[orderID]
	g.mu.Unlock()
	if known {
		return nil
	}

	amount, refunded, err := g.source.OrderRefundState(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load order %s: %v", domain.ErrGatewayUnavailable, orderID, err)
	}

	g.mu.Lock()
	if _, known := g.orders[orderID]; !known {
		g.orders[orderID] = &order{amountMinor: amount, refundedMinor: refunded}
	}
	g.mu.Unlock()
	return nil
}
