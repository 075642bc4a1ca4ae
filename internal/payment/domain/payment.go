package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type RefundStatus string

const (
	RefundNone    RefundStatus = ""
	RefundPartial RefundStatus = "partial"
	RefundFull    RefundStatus = "refunded"
)

// Payment is one attempted monetary transaction. Amounts are minor units.
type Payment struct {
	ID          string
	OrderID     string
	PayerID     string
	RecipientID string

	AmountMinor int64
	Currency    string
	Purpose     string
	Metadata    map[string]string

	Status        Status
	FailureReason string
	Signature     string

	// CommissionMinor and NetMinor are nil until settlement. A non-nil
	// commission is the settlement idempotency marker.
	CommissionMinor *int64
	NetMinor        *int64

	RefundedMinor int64
	RefundStatus  RefundStatus

	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time
	RefundedAt *time.Time
}

// StatusChange is one row of the append-only status history.
type StatusChange struct {
	PaymentID string
	From      Status
	To        Status
	Reason    string
	At        time.Time
}

// Refund is one successful refund call against the gateway.
type Refund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Reference   string
	CreatedAt   time.Time
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func NewPayment(id, payerID, recipientID string, amountMinor int64, currency, purpose string, metadata map[string]string, now time.Time) Payment {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Payment{
		ID:          id,
		PayerID:     payerID,
		RecipientID: recipientID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Purpose:     purpose,
		Metadata:    metadata,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *Payment) transition(to Status, reason string, at time.Time) (StatusChange, error) {
	if !CanTransition(p.Status, to) {
		return StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, p.Status, to)
	}
	change := StatusChange{PaymentID: p.ID, From: p.Status, To: to, Reason: reason, At: at}
	p.Status = to
	p.UpdatedAt = at
	return change, nil
}

func (p *Payment) Complete(signature string, at time.Time) (StatusChange, error) {
	change, err := p.transition(StatusCompleted, "", at)
	if err != nil {
		return StatusChange{}, err
	}
	p.Signature = signature
	p.PaidAt = &at
	return change, nil
}

func (p *Payment) Fail(reason string, at time.Time) (StatusChange, error) {
	change, err := p.transition(StatusFailed, reason, at)
	if err != nil {
		return StatusChange{}, err
	}
	p.FailureReason = reason
	return change, nil
}

func (p Payment) Settled() bool {
	return p.CommissionMinor != nil
}

// CanSettle reports whether settlement may run now.
func (p Payment) CanSettle() bool {
	return p.Status == StatusCompleted && !p.Settled()
}

// RecordSettlement stores the split. commission+net must equal the gross amount.
func (p *Payment) RecordSettlement(commissionMinor, netMinor int64, at time.Time) error {
	if !p.CanSettle() {
		return fmt.Errorf("%w: payment %s cannot be settled in status %s", ErrInvalidState, p.ID, p.Status)
	}
	if commissionMinor+netMinor != p.AmountMinor || commissionMinor < 0 || netMinor < 0 {
		return fmt.Errorf("%w: split %d+%d does not sum to %d", ErrInvalidAmount, commissionMinor, netMinor, p.AmountMinor)
	}
	p.CommissionMinor = &commissionMinor
	p.NetMinor = &netMinor
	p.UpdatedAt = at
	return nil
}

func (p Payment) RefundableMinor() int64 {
	return p.AmountMinor - p.RefundedMinor
}

// CheckRefund validates a refund request without mutating the payment.
// amountMinor <= 0 means "everything still refundable".
func (p Payment) CheckRefund(amountMinor int64) (int64, error) {
	if p.Status != StatusCompleted || p.RefundStatus == RefundFull {
		return 0, fmt.Errorf("%w: cannot refund payment in status %s", ErrInvalidState, p.Status)
	}
	if amountMinor <= 0 {
		amountMinor = p.RefundableMinor()
	}
	if amountMinor > p.RefundableMinor() {
		return 0, fmt.Errorf("%w: requested %s, refundable %s", ErrRefundExceedsAmount,
			FormatMinor(amountMinor), FormatMinor(p.RefundableMinor()))
	}
	return amountMinor, nil
}

// ApplyRefund accumulates a refund. A refund that reaches the gross amount
// moves the payment to refunded; otherwise it stays completed.
func (p *Payment) ApplyRefund(amountMinor int64, at time.Time) (*StatusChange, error) {
	amountMinor, err := p.CheckRefund(amountMinor)
	if err != nil {
		return nil, err
	}
	p.RefundedMinor += amountMinor
	p.RefundedAt = &at
	p.UpdatedAt = at
	if p.RefundedMinor < p.AmountMinor {
		p.RefundStatus = RefundPartial
		return nil, nil
	}
	p.RefundStatus = RefundFull
	change, err := p.transition(StatusRefunded, "fully refunded", at)
	if err != nil {
		return nil, err
	}
	return &change, nil
}
