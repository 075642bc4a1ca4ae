package application

import (
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type InitializeRequest struct {
	PayerID     string
	RecipientID string
	Amount      decimal.Decimal
	Currency    string
	Purpose     string
	Metadata    map[string]string
}

type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type InitializeResult struct {
	PaymentID   string
	OrderID     string
	AmountMinor int64
	Currency    string
	Prefill     Prefill
}

type VerifyRequest struct {
	PaymentID        string
	OrderID          string
	PaymentReference string
	Signature        string
}

// VerifyResult carries the payment's status after the call so a false
// result on an already handled payment can be told apart from a bad signature.
type VerifyResult struct {
	Verified bool
	Status   domain.Status
}

type RefundResult struct {
	RefundID        string
	AmountMinor     int64
	CumulativeMinor int64
	Status          domain.RefundStatus
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)
