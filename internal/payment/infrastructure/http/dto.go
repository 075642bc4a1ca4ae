package http

import (
	"time"

	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
)

type initializeReq struct {
	Amount      string            `json:"amount" validate:"required,numeric"`
	Currency    string            `json:"currency" validate:"omitempty,len=3,uppercase"`
	RecipientID string            `json:"recipient_id" validate:"omitempty,max=64"`
	Purpose     string            `json:"purpose" validate:"required,max=64"`
	Metadata    map[string]string `json:"metadata" validate:"omitempty,max=20,dive,keys,max=64,endkeys,max=512"`
}

type verifyReq struct {
	OrderID          string `json:"order_id" validate:"required"`
	PaymentReference string `json:"payment_reference" validate:"required"`
	Signature        string `json:"signature" validate:"required,hexadecimal"`
}

type failReq struct {
	Reason string `json:"reason" validate:"required,max=256"`
}

type refundReq struct {
	// Empty means refund the whole remaining amount.
	Amount string `json:"amount" validate:"omitempty,numeric"`
}

type initializeResp struct {
	PaymentID string              `json:"payment_id"`
	OrderID   string              `json:"order_id"`
	Amount    string              `json:"amount"`
	Currency  string              `json:"currency"`
	Prefill   application.Prefill `json:"prefill"`
}

type verifyResp struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

type refundResp struct {
	RefundID           string `json:"refund_id"`
	Amount             string `json:"amount"`
	CumulativeRefunded string `json:"cumulative_refunded"`
	RefundStatus       string `json:"refund_status"`
}

type paymentResp struct {
	ID             string            `json:"id"`
	OrderID        string            `json:"order_id,omitempty"`
	PayerID        string            `json:"payer_id"`
	RecipientID    string            `json:"recipient_id,omitempty"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Purpose        string            `json:"purpose"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         string            `json:"status"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Commission     *string           `json:"commission_amount,omitempty"`
	Net            *string           `json:"net_amount,omitempty"`
	RefundedAmount string            `json:"refunded_amount"`
	RefundStatus   string            `json:"refund_status,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	RefundedAt     *time.Time        `json:"refunded_at,omitempty"`
}

type statsResp struct {
	RecipientID     string `json:"recipient_id"`
	TotalSales      string `json:"total_sales"`
	TotalCommission string `json:"total_commission"`
	TotalEarned     string `json:"total_earned"`
	CommissionRate  string `json:"commission_rate"`
}

func toPaymentResp(p domain.Payment) paymentResp {
	out := paymentResp{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PayerID:        p.PayerID,
		RecipientID:    p.RecipientID,
		Amount:         domain.FormatMinor(p.AmountMinor),
		Currency:       p.Currency,
		Purpose:        p.Purpose,
		Metadata:       p.Metadata,
		Status:         string(p.Status),
		FailureReason:  p.FailureReason,
		RefundedAmount: domain.FormatMinor(p.RefundedMinor),
		RefundStatus:   string(p.RefundStatus),
		CreatedAt:      p.CreatedAt,
		PaidAt:         p.PaidAt,
		RefundedAt:     p.RefundedAt,
	}
	if p.CommissionMinor != nil {
		s := domain.FormatMinor(*p.CommissionMinor)
		out.Commission = &s
	}
	if p.NetMinor != nil {
		s := domain.FormatMinor(*p.NetMinor)
		out.Net = &s
	}
	return out
}
