package domain

const (
	EventPaymentCompleted = "PaymentCompleted"
	EventPaymentFailed    = "PaymentFailed"
	EventPaymentRefunded  = "PaymentRefunded"
)

// Event is published through the outbox after the owning transaction commits.
type Event interface {
	EventType() string
	AggregateID() string
}

type PaymentCompleted struct {
	PaymentID   string            `json:"payment_id"`
	PayerID     string            `json:"payer_id"`
	RecipientID string            `json:"recipient_id,omitempty"`
	Amount      string            `json:"amount"`
	NetAmount   string            `json:"net_amount"`
	Currency    string            `json:"currency"`
	Purpose     string            `json:"purpose"`
	Metadata    map[string]string `json:"metadata"`
}

func (e PaymentCompleted) EventType() string   { return EventPaymentCompleted }
func (e PaymentCompleted) AggregateID() string { return e.PaymentID }

type PaymentFailed struct {
	PaymentID string `json:"payment_id"`
	PayerID   string `json:"payer_id"`
	Reason    string `json:"reason"`
}

func (e PaymentFailed) EventType() string   { return EventPaymentFailed }
func (e PaymentFailed) AggregateID() string { return e.PaymentID }

type PaymentRefunded struct {
	PaymentID          string `json:"payment_id"`
	PayerID            string `json:"payer_id"`
	RefundAmount       string `json:"refund_amount"`
	CumulativeRefunded string `json:"cumulative_refunded"`
	RefundReference    string `json:"refund_reference"`
}

func (e PaymentRefunded) EventType() string   { return EventPaymentRefunded }
func (e PaymentRefunded) AggregateID() string { return e.PaymentID }

func CompletedEvent(p Payment) PaymentCompleted {
	var net int64
	if p.NetMinor != nil {
		net = *p.NetMinor
	}
	return PaymentCompleted{
		PaymentID:   p.ID,
		PayerID:     p.PayerID,
		RecipientID: p.RecipientID,
		Amount:      FormatMinor(p.AmountMinor),
		NetAmount:   FormatMinor(net),
		Currency:    p.Currency,
		Purpose:     p.Purpose,
		Metadata:    p.Metadata,
	}
}
