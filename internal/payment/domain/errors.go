package domain

import "errors"

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidPayer           = errors.New("invalid payer")
	ErrNotFound               = errors.New("not found")
	ErrTamperDetected         = errors.New("tamper detected")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidState           = errors.New("invalid state")
	ErrGatewayUnavailable     = errors.New("gateway unavailable")
	ErrRefundExceedsAmount    = errors.New("refund exceeds amount")
	ErrRefundRejected         = errors.New("refund rejected")
)

// permanent lists the errors that stay wrong however often the request is
// repeated. Anything else (gateway outages, dropped connections, lock
// timeouts, a settlement that failed to commit) leaves the payment untouched
// and may be retried.
var permanent = []error{
	ErrInvalidAmount,
	ErrInvalidCurrency,
	ErrInvalidPayer,
	ErrNotFound,
	ErrTamperDetected,
	ErrInvalidStateTransition,
	ErrInvalidState,
	ErrRefundExceedsAmount,
	ErrRefundRejected,
}

// IsRetryable reports whether the failed operation can be retried as a whole.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range permanent {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}
