package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
)

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
	Detail    string `json:"detail,omitempty"`
}

// errorKind maps a domain error to its wire kind and status. Unknown errors
// become "internal" and their text is never returned.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCurrency):
		return "invalid_currency", http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidPayer):
		return "invalid_payer", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, domain.ErrTamperDetected):
		return "tamper_detected", http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_state_transition", http.StatusConflict
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state", http.StatusConflict
	case errors.Is(err, domain.ErrRefundExceedsAmount):
		return "refund_exceeds_amount", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRefundRejected):
		return "refund_rejected", http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "gateway_unavailable", http.StatusServiceUnavailable
	default:
		return "internal", http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
