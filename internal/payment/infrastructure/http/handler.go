package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	commdomain "github.com/dmehra2102/payment-engine/internal/commission/domain"
	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
)

type CommissionStats interface {
	GetCommissionStats(ctx context.Context, recipientID string) (commdomain.Stats, error)
}

type Handler struct {
	log      *slog.Logger
	service  *application.Service
	stats    CommissionStats
	auth     *Authenticator
	idem     func(http.Handler) http.Handler
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewHandler wires the REST surface. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func NewHandler(log *slog.Logger, service *application.Service, stats CommissionStats, auth *Authenticator, idem func(http.Handler) http.Handler) *Handler {
	if idem == nil {
		idem = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:      log,
		service:  service,
		stats:    stats,
		auth:     auth,
		idem:     idem,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Use(h.idem)

		r.Post("/payments", h.initialize)
		r.Get("/payments", h.listPayments)
		r.Get("/payments/{id}", h.getPayment)
		r.Post("/payments/{id}/verify", h.verify)
		r.Post("/payments/{id}/fail", h.failPayment)
		r.Post("/payments/{id}/refunds", h.refund)
		r.Get("/recipients/{id}/commission-stats", h.commissionStats)
	})
	return r
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitializePayment")
	defer span.End()

	var req initializeReq
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		h.writeErr(w, span, err)
		return
	}

	res, err := h.service.InitializePayment(ctx, application.InitializeRequest{
		PayerID:     principal(ctx).Subject,
		RecipientID: req.RecipientID,
		Amount:      amount,
		Currency:    req.Currency,
		Purpose:     req.Purpose,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	span.SetAttributes(attribute.String("payment.id", res.PaymentID))

	writeJSON(w, http.StatusCreated, initializeResp{
		PaymentID: res.PaymentID,
		OrderID:   res.OrderID,
		Amount:    domain.FormatMinor(res.AmountMinor),
		Currency:  res.Currency,
		Prefill:   res.Prefill,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("payment.id", id))
	var req verifyReq
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := h.owned(ctx, w, span, id); !ok {
		return
	}

	res, err := h.service.VerifyPayment(ctx, application.VerifyRequest{
		PaymentID:        id,
		OrderID:          req.OrderID,
		PaymentReference: req.PaymentReference,
		Signature:        req.Signature,
	})
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResp{Verified: res.Verified, Status: string(res.Status)})
}

func (h *Handler) writeErr(w http.ResponseWriter, span trace.Span, err error) {
	kind, status := errorKind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	if status >= http.StatusInternalServerError && kind != "gateway_unavailable" {
		h.log.Error("request failed", "kind", kind, "err", err)
	}
	writeJSON(w, status, errorBody{Error: kind, Retryable: domain.IsRetryable(err)})
}

func (h *Handler) failPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HandlePaymentFailure")
	defer span.End()

	id := chi.URLParam(r, "id")
	var req failReq
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := h.owned(ctx, w, span, id); !ok {
		return
	}
	if err := h.service.HandlePaymentFailure(ctx, id, req.Reason); err != nil {
		h.writeErr(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_id": id, "status": string(domain.StatusFailed)})
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateRefund")
	defer span.End()

	id := chi.URLParam(r, "id")
	var req refundReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.GetPayment(ctx, id)
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	caller := principal(ctx)
	if !caller.IsAdmin() && (p.RecipientID == "" || p.RecipientID != caller.Subject) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}

	var amount *decimal.Decimal
	if req.Amount != "" {
		d, err := domain.ParseAmount(req.Amount)
		if err != nil {
			h.writeErr(w, span, err)
			return
		}
		amount = &d
	}

	res, err := h.service.CreateRefund(ctx, id, amount)
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	writeJSON(w, http.StatusCreated, refundResp{
		RefundID:           res.RefundID,
		Amount:             domain.FormatMinor(res.AmountMinor),
		CumulativeRefunded: domain.FormatMinor(res.CumulativeMinor),
		RefundStatus:       string(res.Status),
	})
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetPayment")
	defer span.End()

	p, err := h.service.GetPayment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	caller := principal(ctx)
	if !caller.IsAdmin() && p.PayerID != caller.Subject && p.RecipientID != caller.Subject {
		h.writeErr(w, span, domain.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResp(p))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetUserPayments")
	defer span.End()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_limit"})
			return
		}
		limit = n
	}

	payments, err := h.service.GetUserPayments(ctx, principal(ctx).Subject, limit)
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	out := make([]paymentResp, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResp(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

func (h *Handler) commissionStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCommissionStats")
	defer span.End()

	id := chi.URLParam(r, "id")
	caller := principal(ctx)
	if !caller.IsAdmin() && caller.Subject != id {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden"})
		return
	}
	st, err := h.stats.GetCommissionStats(ctx, id)
	if err != nil {
		h.writeErr(w, span, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResp{
		RecipientID:     st.RecipientID,
		TotalSales:      domain.FormatMinor(st.TotalSales),
		TotalCommission: domain.FormatMinor(st.TotalCommission),
		TotalEarned:     domain.FormatMinor(st.TotalEarned),
		CommissionRate:  st.CommissionRate.String(),
	})
}

// owned loads the payment and hides it from anyone but its payer or an admin.
func (h *Handler) owned(ctx context.Context, w http.ResponseWriter, span trace.Span, id string) (domain.Payment, bool) {
	p, err := h.service.GetPayment(ctx, id)
	if err != nil {
		h.writeErr(w, span, err)
		return domain.Payment{}, false
	}
	caller := principal(ctx)
	if !caller.IsAdmin() && p.PayerID != caller.Subject {
		h.writeErr(w, span, domain.ErrNotFound)
		return domain.Payment{}, false
	}
	return p, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		detail := ""
		if errors.As(err, &verrs) && len(verrs) > 0 {
			detail = verrs[0].Field() + " failed " + verrs[0].Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Detail: detail})
		return false
	}
	return true
}
