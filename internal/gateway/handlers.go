package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/paygate/internal/common"
	"github.com/noah-isme/paygate/internal/obs"
)

// Handler exposes the payment operations and the webhook endpoint over HTTP.
// Order/billing callers drive the payment lifecycle through these routes; the
// webhook route is what providers deliver to.
type Handler struct {
	Registry  *Registry
	Processor *Processor
	Validate  *validator.Validate
	Logger    zerolog.Logger
}

type createPaymentReq struct {
	Amount      int64             `json:"amount" validate:"required,gt=0"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	OrderID     string            `json:"orderId" validate:"required"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	ReturnURL   string            `json:"returnUrl" validate:"omitempty,url"`
	CancelURL   string            `json:"cancelUrl" validate:"omitempty,url"`
}

type refundReq struct {
	Amount int64  `json:"amount" validate:"omitempty,gt=0"`
	Reason string `json:"reason"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (Gateway, bool) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
		return nil, false
	}
	gw, err := h.Registry.Resolve(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return gw, true
}

// Create opens a payment with the tenant's provider.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	start := time.Now()
	intent, err := gw.CreatePayment(r.Context(), CreateParams{
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		OrderID:     req.OrderID,
		Description: req.Description,
		Metadata:    req.Metadata,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	})
	h.observe(gw.Name(), "create", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, intent)
}

// Get re-fetches the payment from the provider; nothing is served from cache.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	start := time.Now()
	intent, err := gw.GetPaymentStatus(r.Context(), id)
	h.observe(gw.Name(), "status", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, intent)
}

// Confirm advances the payment toward capture.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	start := time.Now()
	intent, err := gw.ConfirmPayment(r.Context(), id)
	h.observe(gw.Name(), "confirm", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, intent)
}

// Cancel voids a payment that has not settled.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	start := time.Now()
	intent, err := gw.CancelPayment(r.Context(), id)
	h.observe(gw.Name(), "cancel", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, intent)
}

// Refund submits a full or partial refund of a payment.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	var req refundReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	start := time.Now()
	result, err := gw.Refund(r.Context(), RefundRequest{
		PaymentID: id,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	h.observe(gw.Name(), "refund", start, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, result)
}

// Webhook receives provider deliveries: raw body plus an optional signature
// header. The tenant's adapter is resolved first and must match the provider
// the delivery claims to come from.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.resolve(w, r)
	if !ok {
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if providerKey != gw.Name() {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider for tenant", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		signature = r.Header.Get("X-Webhook-Signature")
	}

	result, err := h.Processor.Process(r.Context(), gw, body, signature)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !result.Applied {
		h.Logger.Debug().
			Str("provider", gw.Name()).
			Str("type", string(result.Event.Type)).
			Msg("webhook delivery not applied")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) observe(provider, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
		if e, ok := AsError(err); ok {
			result = strings.ToLower(string(e.Code))
		}
	}
	if obs.PaymentOperationTotal != nil {
		obs.PaymentOperationTotal.WithLabelValues(provider, operation, result).Inc()
	}
	if obs.PaymentOperationLatency != nil {
		obs.PaymentOperationLatency.WithLabelValues(provider, operation).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e, ok := AsError(err)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	details := map[string]any{}
	if e.Provider != "" {
		details["provider"] = e.Provider
	}
	if e.PaymentID != "" {
		details["paymentId"] = e.PaymentID
	}
	if e.ProviderStatus != 0 {
		details["providerStatus"] = e.ProviderStatus
	}
	switch e.Code {
	case CodeConfig:
		common.JSONError(w, http.StatusInternalServerError, string(e.Code), e.Error(), details)
	case CodeUnsupportedProvider:
		common.JSONError(w, http.StatusNotFound, string(e.Code), e.Error(), details)
	case CodeInvalidState:
		common.JSONError(w, http.StatusConflict, string(e.Code), e.Error(), details)
	case CodeWebhookVerification:
		common.JSONError(w, http.StatusUnauthorized, string(e.Code), e.Error(), details)
	case CodeTimeout:
		common.JSONError(w, http.StatusGatewayTimeout, string(e.Code), e.Error(), details)
	default:
		common.JSONError(w, http.StatusBadGateway, string(e.Code), e.Error(), details)
	}
}
