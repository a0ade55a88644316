package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, gw Gateway) *Handler {
	t.Helper()
	source := stubSource{configs: map[string]TenantConfig{
		"acme": {Provider: gw.Name()},
	}}
	registry := NewRegistry(source, Options{})
	registry.Register(gw.Name(), func(Credentials, Options) (Gateway, error) { return gw, nil })
	return &Handler{
		Registry:  registry,
		Processor: newTestProcessor(&fakeReplayStore{}, nil),
		Validate:  validator.New(),
		Logger:    zerolog.Nop(),
	}
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithTenant(req.Context(), "acme")))
		})
	})
	r.Post("/payments", h.Create)
	r.Get("/payments/{id}", h.Get)
	r.Post("/payments/{id}/cancel", h.Cancel)
	r.Post("/webhooks/payment/{provider}", h.Webhook)
	return r
}

func decodeErrorCode(t *testing.T, body *strings.Reader) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope.Error.Code
}

func TestHandlerCreateValidation(t *testing.T) {
	h := newTestHandler(t, scriptedGateway{name: "stripe"})
	router := newTestRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":0,"currency":"EUR","orderId":"o-1"}`))
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "VALIDATION", decodeErrorCode(t, strings.NewReader(rr.Body.String())))
}

func TestHandlerWebhookProviderMismatch(t *testing.T) {
	h := newTestHandler(t, scriptedGateway{name: "stripe"})
	router := newTestRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/mollie", strings.NewReader(`{}`))
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "PROVIDER_NOT_SUPPORTED", decodeErrorCode(t, strings.NewReader(rr.Body.String())))
}

func TestHandlerWebhookAppliedAndReplayBothNoContent(t *testing.T) {
	gw := scriptedGateway{
		name:   "stripe",
		mapped: Event{Type: EventPaymentCompleted, PaymentID: "pi_1", Amount: 1000},
	}
	h := newTestHandler(t, gw)
	router := newTestRouter(h)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/stripe", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=aa")
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code, "delivery %d", i+1)
	}
}

func TestHandlerWebhookVerificationFailure(t *testing.T) {
	gw := scriptedGateway{
		name:      "stripe",
		verifyErr: verificationErr("stripe", "signature mismatch", nil),
	}
	h := newTestHandler(t, gw)
	router := newTestRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/stripe", strings.NewReader(`{}`))
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "WEBHOOK_VERIFICATION", decodeErrorCode(t, strings.NewReader(rr.Body.String())))
}

type failingGateway struct {
	scriptedGateway
	cancelErr error
}

func (g failingGateway) CancelPayment(context.Context, string) (PaymentIntent, error) {
	return PaymentIntent{}, g.cancelErr
}

func TestHandlerErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid state", invalidStateErr("stripe", "pi_1", "already captured"), http.StatusConflict, "INVALID_STATE"},
		{"timeout", timeoutErr("stripe", "pi_1", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{"provider rejection", gatewayErr("stripe", "pi_1", 500, "", "boom"), http.StatusBadGateway, "GATEWAY"},
		{"config", configErr("stripe", "api key is required"), http.StatusInternalServerError, "CONFIG"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, failingGateway{
				scriptedGateway: scriptedGateway{name: "stripe"},
				cancelErr:       tc.err,
			})
			router := newTestRouter(h)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/payments/pi_1/cancel", nil)
			router.ServeHTTP(rr, req)
			require.Equal(t, tc.wantStatus, rr.Code)
			require.Equal(t, tc.wantCode, decodeErrorCode(t, strings.NewReader(rr.Body.String())))
		})
	}
}

func TestHandlerUnsupportedProviderTenant(t *testing.T) {
	source := stubSource{configs: map[string]TenantConfig{}}
	h := &Handler{
		Registry:  NewRegistry(source, Options{}),
		Processor: newTestProcessor(&fakeReplayStore{}, nil),
		Validate:  validator.New(),
		Logger:    zerolog.Nop(),
	}
	router := newTestRouter(h)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payments/pi_1", nil)
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "UNSUPPORTED_PROVIDER", decodeErrorCode(t, strings.NewReader(rr.Body.String())))
}
