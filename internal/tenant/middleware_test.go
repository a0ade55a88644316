package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paygate/internal/tenant"
)

func TestMiddlewareUsesHeader(t *testing.T) {
	var resolved string
	handler := tenant.Middleware{Default: "fallback"}.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = tenant.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(tenant.HeaderName, "acme")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "acme", resolved)
}

func TestMiddlewareFallsBackToDefault(t *testing.T) {
	var resolved string
	handler := tenant.Middleware{Default: "fallback"}.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved, _ = tenant.FromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "fallback", resolved)
}

func TestMiddlewareRejectsUnresolvableTenant(t *testing.T) {
	handler := tenant.Middleware{}.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a tenant")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
