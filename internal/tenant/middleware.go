package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/noah-isme/paygate/internal/common"
	"github.com/noah-isme/paygate/internal/gateway"
)

// HeaderName is the request header carrying the tenant identifier.
const HeaderName = "X-Tenant-ID"

// FromContext extracts the tenant identifier, if any.
func FromContext(ctx context.Context) (string, bool) {
	return gateway.TenantFromContext(ctx)
}

// Middleware resolves the tenant from the request header, falling back to the
// configured default. Requests without any resolvable tenant are rejected.
type Middleware struct {
	Default string
}

func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderName))
		if id == "" {
			id = m.Default
		}
		if id == "" {
			common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant could not be resolved", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(gateway.WithTenant(r.Context(), id)))
	})
}
