package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Gateway is the single contract order/billing logic uses to operate payments,
// regardless of the provider's settlement model. Implementations are selected
// at construction time by the Registry; callers never inspect the concrete
// type at runtime.
type Gateway interface {
	// Name returns the provider key this adapter is registered under.
	Name() string

	// CreatePayment opens a payment at the provider. It is not idempotent by
	// itself; callers supply an idempotency key at the transport layer.
	CreatePayment(ctx context.Context, params CreateParams) (PaymentIntent, error)

	// ConfirmPayment advances a payment toward capture. For redirect
	// settlement providers it only re-fetches status, because settlement is
	// finalized out-of-band.
	ConfirmPayment(ctx context.Context, id string) (PaymentIntent, error)

	// CancelPayment voids a payment that has not settled yet.
	CancelPayment(ctx context.Context, id string) (PaymentIntent, error)

	// Refund submits a full (zero amount) or partial refund.
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)

	// GetPaymentStatus always re-fetches from the provider, never cached state.
	GetPaymentStatus(ctx context.Context, id string) (PaymentIntent, error)

	// VerifyWebhook establishes the authenticity of an inbound delivery
	// according to the provider's trust model and returns the verified
	// notification.
	VerifyWebhook(ctx context.Context, payload []byte, signature string) (ProviderEvent, error)

	// ProcessWebhook maps a verified notification to a canonical domain
	// event. It is total: unrecognized inputs map to EventUnknown.
	ProcessWebhook(ev ProviderEvent) Event
}

// HTTPDoer is satisfied by *http.Client and resilience.HTTPClient.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options carries the cross-cutting collaborators adapters share. The HTTP
// client and timeout bound every outbound provider call.
type Options struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Timeout    time.Duration
	Logger     zerolog.Logger
	Now        func() time.Time
}

const defaultCallTimeout = 10 * time.Second

func (o Options) callTimeout() time.Duration {
	if o.Timeout <= 0 {
		return defaultCallTimeout
	}
	return o.Timeout
}

func (o Options) httpClient() HTTPDoer {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o Options) now() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// TenantConfig names the provider a tenant uses and the credentials for it.
type TenantConfig struct {
	Provider    string
	Credentials Credentials
}

// ConfigSource resolves gateway configuration for a tenant. Tenant
// configuration owns the credentials; the gateway layer only reads them.
type ConfigSource interface {
	TenantConfig(ctx context.Context, tenantID string) (TenantConfig, error)
}
