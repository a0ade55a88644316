package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const (
	mollieProvider       = "mollie"
	mollieDefaultBaseURL = "https://api.mollie.com"
)

// Mollie implements Gateway against a hosted-checkout API where the customer
// settles out-of-band and the service discovers the outcome later. Amounts on
// the wire are decimal major-unit strings; the canonical model keeps integer
// minor units, so every request and response goes through the fixed-point
// conversions in money.go.
//
// The provider's webhooks carry only a payment identifier and no signature.
// Authenticity is therefore established by re-fetching the payment by ID
// (trust-on-fetch). This is a weaker guarantee than the signed model and is
// deliberately not unified with it.
type Mollie struct {
	credentials Credentials
	api         apiClient
	logger      zerolog.Logger
}

// NewMollie validates credentials and builds the adapter. No webhook secret
// is required because the provider does not sign deliveries.
func NewMollie(creds Credentials, opts Options) (*Mollie, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, configErr(mollieProvider, "api key is required")
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = mollieDefaultBaseURL
	}
	return &Mollie{
		credentials: creds,
		api: apiClient{
			provider: mollieProvider,
			baseURL:  base,
			apiKey:   creds.APIKey,
			client:   opts.httpClient(),
			timeout:  opts.callTimeout(),
		},
		logger: opts.Logger,
	}, nil
}

// Name implements Gateway.
func (m *Mollie) Name() string { return mollieProvider }

type mollieAmount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type molliePayment struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         mollieAmount      `json:"amount"`
	AmountRefunded *mollieAmount     `json:"amountRefunded,omitempty"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata"`
	Links          struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

func (m *Mollie) toIntent(raw molliePayment) (PaymentIntent, error) {
	minor, err := ParseMajorUnits(raw.Amount.Value)
	if err != nil {
		return PaymentIntent{}, transportErr(mollieProvider, raw.ID, fmt.Errorf("provider amount: %w", err))
	}
	return PaymentIntent{
		ID:          raw.ID,
		OrderID:     raw.Metadata["order_id"],
		Amount:      minor,
		Currency:    strings.ToUpper(raw.Amount.Currency),
		Status:      normalizeMollieStatus(raw.Status),
		Provider:    mollieProvider,
		Metadata:    raw.Metadata,
		CheckoutURL: raw.Links.Checkout.Href,
	}, nil
}

// normalizeMollieStatus is total: any unlisted provider value maps to unknown.
func normalizeMollieStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "open":
		return StatusPending
	case "pending":
		return StatusProcessing
	case "authorized":
		return StatusAuthorized
	case "paid":
		return StatusCompleted
	case "canceled":
		return StatusCancelled
	case "expired":
		return StatusExpired
	case "failed":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

func (m *Mollie) apiError(paymentID string, status int, body []byte) *Error {
	var envelope struct {
		Status int    `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(body, &envelope)
	message := envelope.Detail
	if message == "" {
		message = envelope.Title
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if status == http.StatusUnprocessableEntity {
		return invalidStateErr(mollieProvider, paymentID, message)
	}
	return gatewayErr(mollieProvider, paymentID, status, envelope.Title, message)
}

func (m *Mollie) postJSON(ctx context.Context, path string, payload any, paymentID string) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, transportErr(mollieProvider, paymentID, err)
	}
	return m.api.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(encoded), paymentID)
}

// CreatePayment opens a hosted-checkout payment and returns its checkout URL.
// The intent stays pending until the provider settles it.
func (m *Mollie) CreatePayment(ctx context.Context, params CreateParams) (PaymentIntent, error) {
	if params.Amount <= 0 {
		return PaymentIntent{}, errors.New("amount must be a positive number of minor units")
	}
	if strings.TrimSpace(params.Currency) == "" {
		return PaymentIntent{}, errors.New("currency is required")
	}
	if strings.TrimSpace(params.OrderID) == "" {
		return PaymentIntent{}, errors.New("order id is required")
	}

	metadata := map[string]string{"order_id": params.OrderID}
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	body := map[string]any{
		"amount": mollieAmount{
			Currency: strings.ToUpper(params.Currency),
			Value:    FormatMinorUnits(params.Amount),
		},
		"description": params.Description,
		"metadata":    metadata,
	}
	if params.ReturnURL != "" {
		body["redirectUrl"] = params.ReturnURL
	}
	if params.CancelURL != "" {
		body["cancelUrl"] = params.CancelURL
	}

	status, data, err := m.postJSON(ctx, "/v2/payments", body, "")
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		return PaymentIntent{}, m.apiError("", status, data)
	}
	var raw molliePayment
	if err := json.Unmarshal(data, &raw); err != nil {
		return PaymentIntent{}, transportErr(mollieProvider, "", fmt.Errorf("decode payment: %w", err))
	}
	m.logger.Debug().Str("payment_id", raw.ID).Str("order_id", params.OrderID).Msg("checkout payment created")
	return m.toIntent(raw)
}

// ConfirmPayment has no in-band capture step for this settlement model; it
// re-fetches the authoritative status instead.
func (m *Mollie) ConfirmPayment(ctx context.Context, id string) (PaymentIntent, error) {
	return m.GetPaymentStatus(ctx, id)
}

// CancelPayment issues an explicit cancel. Settled payments cannot be
// cancelled; the provider answers 422 which maps to an invalid-state failure.
func (m *Mollie) CancelPayment(ctx context.Context, id string) (PaymentIntent, error) {
	status, data, err := m.api.do(ctx, http.MethodDelete, "/v2/payments/"+url.PathEscape(id), "", nil, id)
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		return PaymentIntent{}, m.apiError(id, status, data)
	}
	var raw molliePayment
	if err := json.Unmarshal(data, &raw); err != nil {
		return PaymentIntent{}, transportErr(mollieProvider, id, fmt.Errorf("decode payment: %w", err))
	}
	return m.toIntent(raw)
}

// Refund submits a refund as a decimal major-unit string. The provider does
// not take minor units, so the original payment is re-fetched first for its
// currency (and, for full refunds, its amount). A request exceeding the
// original amount is rejected before it reaches the provider.
func (m *Mollie) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return RefundResult{}, errors.New("payment id is required")
	}
	original, err := m.GetPaymentStatus(ctx, req.PaymentID)
	if err != nil {
		return RefundResult{}, err
	}
	amount := req.Amount
	if amount == 0 {
		amount = original.Amount
	}
	if amount > original.Amount {
		return RefundResult{}, invalidStateErr(mollieProvider, req.PaymentID,
			fmt.Sprintf("refund of %d exceeds original amount %d", amount, original.Amount))
	}

	body := map[string]any{
		"amount": mollieAmount{
			Currency: original.Currency,
			Value:    FormatMinorUnits(amount),
		},
	}
	if req.Reason != "" {
		body["description"] = req.Reason
	}
	status, data, err := m.postJSON(ctx, "/v2/payments/"+url.PathEscape(req.PaymentID)+"/refunds", body, req.PaymentID)
	if err != nil {
		return RefundResult{}, err
	}
	if status >= http.StatusMultipleChoices {
		return RefundResult{}, m.apiError(req.PaymentID, status, data)
	}
	var raw struct {
		ID     string       `json:"id"`
		Status string       `json:"status"`
		Amount mollieAmount `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RefundResult{}, transportErr(mollieProvider, req.PaymentID, fmt.Errorf("decode refund: %w", err))
	}
	refunded, err := ParseMajorUnits(raw.Amount.Value)
	if err != nil {
		return RefundResult{}, transportErr(mollieProvider, req.PaymentID, fmt.Errorf("provider amount: %w", err))
	}
	return RefundResult{
		ID:        raw.ID,
		PaymentID: req.PaymentID,
		Amount:    refunded,
		Status:    normalizeMollieRefundStatus(raw.Status),
		Provider:  mollieProvider,
	}, nil
}

func normalizeMollieRefundStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "queued", "pending":
		return StatusProcessing
	case "processing":
		return StatusProcessing
	case "refunded":
		return StatusCompleted
	case "failed":
		return StatusFailed
	case "canceled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

func (m *Mollie) fetchPayment(ctx context.Context, id string) (molliePayment, error) {
	status, data, err := m.api.do(ctx, http.MethodGet, "/v2/payments/"+url.PathEscape(id), "", nil, id)
	if err != nil {
		return molliePayment{}, err
	}
	if status >= http.StatusMultipleChoices {
		return molliePayment{}, m.apiError(id, status, data)
	}
	var raw molliePayment
	if err := json.Unmarshal(data, &raw); err != nil {
		return molliePayment{}, transportErr(mollieProvider, id, fmt.Errorf("decode payment: %w", err))
	}
	return raw, nil
}

// GetPaymentStatus implements Gateway. It always asks the provider.
func (m *Mollie) GetPaymentStatus(ctx context.Context, id string) (PaymentIntent, error) {
	raw, err := m.fetchPayment(ctx, id)
	if err != nil {
		return PaymentIntent{}, err
	}
	return m.toIntent(raw)
}

// VerifyWebhook establishes authenticity by fetching the referenced payment
// from the provider. The delivery body is form-encoded and carries only an
// id; nothing embedded in it is trusted, including any status a forged
// payload might claim.
func (m *Mollie) VerifyWebhook(ctx context.Context, payload []byte, _ string) (ProviderEvent, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(payload)))
	if err != nil {
		return ProviderEvent{}, verificationErr(mollieProvider, "unparsable payload", err)
	}
	id := strings.TrimSpace(values.Get("id"))
	if id == "" {
		return ProviderEvent{}, verificationErr(mollieProvider, "payload carries no payment id", nil)
	}

	raw, err := m.fetchPayment(ctx, id)
	if err != nil {
		return ProviderEvent{}, verificationErr(mollieProvider, "payment lookup failed", err)
	}
	intent, err := m.toIntent(raw)
	if err != nil {
		return ProviderEvent{}, verificationErr(mollieProvider, "payment lookup failed", err)
	}

	ev := ProviderEvent{
		Provider:  mollieProvider,
		Kind:      "payment." + string(intent.Status),
		PaymentID: intent.ID,
		OrderID:   intent.OrderID,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		Status:    intent.Status,
	}
	// refunds show up on the payment resource itself, not as a separate payload
	if raw.AmountRefunded != nil {
		if refunded, convErr := ParseMajorUnits(raw.AmountRefunded.Value); convErr == nil && refunded > 0 {
			ev.AmountRefunded = refunded
			ev.Kind = "payment.refunded"
		}
	}
	return ev, nil
}

// ProcessWebhook implements Gateway. The mapping is driven by the fetched
// authoritative status, never by anything the delivery claimed, and is total.
func (m *Mollie) ProcessWebhook(ev ProviderEvent) Event {
	event := Event{
		PaymentID: ev.PaymentID,
		OrderID:   ev.OrderID,
		Amount:    ev.Amount,
		Currency:  ev.Currency,
		Provider:  mollieProvider,
	}
	if ev.AmountRefunded > 0 {
		event.Type = EventPaymentRefunded
		event.Amount = ev.AmountRefunded
		return event
	}
	switch ev.Status {
	case StatusCompleted:
		event.Type = EventPaymentCompleted
	case StatusFailed:
		event.Type = EventPaymentFailed
	case StatusExpired:
		event.Type = EventPaymentFailed
		event.Error = "payment expired"
	case StatusPending, StatusProcessing, StatusAuthorized, StatusCancelled:
		event.Type = EventPaymentUpdated
	default:
		event.Type = EventUnknown
	}
	return event
}
