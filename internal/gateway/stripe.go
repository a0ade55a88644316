package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	stripeProvider       = "stripe"
	stripeDefaultBaseURL = "https://api.stripe.com"

	// stripeSignatureTolerance bounds how old a signed webhook may be.
	stripeSignatureTolerance = 5 * time.Minute
)

// Stripe implements Gateway against a PaymentIntents-style API where the
// caller drives authorize and capture synchronously. Webhooks are signed;
// authenticity is established before any payload field is trusted.
type Stripe struct {
	credentials Credentials
	api         apiClient
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStripe validates credentials and builds the adapter.
func NewStripe(creds Credentials, opts Options) (*Stripe, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, configErr(stripeProvider, "api key is required")
	}
	if strings.TrimSpace(creds.WebhookSecret) == "" {
		return nil, configErr(stripeProvider, "webhook secret is required")
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = stripeDefaultBaseURL
	}
	return &Stripe{
		credentials: creds,
		api: apiClient{
			provider: stripeProvider,
			baseURL:  base,
			apiKey:   creds.APIKey,
			client:   opts.httpClient(),
			timeout:  opts.callTimeout(),
		},
		logger: opts.Logger,
		now:    opts.now(),
	}, nil
}

// Name implements Gateway.
func (s *Stripe) Name() string { return stripeProvider }

type stripeIntent struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Amount           int64             `json:"amount"`
	AmountRefunded   int64             `json:"amount_refunded"`
	Currency         string            `json:"currency"`
	ClientSecret     string            `json:"client_secret"`
	PaymentIntent    string            `json:"payment_intent"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (s *Stripe) toIntent(raw stripeIntent) PaymentIntent {
	return PaymentIntent{
		ID:           raw.ID,
		OrderID:      raw.Metadata["order_id"],
		Amount:       raw.Amount,
		Currency:     strings.ToUpper(raw.Currency),
		Status:       normalizeStripeStatus(raw.Status),
		Provider:     stripeProvider,
		Metadata:     raw.Metadata,
		ClientSecret: raw.ClientSecret,
	}
}

// normalizeStripeStatus is total: any unlisted provider value maps to unknown.
func normalizeStripeStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "requires_payment_method", "requires_confirmation", "requires_action":
		return StatusPending
	case "processing":
		return StatusProcessing
	case "requires_capture":
		return StatusAuthorized
	case "canceled":
		return StatusCancelled
	case "succeeded":
		return StatusCompleted
	default:
		return StatusUnknown
	}
}

func (s *Stripe) apiError(paymentID string, status int, body []byte) *Error {
	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)
	switch envelope.Error.Code {
	case "payment_intent_unexpected_state":
		return invalidStateErr(stripeProvider, paymentID, envelope.Error.Message)
	case "amount_too_large", "charge_already_refunded":
		return invalidStateErr(stripeProvider, paymentID, envelope.Error.Message)
	}
	message := envelope.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}
	return gatewayErr(stripeProvider, paymentID, status, envelope.Error.Code, message)
}

// CreatePayment implements Gateway. The intent starts in a requires_* state;
// capture happens through ConfirmPayment.
func (s *Stripe) CreatePayment(ctx context.Context, params CreateParams) (PaymentIntent, error) {
	if params.Amount <= 0 {
		return PaymentIntent{}, errors.New("amount must be a positive number of minor units")
	}
	if strings.TrimSpace(params.Currency) == "" {
		return PaymentIntent{}, errors.New("currency is required")
	}
	if strings.TrimSpace(params.OrderID) == "" {
		return PaymentIntent{}, errors.New("order id is required")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount, 10))
	form.Set("currency", strings.ToLower(params.Currency))
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	form.Set("metadata[order_id]", params.OrderID)
	if params.ReturnURL != "" {
		form.Set("return_url", params.ReturnURL)
	}

	status, body, err := s.api.do(ctx, http.MethodPost, "/v1/payment_intents", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), "")
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		return PaymentIntent{}, s.apiError("", status, body)
	}
	var raw stripeIntent
	if err := json.Unmarshal(body, &raw); err != nil {
		return PaymentIntent{}, transportErr(stripeProvider, "", fmt.Errorf("decode intent: %w", err))
	}
	s.logger.Debug().Str("payment_id", raw.ID).Str("order_id", params.OrderID).Msg("payment intent created")
	return s.toIntent(raw), nil
}

// ConfirmPayment performs the capture step. Confirming an already-completed
// payment is not an error: the current canonical status is returned as-is.
func (s *Stripe) ConfirmPayment(ctx context.Context, id string) (PaymentIntent, error) {
	status, body, err := s.api.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id)+"/confirm", "application/x-www-form-urlencoded", nil, id)
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		apiErr := s.apiError(id, status, body)
		if apiErr.Code == CodeInvalidState {
			intent, fetchErr := s.GetPaymentStatus(ctx, id)
			if fetchErr == nil && intent.Status == StatusCompleted {
				return intent, nil
			}
		}
		return PaymentIntent{}, apiErr
	}
	var raw stripeIntent
	if err := json.Unmarshal(body, &raw); err != nil {
		return PaymentIntent{}, transportErr(stripeProvider, id, fmt.Errorf("decode intent: %w", err))
	}
	return s.toIntent(raw), nil
}

// CancelPayment voids an intent. Capture already having happened surfaces as
// an invalid-state failure, never a silent success.
func (s *Stripe) CancelPayment(ctx context.Context, id string) (PaymentIntent, error) {
	status, body, err := s.api.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id)+"/cancel", "application/x-www-form-urlencoded", nil, id)
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		return PaymentIntent{}, s.apiError(id, status, body)
	}
	var raw stripeIntent
	if err := json.Unmarshal(body, &raw); err != nil {
		return PaymentIntent{}, transportErr(stripeProvider, id, fmt.Errorf("decode intent: %w", err))
	}
	return s.toIntent(raw), nil
}

// Refund submits a refund in minor units, passed straight through to the
// provider. A zero amount refunds the full captured amount.
func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return RefundResult{}, errors.New("payment id is required")
	}
	form := url.Values{}
	form.Set("payment_intent", req.PaymentID)
	if req.Amount > 0 {
		form.Set("amount", strconv.FormatInt(req.Amount, 10))
	}
	if req.Reason != "" {
		form.Set("reason", req.Reason)
	}
	status, body, err := s.api.do(ctx, http.MethodPost, "/v1/refunds", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), req.PaymentID)
	if err != nil {
		return RefundResult{}, err
	}
	if status >= http.StatusMultipleChoices {
		return RefundResult{}, s.apiError(req.PaymentID, status, body)
	}
	var raw struct {
		ID            string `json:"id"`
		Amount        int64  `json:"amount"`
		Status        string `json:"status"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RefundResult{}, transportErr(stripeProvider, req.PaymentID, fmt.Errorf("decode refund: %w", err))
	}
	return RefundResult{
		ID:        raw.ID,
		PaymentID: raw.PaymentIntent,
		Amount:    raw.Amount,
		Status:    normalizeStripeRefundStatus(raw.Status),
		Provider:  stripeProvider,
	}, nil
}

func normalizeStripeRefundStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return StatusCompleted
	case "pending":
		return StatusProcessing
	case "failed":
		return StatusFailed
	case "canceled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// GetPaymentStatus implements Gateway. It always asks the provider.
func (s *Stripe) GetPaymentStatus(ctx context.Context, id string) (PaymentIntent, error) {
	status, body, err := s.api.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), "", nil, id)
	if err != nil {
		return PaymentIntent{}, err
	}
	if status >= http.StatusMultipleChoices {
		return PaymentIntent{}, s.apiError(id, status, body)
	}
	var raw stripeIntent
	if err := json.Unmarshal(body, &raw); err != nil {
		return PaymentIntent{}, transportErr(stripeProvider, id, fmt.Errorf("decode intent: %w", err))
	}
	return s.toIntent(raw), nil
}

// VerifyWebhook checks the provider signature before anything in the payload
// is trusted. The signature header carries a timestamp and one or more v1
// HMAC-SHA256 signatures over "<timestamp>.<payload>".
func (s *Stripe) VerifyWebhook(_ context.Context, payload []byte, signature string) (ProviderEvent, error) {
	ts, candidates, err := parseStripeSignature(signature)
	if err != nil {
		return ProviderEvent{}, verificationErr(stripeProvider, "malformed signature header", err)
	}
	issued := time.Unix(ts, 0)
	if age := s.now().Sub(issued); age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return ProviderEvent{}, verificationErr(stripeProvider, "signature timestamp outside tolerance", nil)
	}

	mac := hmac.New(sha256.New, []byte(s.credentials.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	matched := false
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			matched = true
			break
		}
	}
	if !matched {
		return ProviderEvent{}, verificationErr(stripeProvider, "signature mismatch", nil)
	}

	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object stripeIntent `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return ProviderEvent{}, verificationErr(stripeProvider, "unparsable payload", err)
	}

	object := event.Data.Object
	paymentID := object.ID
	if object.PaymentIntent != "" {
		paymentID = object.PaymentIntent
	}
	failure := ""
	if object.LastPaymentError != nil {
		failure = object.LastPaymentError.Message
	}
	return ProviderEvent{
		Provider:       stripeProvider,
		Kind:           event.Type,
		PaymentID:      paymentID,
		OrderID:        object.Metadata["order_id"],
		Amount:         object.Amount,
		Currency:       strings.ToUpper(object.Currency),
		Status:         normalizeStripeStatus(object.Status),
		AmountRefunded: object.AmountRefunded,
		FailureMessage: failure,
	}, nil
}

// parseStripeSignature splits "t=<unix>,v1=<hex>[,v1=<hex>...]".
func parseStripeSignature(header string) (int64, []string, error) {
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp: %w", err)
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, errors.New("missing timestamp or signature")
	}
	return ts, sigs, nil
}

// ProcessWebhook implements Gateway. The mapping is total: anything
// unrecognized becomes EventUnknown rather than an error.
func (s *Stripe) ProcessWebhook(ev ProviderEvent) Event {
	event := Event{
		PaymentID: ev.PaymentID,
		OrderID:   ev.OrderID,
		Amount:    ev.Amount,
		Currency:  ev.Currency,
		Provider:  stripeProvider,
		Error:     ev.FailureMessage,
	}
	switch ev.Kind {
	case "payment_intent.succeeded":
		event.Type = EventPaymentCompleted
	case "payment_intent.payment_failed":
		event.Type = EventPaymentFailed
	case "charge.refunded", "refund.created", "refund.updated":
		event.Type = EventPaymentRefunded
		if ev.AmountRefunded > 0 {
			event.Amount = ev.AmountRefunded
		}
	case "payment_intent.processing", "payment_intent.canceled", "payment_intent.amount_capturable_updated":
		event.Type = EventPaymentUpdated
	default:
		event.Type = EventUnknown
	}
	return event
}
