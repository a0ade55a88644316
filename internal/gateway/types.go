package gateway

// Status is the provider-independent payment state every adapter normalizes into.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// IsTerminal reports whether the payment can no longer change state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// rank orders statuses along the settlement progression. Transitions must be
// monotonic: once a payment is observed at a given rank it never moves back.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusProcessing:
		return 2
	case StatusAuthorized:
		return 3
	case StatusCompleted, StatusCancelled, StatusExpired, StatusFailed:
		return 4
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to target respects the
// monotonic settlement progression.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StatusUnknown {
		return false
	}
	return target.rank() >= s.rank()
}

// PaymentIntent is the canonical view of a payment held at a provider.
// It is created by CreatePayment and mutated only through the gateway
// operations or a verified webhook, never directly by callers.
type PaymentIntent struct {
	ID           string            `json:"id"`
	OrderID      string            `json:"orderId"`
	Amount       int64             `json:"amount"` // minor units
	Currency     string            `json:"currency"`
	Status       Status            `json:"status"`
	Provider     string            `json:"provider"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CheckoutURL  string            `json:"checkoutUrl,omitempty"`
	ClientSecret string            `json:"clientSecret,omitempty"`
}

// CreateParams captures the information required to open a payment with a provider.
type CreateParams struct {
	Amount      int64
	Currency    string
	OrderID     string
	Description string
	Metadata    map[string]string
	ReturnURL   string
	CancelURL   string
}

// RefundRequest asks for a full refund when Amount is zero, partial otherwise.
// Refunds reference an existing payment and inherit its currency.
type RefundRequest struct {
	PaymentID string
	Amount    int64
	Reason    string
}

// RefundResult reports the provider's view of a submitted refund.
type RefundResult struct {
	ID        string `json:"id"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Status    Status `json:"status"`
	Provider  string `json:"provider"`
}

// Credentials holds the per-tenant secrets an adapter needs. They are owned by
// tenant configuration and read-only to the gateway layer.
type Credentials struct {
	APIKey        string
	WebhookSecret string
}

// EventType classifies canonical domain events emitted from webhooks.
type EventType string

const (
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventPaymentUpdated   EventType = "payment.updated"
	EventUnknown          EventType = "unknown"
)

// Event is the canonical domain event handed to order/billing logic after a
// webhook has been verified and processed.
type Event struct {
	Type      EventType `json:"type"`
	PaymentID string    `json:"paymentId"`
	OrderID   string    `json:"orderId,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Provider  string    `json:"provider"`
	Error     string    `json:"error,omitempty"`
}

// ProviderEvent is a webhook notification whose authenticity has been
// established, either cryptographically or by re-fetching the referenced
// payment from the provider. Status is already canonical.
type ProviderEvent struct {
	Provider       string
	Kind           string // provider-native event label
	PaymentID      string
	OrderID        string
	Amount         int64
	Currency       string
	Status         Status
	AmountRefunded int64
	FailureMessage string
}
