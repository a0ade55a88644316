package events

// Topic constants for payment events emitted by the gateway.
const (
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentFailed    = "payment.failed"
	TopicPaymentRefunded  = "payment.refunded"
	TopicPaymentUpdated   = "payment.updated"
)
