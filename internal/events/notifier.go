package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes every emitted event to the structured log. It is the
// default subscriber so deployments without a downstream consumer still get
// an audit trail of payment transitions.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID).
		Str("topic", event.Topic).
		RawJSON("payload", event.Payload).
		Msg("event_emitted")
	return nil
}
