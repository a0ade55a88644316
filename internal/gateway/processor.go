package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/paygate/internal/events"
	"github.com/noah-isme/paygate/internal/obs"
)

// ReplayStore marks webhook deliveries as seen with a TTL. Backed by Redis in
// production, faked in tests.
type ReplayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Processor drives the webhook pipeline: verify per the adapter's trust
// model, translate to a canonical event, suppress replays, fan out to the
// event bus. Concurrent deliveries for the same payment are safe because the
// replay mark is claimed with an atomic SetNX before any fan-out.
type Processor struct {
	Replay    ReplayStore
	ReplayTTL time.Duration
	Events    *events.Bus
	Logger    zerolog.Logger
}

// ProcessResult reports the canonical event and whether this delivery applied
// it. A replayed delivery carries Applied=false and no error: re-processing
// an already-applied transition is a no-op from the caller's perspective.
type ProcessResult struct {
	Event   Event
	Applied bool
}

// Process verifies and translates one inbound delivery for the given adapter.
func (p *Processor) Process(ctx context.Context, gw Gateway, payload []byte, signature string) (ProcessResult, error) {
	provider := gw.Name()

	providerEvent, err := gw.VerifyWebhook(ctx, payload, signature)
	if err != nil {
		p.count(provider, "invalid")
		return ProcessResult{}, err
	}

	event := gw.ProcessWebhook(providerEvent)
	if event.Type == EventUnknown {
		// defined fallback, not a failure
		p.count(provider, "unknown")
		p.Logger.Debug().Str("provider", provider).Str("kind", providerEvent.Kind).Msg("unrecognized webhook event")
		return ProcessResult{Event: event, Applied: false}, nil
	}

	if p.Replay != nil && p.ReplayTTL > 0 {
		ok, err := p.Replay.SetNX(ctx, replayKey(provider, event), "1", p.ReplayTTL).Result()
		if err != nil {
			p.count(provider, "replay_store_error")
			return ProcessResult{}, fmt.Errorf("webhook replay store: %w", err)
		}
		if !ok {
			p.count(provider, "replay")
			p.Logger.Debug().
				Str("provider", provider).
				Str("payment_id", event.PaymentID).
				Str("type", string(event.Type)).
				Msg("duplicate webhook delivery suppressed")
			return ProcessResult{Event: event, Applied: false}, nil
		}
	}

	if p.Events != nil {
		if _, emitErr := p.Events.Emit(ctx, string(event.Type), event); emitErr != nil {
			p.Logger.Error().Err(emitErr).Str("provider", provider).Msg("event fan-out")
		}
	}
	p.count(provider, "success")
	return ProcessResult{Event: event, Applied: true}, nil
}

func (p *Processor) count(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

// replayKey fingerprints one canonical transition so the same delivery, or a
// concurrent duplicate for the same payment, claims the same mark.
func replayKey(provider string, event Event) string {
	sum := sha256.Sum256([]byte(provider + "|" + event.PaymentID + "|" + string(event.Type) + "|" + strconv.FormatInt(event.Amount, 10)))
	return "pgwh:" + hex.EncodeToString(sum[:])
}
