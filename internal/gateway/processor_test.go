package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paygate/internal/events"
)

type fakeReplayStore struct {
	mu   sync.Mutex
	seen map[string]bool
	fail error
}

func (f *fakeReplayStore) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		cmd := redis.NewBoolCmd(context.Background())
		cmd.SetErr(f.fail)
		return cmd
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

type scriptedGateway struct {
	name      string
	event     ProviderEvent
	verifyErr error
	mapped    Event
}

func (g scriptedGateway) Name() string { return g.name }
func (g scriptedGateway) CreatePayment(context.Context, CreateParams) (PaymentIntent, error) {
	return PaymentIntent{}, nil
}
func (g scriptedGateway) ConfirmPayment(context.Context, string) (PaymentIntent, error) {
	return PaymentIntent{}, nil
}
func (g scriptedGateway) CancelPayment(context.Context, string) (PaymentIntent, error) {
	return PaymentIntent{}, nil
}
func (g scriptedGateway) Refund(context.Context, RefundRequest) (RefundResult, error) {
	return RefundResult{}, nil
}
func (g scriptedGateway) GetPaymentStatus(context.Context, string) (PaymentIntent, error) {
	return PaymentIntent{}, nil
}
func (g scriptedGateway) VerifyWebhook(context.Context, []byte, string) (ProviderEvent, error) {
	return g.event, g.verifyErr
}
func (g scriptedGateway) ProcessWebhook(ProviderEvent) Event { return g.mapped }

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return nil
}

func newTestProcessor(store ReplayStore, notifier events.Notifier) *Processor {
	bus := &events.Bus{}
	if notifier != nil {
		bus.Subscribe(notifier)
	}
	return &Processor{
		Replay:    store,
		ReplayTTL: time.Hour,
		Events:    bus,
		Logger:    zerolog.Nop(),
	}
}

func TestProcessorAppliesFirstDelivery(t *testing.T) {
	notifier := &recordingNotifier{}
	p := newTestProcessor(&fakeReplayStore{}, notifier)
	gw := scriptedGateway{
		name:   "stripe",
		mapped: Event{Type: EventPaymentCompleted, PaymentID: "pi_1", Amount: 1000, Provider: "stripe"},
	}

	result, err := p.Process(context.Background(), gw, []byte(`{}`), "sig")
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Equal(t, EventPaymentCompleted, result.Event.Type)
	require.Len(t, notifier.events, 1)
	require.Equal(t, string(EventPaymentCompleted), notifier.events[0].Topic)
}

func TestProcessorSuppressesReplay(t *testing.T) {
	notifier := &recordingNotifier{}
	p := newTestProcessor(&fakeReplayStore{}, notifier)
	gw := scriptedGateway{
		name:   "stripe",
		mapped: Event{Type: EventPaymentCompleted, PaymentID: "pi_1", Amount: 1000, Provider: "stripe"},
	}

	first, err := p.Process(context.Background(), gw, []byte(`{}`), "sig")
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := p.Process(context.Background(), gw, []byte(`{}`), "sig")
	require.NoError(t, err, "a replayed delivery is a no-op, not a failure")
	require.False(t, second.Applied)
	require.Len(t, notifier.events, 1, "replay must not fan out again")
}

func TestProcessorDistinctTransitionsBothApply(t *testing.T) {
	notifier := &recordingNotifier{}
	store := &fakeReplayStore{}
	p := newTestProcessor(store, notifier)

	completed := scriptedGateway{name: "stripe", mapped: Event{Type: EventPaymentCompleted, PaymentID: "pi_1", Amount: 1000}}
	refunded := scriptedGateway{name: "stripe", mapped: Event{Type: EventPaymentRefunded, PaymentID: "pi_1", Amount: 400}}

	first, err := p.Process(context.Background(), completed, nil, "")
	require.NoError(t, err)
	require.True(t, first.Applied)

	second, err := p.Process(context.Background(), refunded, nil, "")
	require.NoError(t, err)
	require.True(t, second.Applied, "different transition for the same payment is not a replay")
	require.Len(t, notifier.events, 2)
}

func TestProcessorVerificationFailure(t *testing.T) {
	p := newTestProcessor(&fakeReplayStore{}, nil)
	gw := scriptedGateway{
		name:      "stripe",
		verifyErr: verificationErr("stripe", "signature mismatch", nil),
	}

	_, err := p.Process(context.Background(), gw, []byte(`{}`), "bad")
	require.True(t, HasCode(err, CodeWebhookVerification))
}

func TestProcessorUnknownEventNotApplied(t *testing.T) {
	notifier := &recordingNotifier{}
	p := newTestProcessor(&fakeReplayStore{}, notifier)
	gw := scriptedGateway{
		name:   "stripe",
		mapped: Event{Type: EventUnknown, PaymentID: "pi_1"},
	}

	result, err := p.Process(context.Background(), gw, []byte(`{}`), "sig")
	require.NoError(t, err, "unrecognized events are a defined fallback, not a failure")
	require.False(t, result.Applied)
	require.Empty(t, notifier.events)
}

func TestProcessorReplayStoreFailure(t *testing.T) {
	store := &fakeReplayStore{fail: context.DeadlineExceeded}
	p := newTestProcessor(store, nil)
	gw := scriptedGateway{
		name:   "stripe",
		mapped: Event{Type: EventPaymentCompleted, PaymentID: "pi_1"},
	}

	_, err := p.Process(context.Background(), gw, []byte(`{}`), "sig")
	require.Error(t, err, "a broken replay store must not silently apply the event")
}
