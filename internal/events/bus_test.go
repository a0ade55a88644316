package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paygate/internal/events"
)

type captureNotifier struct {
	got []events.Event
	err error
}

func (n *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	n.got = append(n.got, ev)
	return n.err
}

func TestBusEmitFansOut(t *testing.T) {
	bus := &events.Bus{}
	first := &captureNotifier{}
	second := &captureNotifier{}
	bus.Subscribe(first)
	bus.Subscribe(second)

	ev, err := bus.Emit(context.Background(), events.TopicPaymentCompleted, map[string]string{"paymentId": "pi_1"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, events.TopicPaymentCompleted, ev.Topic)
	require.JSONEq(t, `{"paymentId":"pi_1"}`, string(ev.Payload))
	require.Len(t, first.got, 1)
	require.Len(t, second.got, 1)
}

func TestBusEmitContinuesPastFailingNotifier(t *testing.T) {
	bus := &events.Bus{}
	failing := &captureNotifier{err: errors.New("boom")}
	healthy := &captureNotifier{}
	bus.Subscribe(failing)
	bus.Subscribe(healthy)

	_, err := bus.Emit(context.Background(), events.TopicPaymentFailed, nil)
	require.Error(t, err)
	require.Len(t, healthy.got, 1, "one failing notifier must not starve the others")
}

func TestBusEmitRejectsInvalidPayload(t *testing.T) {
	bus := &events.Bus{}
	_, err := bus.Emit(context.Background(), events.TopicPaymentUpdated, []byte("{not json"))
	require.Error(t, err)

	_, err = bus.Emit(context.Background(), "", nil)
	require.Error(t, err)
}
