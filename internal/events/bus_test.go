package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/chilisaus/storefront-api/internal/events"
)

type recordingNotifier struct {
	seen []events.Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitFansOutToAllNotifiers(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	bus := &events.Bus{Notifiers: []events.Notifier{first, second}}

	aggregate := uuid.New()
	ev, err := bus.Emit(t.Context(), events.TopicOrderPaid, aggregate, map[string]any{"total": 1000})
	require.NoError(t, err)
	require.Equal(t, events.TopicOrderPaid, ev.Topic)
	require.Equal(t, aggregate, ev.AggregateID)
	require.JSONEq(t, `{"total":1000}`, string(ev.Payload))
	require.Len(t, first.seen, 1)
	require.Len(t, second.seen, 1)
}

func TestEmitJoinsNotifierFailuresButDelivers(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("smtp down")}
	healthy := &recordingNotifier{}
	bus := &events.Bus{Notifiers: []events.Notifier{failing, healthy}}

	_, err := bus.Emit(t.Context(), events.TopicStockLow, uuid.New(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "smtp down")
	require.Len(t, healthy.seen, 1)
}

func TestEmitValidation(t *testing.T) {
	bus := &events.Bus{}

	_, err := bus.Emit(t.Context(), "  ", uuid.New(), nil)
	require.Error(t, err)

	_, err = bus.Emit(t.Context(), events.TopicOrderPaid, uuid.Nil, nil)
	require.Error(t, err)

	_, err = bus.Emit(t.Context(), events.TopicOrderPaid, uuid.New(), []byte("not-json"))
	require.Error(t, err)
}
