package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestPublishDeliversToAllHandlers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))

	var got []Event
	bus.Subscribe(func(_ context.Context, e Event) { panic("broken handler") })
	bus.Subscribe(func(_ context.Context, e Event) { got = append(got, e) })

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(context.Background(), Event{Type: EventPaymentRecorded, SubscriberID: 9, Period: "2025-01", OccurredAt: at})

	if assert.Len(t, got, 1) {
		assert.Equal(t, EventPaymentRecorded, got[0].Type)
		assert.Equal(t, at, got[0].OccurredAt)
	}
}

func TestPublishDropsIncompleteEvents(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	calls := 0
	bus.Subscribe(func(context.Context, Event) { calls++ })

	bus.Publish(context.Background(), Event{Type: EventDueChanged})
	bus.Publish(context.Background(), Event{SubscriberID: 1})
	assert.Zero(t, calls)

	var nilBus *Bus
	nilBus.Publish(context.Background(), Event{Type: EventDueChanged, SubscriberID: 1})
}
