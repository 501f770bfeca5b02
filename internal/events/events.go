// Package events carries post-commit fee events to in-process subscribers,
// such as the fee summary cache.
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Fee event types.
const (
	EventLedgerRecordChanged = "ledger.record_changed"
	EventPaymentRecorded     = "payment.recorded"
	EventAdvanceChanged      = "advance.changed"
	EventDueChanged          = "due.changed"
)

// Event describes a committed change for one subscriber.
type Event struct {
	Type         string
	SubscriberID snowflake.ID
	Period       string
	OccurredAt   time.Time
}

type Handler func(ctx context.Context, event Event)

// Bus fans events out to handlers synchronously. Publish must only be called
// after the transaction that produced the change has committed.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log.Named("events.bus")}
}

func (b *Bus) Subscribe(handler Handler) {
	if b == nil || handler == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// Publish delivers the event to every handler. A panicking handler is logged
// and does not stop delivery to the others. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" || event.SubscriberID == 0 {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(ctx, handler, event)
	}
}

func (b *Bus) deliver(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.String("event_type", event.Type),
				zap.String("subscriber_id", event.SubscriberID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}

var Module = fx.Module("events",
	fx.Provide(NewBus),
)
