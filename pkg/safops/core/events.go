package core

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event types published by safops components.
const (
	EventOperationCompleted = "operation.completed"
	EventGrantRequested     = "grant.requested"
	EventGrantResolved      = "grant.resolved"
	EventIndexRescanned     = "index.rescanned"
)

// Event is one notification. Payload holds one of the *Event structs below.
type Event struct {
	Type    string
	Time    time.Time
	Payload any
}

// OperationEvent is the payload of EventOperationCompleted.
type OperationEvent struct {
	Op       string
	Path     string
	Kind     StorageKind
	Success  bool
	Err      error
	Duration time.Duration
}

// GrantEvent is the payload of the grant events. Outcome is empty for requests and one
// of granted, declined, wrong_root or cancelled for resolutions.
type GrantEvent struct {
	RequestID string
	Kind      StorageKind
	Outcome   string
}

// RescanEvent is the payload of EventIndexRescanned.
type RescanEvent struct {
	Files    int
	Duration time.Duration
}

// Handler receives events. It runs on the publishing goroutine.
type Handler func(ctx context.Context, ev Event)

// SubscriptionID identifies a subscription
type SubscriptionID string

// EventBus fans events out to subscribers.
type EventBus interface {
	Subscribe(eventType string, h Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	Publish(ctx context.Context, ev Event)
}

type subscriber struct {
	id SubscriptionID
	h  Handler
}

// MemoryEventBus delivers events synchronously, in subscription order.
type MemoryEventBus struct {
	logger zerolog.Logger
	seq    atomic.Uint64

	mu     sync.RWMutex
	byType map[string][]subscriber
}

func NewMemoryEventBus(logger zerolog.Logger) *MemoryEventBus {
	return &MemoryEventBus{
		logger: logger,
		byType: make(map[string][]subscriber),
	}
}

func (b *MemoryEventBus) Subscribe(eventType string, h Handler) SubscriptionID {
	id := SubscriptionID(eventType + "#" + strconv.FormatUint(b.seq.Add(1), 10))
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], subscriber{id: id, h: h})
	b.mu.Unlock()
	return id
}

// Unsubscribe is a no-op for unknown ids.
func (b *MemoryEventBus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.byType {
		b.byType[eventType] = slices.DeleteFunc(subs, func(s subscriber) bool { return s.id == id })
	}
}

// Publish runs every handler for ev.Type. A panicking handler is logged and the
// remaining handlers still run.
func (b *MemoryEventBus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := slices.Clone(b.byType[ev.Type])
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *MemoryEventBus) deliver(ctx context.Context, s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_type", ev.Type).
				Str("subscription_id", string(s.id)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.h(ctx, ev)
}

// PublishEvent stamps and publishes payload. A nil bus is ignored.
func PublishEvent(ctx context.Context, bus EventBus, eventType string, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, Event{Type: eventType, Time: time.Now(), Payload: payload})
}
