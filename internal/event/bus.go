// Package event provides an in-memory publish/subscribe bus that decouples
// the polling loop from the notification back-ends.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a typed message on the bus.
type Event struct {
	Topic     string
	Source    string // component that emitted the event
	Timestamp time.Time
	Payload   any // type depends on topic
}

// Handler processes events from the bus.
type Handler func(ctx context.Context, event Event)

// Publisher sends events to the bus. Use this thin interface in code that
// only needs to emit events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber receives events from the bus.
type Subscriber interface {
	Subscribe(topic string, handler Handler) (unsubscribe func())
}

var (
	_ Publisher  = (*Bus)(nil)
	_ Subscriber = (*Bus)(nil)
)

// Bus is an in-memory event bus.
// Publish is synchronous: handlers run in the caller's goroutine, in
// subscription order, so spikes reach notifiers in rank order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry // topic -> handlers
	allSubs  []handlerEntry            // handlers subscribed to all topics
	nextID   uint64
	logger   *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler Handler
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

func (b *Bus) matching(topic string) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]handlerEntry, 0, len(b.handlers[topic])+len(b.allSubs))
	out = append(out, b.handlers[topic]...)
	out = append(out, b.allSubs...)
	return out
}

// Publish dispatches an event synchronously to all matching handlers.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, h := range b.matching(event.Topic) {
		b.safeCall(ctx, h.handler, event)
	}
	return nil
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic] = removeEntry(b.handlers[topic], id)
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = removeEntry(b.allSubs, id)
	}
}

func removeEntry(entries []handlerEntry, id uint64) []handlerEntry {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

func (b *Bus) safeCall(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
