package events

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Publisher and Subscriber. Handlers run
// synchronously inside Publish.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(context.Context, Event)
	sent     []Sent
}

type Sent struct {
	Stream string
	Event  Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]func(context.Context, Event))}
}

func (b *MemoryBus) Publish(ctx context.Context, stream string, event Event) error {
	b.mu.Lock()
	b.sent = append(b.sent, Sent{Stream: stream, Event: event})
	handlers := append([]func(context.Context, Event){}, b.handlers[stream]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, stream string, handler func(context.Context, Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	return nil
}

// Sent returns every published event, oldest first.
func (b *MemoryBus) Sent() []Sent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Sent(nil), b.sent...)
}
