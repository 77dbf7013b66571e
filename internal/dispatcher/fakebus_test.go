package dispatcher

import (
	"context"
	"sync"

	"github.com/relaywire/chat/internal/bus"
)

// fakeBus is an in-memory bus.Bus, the dispatcher-side twin of
// internal/registry's test double, so dispatcher tests can observe
// published events without a real Redis dependency.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string]func([]byte)
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string]func([]byte))}
}

func (b *fakeBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	if h != nil {
		h(payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBus) Unsubscribe(ctx context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)
	return nil
}

func (b *fakeBus) Close() error { return nil }

var _ bus.Bus = (*fakeBus)(nil)
