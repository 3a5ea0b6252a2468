// Package memory provides an in-process message bus for single-process walls
// and tests. It delivers like Redis pub/sub: every subscriber, the publisher
// included, receives every message asynchronously.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pscheid92/selectionsync/internal/domain"
)

const subscriberBuffer = 256

type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

var _ domain.Publisher = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan []byte]struct{}), ready: make(chan struct{})}
}

// Ready is closed once the first Start loop is registered. Messages published
// before that reach nobody.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

// Publish enqueues a copy of payload for every current subscriber. It blocks
// while a subscriber's buffer is full.
func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.subscribers) == 0 {
		slog.DebugContext(ctx, "No subscriber on in-process bus, message dropped")
		return nil
	}
	for ch := range b.subscribers {
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case ch <- msg:
		case <-ctx.Done():
			return fmt.Errorf("failed to publish: %w", ctx.Err())
		}
	}
	return nil
}

// Start delivers messages to handler until ctx is cancelled.
func (b *Bus) Start(ctx context.Context, handler domain.MessageHandler) error {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	b.readyOnce.Do(func() { close(b.ready) })

	defer func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
	}()

	slog.Info("Subscribed to in-process selection bus")
	for {
		select {
		case payload := <-ch:
			handler(ctx, payload)
		case <-ctx.Done():
			return nil
		}
	}
}

// Subscribers returns the number of running Start loops.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Ping always succeeds.
func (b *Bus) Ping(context.Context) error {
	return nil
}
