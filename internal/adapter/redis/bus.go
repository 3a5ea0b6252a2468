package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/pscheid92/selectionsync/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Bus broadcasts selection messages over a Redis pub/sub channel. Redis
// delivers every publish to all subscribers, the publisher included.
type Bus struct {
	rdb     *goredis.Client
	channel string
	metrics *metrics.RedisMetrics

	ready     chan struct{}
	readyOnce sync.Once
}

var _ domain.Publisher = (*Bus)(nil)

func NewBus(rdb *goredis.Client, channel string, m *metrics.RedisMetrics) *Bus {
	return &Bus{rdb: rdb, channel: channel, metrics: m, ready: make(chan struct{})}
}

// Ready is closed once Redis has confirmed the first subscription. Redis
// pub/sub does not buffer, so publishes before that are not looped back.
func (b *Bus) Ready() <-chan struct{} {
	return b.ready
}

func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", b.channel, err)
	}
	return nil
}

// Start subscribes to the channel and hands every payload to handler until
// ctx is cancelled. It returns an error only if the subscription could not be
// established.
func (b *Bus) Start(ctx context.Context, handler domain.MessageHandler) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.setSubscribed(true)
	defer b.setSubscribed(false)
	b.readyOnce.Do(func() { close(b.ready) })
	slog.Info("Subscribed to selection channel", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				slog.Warn("Selection channel closed", "channel", b.channel)
				return nil
			}
			if msg.Payload == "" {
				slog.Warn("Empty selection message", "channel", b.channel)
				continue
			}
			handler(ctx, []byte(msg.Payload))
		case <-ctx.Done():
			return nil
		}
	}
}

// Ping reports whether Redis is reachable.
func (b *Bus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Bus) setSubscribed(on bool) {
	if b.metrics == nil {
		return
	}
	if on {
		b.metrics.Subscribed.Set(1)
	} else {
		b.metrics.Subscribed.Set(0)
	}
}
