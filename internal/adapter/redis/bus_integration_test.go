package redis

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBus(t *testing.T, channel string) (*Bus, *metrics.RedisMetrics) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	client, err := NewClient(context.Background(), url, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewBus(client, channel, m), m
}

func TestBus_DeliversToEverySubscriberIncludingPublisher(t *testing.T) {
	channel := "selection:test:" + t.Name()
	publisher, m := setupTestBus(t, channel)
	peer, _ := setupTestBus(t, channel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var mu sync.Mutex
	received := map[string][]string{}
	record := func(name string) func(context.Context, []byte) {
		return func(_ context.Context, payload []byte) {
			mu.Lock()
			received[name] = append(received[name], string(payload))
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	for name, bus := range map[string]*Bus{"self": publisher, "peer": peer} {
		name, bus := name, bus
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, bus.Start(ctx, record(name)))
		}()
	}

	for _, bus := range []*Bus{publisher, peer} {
		select {
		case <-bus.Ready():
		case <-ctx.Done():
			t.Fatal("subscription never confirmed")
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscribed))

	require.NoError(t, publisher.Publish(ctx, []byte(`{"kind":"resetAll"}`)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["self"]) == 1 && len(received["peer"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	wg.Wait()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Subscribed))
}
