package selection

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTarget struct {
	mu    sync.Mutex
	ticks int
}

func (c *countingTarget) Tick(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
	return 0, nil
}

func (c *countingTarget) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func TestClockSampler_TruncatesToResolution(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(100, 0))
	sample := ClockSampler(clock, time.Second)

	first := sample()
	clock.Advance(900 * time.Millisecond)
	assert.Equal(t, first, sample())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, first+1, sample())
}

func TestHighlightClock_CoalescesUnchangedSamples(t *testing.T) {
	target := &countingTarget{}
	m := metrics.NewSyncMetrics(prometheus.NewRegistry())
	hc := NewHighlightClock(target, nil, clockwork.NewFakeClock(), 0, m)
	ctx := context.Background()

	for _, sample := range []int64{5, 5, 5, 6, 6, 8} {
		_, err := hc.Advance(ctx, sample)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, target.count())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TicksCoalesced))
}

func TestHighlightClock_RunTicksOnAdvancingSamples(t *testing.T) {
	target := &countingTarget{}
	fake := clockwork.NewFakeClock()
	var sample atomic.Int64
	hc := NewHighlightClock(target, func() int64 { return sample.Load() }, fake, 100*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hc.Run(ctx)

	require.NoError(t, fake.BlockUntilContext(ctx, 1))

	fake.Advance(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return target.count() == 1 }, time.Second, 5*time.Millisecond)

	fake.Advance(100 * time.Millisecond)
	assert.Never(t, func() bool { return target.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	sample.Store(1)
	fake.Advance(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return target.count() == 2 }, time.Second, 5*time.Millisecond)
}
