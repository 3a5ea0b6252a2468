package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
)

const (
	DefaultTickInterval    = 100 * time.Millisecond
	DefaultDecayResolution = time.Second
)

// DecaySampler returns the shared decay counter. Samples never decrease; a
// highlight only decays when the sample has moved since the previous tick.
type DecaySampler func() int64

// ClockSampler samples clock in whole units of resolution.
func ClockSampler(clock clockwork.Clock, resolution time.Duration) DecaySampler {
	if resolution <= 0 {
		resolution = DefaultDecayResolution
	}
	return func() int64 {
		return clock.Now().UnixNano() / int64(resolution)
	}
}

type tickTarget interface {
	Tick(ctx context.Context) (int, error)
}

// HighlightClock drives highlight decay. Firings whose sample equals the
// previous one are coalesced so several processes sharing the counter decay
// in lockstep.
type HighlightClock struct {
	target   tickTarget
	sampler  DecaySampler
	clock    clockwork.Clock
	interval time.Duration
	metrics  *metrics.SyncMetrics

	last    int64
	started bool
}

func NewHighlightClock(target tickTarget, sampler DecaySampler, clock clockwork.Clock, interval time.Duration, m *metrics.SyncMetrics) *HighlightClock {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if m == nil {
		m = metrics.NewSyncMetrics(prometheus.NewRegistry())
	}
	return &HighlightClock{
		target:   target,
		sampler:  sampler,
		clock:    clock,
		interval: interval,
		metrics:  m,
	}
}

// Run fires every interval until ctx is cancelled.
func (h *HighlightClock) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Highlight clock stopped")
			return
		case <-ticker.Chan():
			if _, err := h.Advance(ctx, h.sampler()); err != nil {
				slog.WarnContext(ctx, "Highlight tick failed", "error", err)
			}
		}
	}
}

// Advance performs one firing with the given sample and reports whether the
// engine ticked. It must not be called concurrently with Run.
func (h *HighlightClock) Advance(ctx context.Context, sample int64) (bool, error) {
	if h.started && sample <= h.last {
		h.metrics.TicksCoalesced.Inc()
		return false, nil
	}
	h.last = sample
	h.started = true

	expired, err := h.target.Tick(ctx)
	if err != nil {
		return true, err
	}
	if expired > 0 {
		slog.DebugContext(ctx, "Highlights expired", "count", expired, "sample", sample)
	}
	return true, nil
}
