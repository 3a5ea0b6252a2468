package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/platform/correlation"
)

type syncPublisher interface {
	PublishSync(ctx context.Context) error
}

// Reconciler periodically republishes the local app's own selections so that
// peers which missed a select or deselect converge.
type Reconciler struct {
	engine   syncPublisher
	interval time.Duration
	clock    clockwork.Clock
	stopCh   chan struct{}
}

func NewReconciler(engine syncPublisher, interval time.Duration, clock clockwork.Clock) *Reconciler {
	return &Reconciler{
		engine:   engine,
		interval: interval,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the reconciliation loop until Stop is called or ctx is done.
// A non-positive interval disables it.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		slog.Info("Selection reconciler disabled")
		return
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			syncCtx := correlation.WithID(ctx, correlation.NewID())
			if err := r.engine.PublishSync(syncCtx); err != nil {
				slog.ErrorContext(syncCtx, "Selection reconciliation failed", "error", err)
			}
		case <-r.stopCh:
			slog.Info("Selection reconciler stopped")
			return
		case <-ctx.Done():
			slog.Info("Selection reconciler context cancelled")
			return
		}
	}
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}
