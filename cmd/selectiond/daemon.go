package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/adapter/directory"
	"github.com/pscheid92/selectionsync/internal/adapter/httpserver"
	"github.com/pscheid92/selectionsync/internal/adapter/memory"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/pscheid92/selectionsync/internal/adapter/redis"
	"github.com/pscheid92/selectionsync/internal/adapter/websocket"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/platform/config"
	"github.com/pscheid92/selectionsync/internal/platform/retry"
	"github.com/pscheid92/selectionsync/internal/selection"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const subscribeTimeout = 10 * time.Second

// bus is what both the Redis and in-memory transports provide.
type bus interface {
	domain.Publisher
	Start(ctx context.Context, handler domain.MessageHandler) error
	Ping(ctx context.Context) error
	Ready() <-chan struct{}
}

// daemon holds one app's wired components. newDaemon builds them, start runs
// the background loops and shutdown tears everything down.
type daemon struct {
	cfg   *config.Config
	clock clockwork.Clock

	transport      bus
	closeBus       func() error
	directory      *directory.Directory
	watchable      bool
	hub            *websocket.Hub
	engine         *selection.Engine
	highlightClock *selection.HighlightClock
	reconciler     *selection.Reconciler
	server         *httpserver.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

func newDaemon(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (*daemon, error) {
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	d := &daemon{cfg: cfg, clock: clock, closeBus: func() error { return nil }}

	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg, clock, m.Redis)
		if err != nil {
			return nil, err
		}
		d.transport = redis.NewBus(client, cfg.BusChannel, m.Redis)
		d.closeBus = client.Close
	} else {
		slog.Warn("REDIS_URL not set, using in-process bus; selections stay on this instance")
		d.transport = memory.NewBus()
	}

	dir, watchable, err := loadDirectory(cfg)
	if err != nil {
		_ = d.closeBus()
		return nil, err
	}
	d.directory, d.watchable = dir, watchable

	d.hub = websocket.NewHub(clock, m.WebSocket)
	observer := selection.MultiObserver{d.hub, selection.LogObserver{}}

	d.engine, err = selection.NewEngine(selection.NewStore(cfg.TotalApps()), dir, d.transport, observer, clock, selection.Config{
		LocalApp:          cfg.AppID,
		HighlightDuration: cfg.HighlightDurationTicks,
		Metrics:           m.Sync,
	})
	if err != nil {
		d.hub.Stop()
		_ = d.closeBus()
		return nil, fmt.Errorf("failed to create selection engine: %w", err)
	}

	d.highlightClock = selection.NewHighlightClock(d.engine, selection.ClockSampler(clock, cfg.HighlightDecayResolution), clock, cfg.TickInterval, m.Sync)
	d.reconciler = selection.NewReconciler(d.engine, cfg.ReconcileInterval, clock)

	wsHandler := websocket.NewHandler(d.hub, websocket.NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()), d.engine.Replay)

	d.server = httpserver.NewServer(cfg, d.engine, httpserver.Options{
		WebSocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(registry),
		IntentMetrics:    m.Intents,
		Clock:            clock,
		RateLimit:        cfg.APIRateLimit,
		RateBurst:        cfg.APIRateBurst,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "bus", Check: d.transport.Ping},
			{Name: "engine", Check: func(ctx context.Context) error {
				_, err := d.engine.Snapshot(ctx, d.engine.LocalApp())
				return err
			}},
		},
	})

	return d, nil
}

// start launches the background loops and returns once the bus subscription
// is live, so intents published afterwards loop back to this engine. The
// returned context is cancelled when any loop fails.
func (d *daemon) start(ctx context.Context) (context.Context, error) {
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	d.cancel, d.group = cancel, g

	g.Go(func() error {
		if err := d.transport.Start(gctx, d.engine.Handle); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errors.New("bus subscription ended")
		}
		return nil
	})

	g.Go(func() error {
		d.highlightClock.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.reconciler.Start(gctx)
		return nil
	})

	if d.watchable {
		g.Go(func() error {
			return d.directory.Watch(gctx, func(ctx context.Context, join directory.Join) {
				if err := d.engine.Merge(ctx, join.AppID, join.Group); err != nil {
					slog.WarnContext(ctx, "Merge on group join failed", "app_id", join.AppID, "group", join.Group, "error", err)
				}
			})
		})
	}

	timeout := d.clock.NewTimer(subscribeTimeout)
	defer timeout.Stop()

	select {
	case <-d.transport.Ready():
		return gctx, nil
	case <-gctx.Done():
		cancel()
		return nil, fmt.Errorf("failed to subscribe to bus: %w", g.Wait())
	case <-timeout.Chan():
		return nil, fmt.Errorf("bus subscription not confirmed within %v", subscribeTimeout)
	}
}

// shutdown stops serving, then the loops, the engine and the hub, in that
// order. It returns the first error a background loop failed with.
func (d *daemon) shutdown(ctx context.Context) error {
	if err := d.server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	d.reconciler.Stop()
	if d.cancel != nil {
		d.cancel()
	}
	d.engine.Stop()
	d.hub.Stop()

	var loopErr error
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			loopErr = err
		}
	}
	if err := d.closeBus(); err != nil {
		slog.Warn("Failed to close bus", "error", err)
	}
	return loopErr
}

func connectRedis(ctx context.Context, cfg *config.Config, clock clockwork.Clock, m *metrics.RedisMetrics) (*goredis.Client, error) {
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Redis not reachable, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	client, err := retry.Do(ctx, policy, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func loadDirectory(cfg *config.Config) (*directory.Directory, bool, error) {
	dir, err := directory.Load(cfg.DirectoryFile, cfg.TotalApps())
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("No group directory file, every app is ungrouped", "path", cfg.DirectoryFile)
		return directory.Static(cfg.TotalApps()), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load group directory: %w", err)
	}
	return dir, true, nil
}
