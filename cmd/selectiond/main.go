package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/platform/config"
	"github.com/pscheid92/selectionsync/internal/platform/logging"
	"github.com/pscheid92/selectionsync/internal/platform/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// runGracefulShutdown tears the daemon down on SIGINT/SIGTERM or when a
// background loop fails. The returned channel yields the loop error, if any.
func runGracefulShutdown(ctx context.Context, d *daemon) <-chan error {
	done := make(chan error, 1)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			slog.Info("Shutdown signal received, cleaning up...")
		case <-ctx.Done():
			slog.Error("Background loop failed, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done <- d.shutdown(shutdownCtx)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, cfg.AppID)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String(), "total_apps", cfg.TotalApps())

	d, err := newDaemon(context.Background(), cfg, clock)
	if err != nil {
		slog.Error("Failed to set up daemon", "error", err)
		os.Exit(1)
	}

	runCtx, err := d.start(context.Background())
	if err != nil {
		slog.Error("Failed to start background loops", "error", err)
		_ = d.shutdown(context.Background())
		os.Exit(1)
	}

	done := runGracefulShutdown(runCtx, d)

	if err := d.server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	if err := <-done; err != nil {
		slog.Error("Background loop stopped with error", "error", err)
		os.Exit(1)
	}
}
