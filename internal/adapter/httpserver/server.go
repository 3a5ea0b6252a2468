package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/selectionsync/internal/adapter/metrics"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/platform/config"
)

// selectionEngine is the part of the engine the API drives.
type selectionEngine interface {
	LocalApp() int
	SetSelected(ctx context.Context, index int, selected bool) error
	Highlight(ctx context.Context, index int) error
	ResetGroup(ctx context.Context, group int, contextType domain.ApplicationType) error
	ResetAll(ctx context.Context) error
	Snapshot(ctx context.Context, appID int) (domain.SlotSnapshot, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	engine           selectionEngine
	websocketHandler http.Handler
	metricsHandler   http.Handler
	intentMetrics    *metrics.IntentMetrics
	rateLimit        float64
	rateBurst        int

	healthChecks []HealthCheck
	startTime    time.Time
}

// Options carries the optional collaborators of a Server.
type Options struct {
	WebSocketHandler http.Handler
	MetricsHandler   http.Handler
	IntentMetrics    *metrics.IntentMetrics
	HealthChecks     []HealthCheck
	Clock            clockwork.Clock

	// RateLimit caps published intents per second per client IP. Zero disables it.
	RateLimit float64
	RateBurst int
}

func NewServer(cfg *config.Config, engine selectionEngine, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:             e,
		config:           cfg,
		clock:            clock,
		engine:           engine,
		websocketHandler: opts.WebSocketHandler,
		metricsHandler:   opts.MetricsHandler,
		intentMetrics:    opts.IntentMetrics,
		rateLimit:        opts.RateLimit,
		rateBurst:        opts.RateBurst,
		healthChecks:     opts.HealthChecks,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
