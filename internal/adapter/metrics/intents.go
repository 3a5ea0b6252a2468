package metrics

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Intent labels, matching the wire kinds the API publishes.
const (
	IntentSelect     = "select"
	IntentHighlight  = "highlight"
	IntentResetGroup = "resetGroup"
	IntentResetAll   = "resetAll"
	IntentState      = "state"
	IntentUnknown    = "unknown"
)

var intentByRoute = map[string]string{
	"/api/selection": IntentSelect,
	"/api/highlight": IntentHighlight,
	"/api/reset":     IntentResetGroup,
	"/api/reset-all": IntentResetAll,
	"/api/state":     IntentState,
}

// IntentForRoute maps an API route to the intent it carries.
func IntentForRoute(route string) string {
	if intent, ok := intentByRoute[route]; ok {
		return intent
	}
	return IntentUnknown
}

// IntentMetrics tracks operator intents arriving over the REST API.
type IntentMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewIntentMetrics(reg prometheus.Registerer) *IntentMetrics {
	m := &IntentMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "intents_total",
			Help:      "Intents received over the API, by kind and outcome.",
		}, []string{"intent", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "intent_duration_seconds",
			Help:      "Time from request to publish (or state read), by kind.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"intent"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "intents_in_flight",
			Help:      "Intents currently being handled.",
		}),
	}

	reg.MustRegister(m.Requests, m.Latency, m.InFlight)
	return m
}

// Outcome buckets a response status: published intents answer 202, state
// reads 200, rate-limited callers 429.
func Outcome(status int) string {
	switch {
	case status == http.StatusAccepted:
		return "published"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "failed"
	case status >= 400:
		return "rejected"
	default:
		return "ok"
	}
}

// Middleware records every /api request by intent. Mount it ahead of the
// error handling middleware so the status it reads is the rendered one.
func (m *IntentMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.HasPrefix(c.Path(), "/api/") {
				return next(c)
			}
			intent := IntentForRoute(c.Path())

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			timer := prometheus.NewTimer(m.Latency.WithLabelValues(intent))
			err := next(c)
			timer.ObserveDuration()

			m.Requests.WithLabelValues(intent, Outcome(c.Response().Status)).Inc()
			return err
		}
	}
}
