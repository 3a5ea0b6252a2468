package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "selectionsync"

// Metrics bundles every metric family the daemon exports.
type Metrics struct {
	Sync      *SyncMetrics
	WebSocket *WebSocketMetrics
	Redis     *RedisMetrics
	Intents   *IntentMetrics
}

// New registers all metric families on reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Sync:      NewSyncMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
		Redis:     NewRedisMetrics(reg),
		Intents:   NewIntentMetrics(reg),
	}
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
