package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for observer WebSocket connections.
type WebSocketMetrics struct {
	ActiveConnections  prometheus.Gauge
	EventsPublished    prometheus.Counter
	SlowClientsEvicted prometheus.Counter
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of UI clients listening for observer events.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "events_published_total",
			Help:      "Total number of observer events fanned out to UI clients.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of UI clients disconnected because their send buffer was full.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.EventsPublished, m.SlowClientsEvicted)
	return m
}
