package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics holds Prometheus metrics for the selection synchronization engine.
type SyncMetrics struct {
	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	PublishFailures   prometheus.Counter
	Ticks             prometheus.Counter
	TicksCoalesced    prometheus.Counter
	HighlightsExpired prometheus.Counter
	Merges            prometheus.Counter
	Reconciles        prometheus.Counter
	CommandQueueDepth prometheus.Gauge
}

// NewSyncMetrics creates and registers sync metrics on the given registry.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "messages_received_total",
			Help:      "Total number of valid broadcast messages applied, by kind.",
		}, []string{"kind"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "messages_dropped_total",
			Help:      "Total number of broadcast messages dropped, by reason.",
		}, []string{"reason"}),
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "messages_published_total",
			Help:      "Total number of broadcast messages published, by kind.",
		}, []string{"kind"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "publish_failures_total",
			Help:      "Total number of failed publish attempts.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "highlight",
			Name:      "ticks_total",
			Help:      "Total number of highlight decay ticks applied.",
		}),
		TicksCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "highlight",
			Name:      "ticks_coalesced_total",
			Help:      "Total number of timer firings skipped because the decay clock had not advanced.",
		}),
		HighlightsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "highlight",
			Name:      "expired_total",
			Help:      "Total number of highlights that decayed, across all slots.",
		}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "merges_total",
			Help:      "Total number of group merges applied.",
		}),
		Reconciles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "reconciles_total",
			Help:      "Total number of full-state sync messages published.",
		}),
		CommandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "command_queue_depth",
			Help:      "Current engine command channel depth.",
		}),
	}

	reg.MustRegister(
		m.MessagesReceived, m.MessagesDropped, m.MessagesPublished, m.PublishFailures,
		m.Ticks, m.TicksCoalesced, m.HighlightsExpired,
		m.Merges, m.Reconciles, m.CommandQueueDepth,
	)
	return m
}
