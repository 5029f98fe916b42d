package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Event metrics
	EventsProcessed *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	ApplyDuration   prometheus.Histogram

	// Dispatcher metrics
	ActiveClients    prometheus.Gauge
	ClientsRecovered prometheus.Counter
	ClientsEvicted   prometheus.Counter
	Chargebacks      prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Event metrics
		EventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_events_total",
				Help: "Total events applied by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		EventsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_events_rejected_total",
				Help: "Total rejected events by reason",
			},
			[]string{"reason"},
		),
		ApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paymentsengine_apply_duration_seconds",
			Help:    "Duration of applying one event including persistence",
			Buckets: prometheus.DefBuckets,
		}),

		// Dispatcher metrics
		ActiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paymentsengine_active_clients",
			Help: "Current number of running client workers",
		}),
		ClientsRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentsengine_clients_recovered_total",
			Help: "Client workers started from a persisted snapshot",
		}),
		ClientsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentsengine_clients_evicted_total",
			Help: "Client workers stopped to bound the active set",
		}),
		Chargebacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentsengine_chargebacks_total",
			Help: "Total chargebacks applied",
		}),

		// Store metrics
		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_store_operations_total",
				Help: "Total ledger store operations",
			},
			[]string{"driver", "operation"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paymentsengine_store_duration_seconds",
				Help:    "Ledger store operation duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"driver", "operation"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_store_errors_total",
				Help: "Total ledger store errors",
			},
			[]string{"driver", "operation"},
		),

		// Cache metrics
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentsengine_snapshot_cache_hits_total",
			Help: "Snapshot cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentsengine_snapshot_cache_misses_total",
			Help: "Snapshot cache misses",
		}),
		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_snapshot_cache_errors_total",
				Help: "Snapshot cache errors",
			},
			[]string{"operation"},
		),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paymentsengine_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paymentsengine_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}
