package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search and classification Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "search_requests_total",
			Help:      "Total number of searches by resolving tier",
		},
		[]string{"tier"},
	)

	SearchEscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "search_escalations_total",
			Help:      "Total number of tier escalations attempted",
		},
		[]string{"to"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assetdex",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds by resolving tier",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"tier"},
	)

	InferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "inference_requests_total",
			Help:      "Total number of inference requests",
		},
		[]string{"model", "operation", "status"},
	)

	InferenceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assetdex",
			Name:      "inference_request_duration_seconds",
			Help:      "Inference request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "operation"},
	)

	InferenceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "inference_errors_total",
			Help:      "Total inference errors by failure code",
		},
		[]string{"model", "operation", "code"},
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "classifications_total",
			Help:      "Classification jobs by outcome",
		},
		[]string{"outcome"}, // "completed" / "failed"
	)

	TelemetryDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "telemetry_dropped_total",
			Help:      "Search log records dropped because the queue was full",
		},
	)

	PermissionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetdex",
			Name:      "permission_cache_total",
			Help:      "Permission cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchEscalationsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(InferenceRequestsTotal)
	prometheus.MustRegister(InferenceRequestDuration)
	prometheus.MustRegister(InferenceErrorsTotal)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(TelemetryDroppedTotal)
	prometheus.MustRegister(PermissionCacheTotal)
	searchMetricsRegistered = true
}
