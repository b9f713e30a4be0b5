package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics.
var (
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "attempts_total",
			Help:      "Total number of retrieval attempts by outcome",
		},
		[]string{"outcome"}, // "accepted" or a failure kind
	)

	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "queries_total",
			Help:      "Total number of queries by final result",
		},
		[]string{"result"}, // "found" / "exhausted" / "error"
	)

	BackoffRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "backoff_retries_total",
			Help:      "Total number of rate-limited calls retried after a backoff sleep",
		},
		[]string{"service"},
	)

	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "probes_total",
			Help:      "Availability probes by result",
		},
		[]string{"result"}, // "available" / "unavailable"
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "provider_requests_total",
			Help:      "Total number of expansion and search provider requests",
		},
		[]string{"provider", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fetchr",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	ExpansionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "expansion_tokens_total",
			Help:      "Total language model tokens consumed by query expansion",
		},
		[]string{"model", "type"},
	)

	ExpansionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fetchr",
			Name:      "expansion_cache_total",
			Help:      "Expansion cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ExpansionBudgetRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fetchr",
			Name:      "expansion_budget_tokens_remaining",
			Help:      "Expansion tokens left in today's budget, -1 when unlimited",
		},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers Prometheus retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(AttemptsTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(BackoffRetriesTotal)
	prometheus.MustRegister(ProbesTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(ExpansionTokensTotal)
	prometheus.MustRegister(ExpansionCacheTotal)
	prometheus.MustRegister(ExpansionBudgetRemaining)
	retrievalMetricsRegistered = true
}
