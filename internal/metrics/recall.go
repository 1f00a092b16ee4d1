package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recall pipeline Prometheus metrics.
var (
	StoreQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "store_queries_total",
			Help:      "Total store queries by store and status",
		},
		[]string{"store", "status"},
	)

	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memfed",
			Name:      "store_query_duration_seconds",
			Help:      "Store query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"store"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "memfed",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per store (0=closed, 1=half-open, 2=open)",
		},
		[]string{"store"},
	)

	BudgetHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "budget_hits_total",
			Help:      "Requests whose fan-out exhausted the aggregate latency budget",
		},
	)

	FusionDedupRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "fusion_dedup_removed_total",
			Help:      "Results merged away by cross-store deduplication",
		},
	)

	FusionResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "fusion_results_total",
			Help:      "Fused results produced, by strategy",
		},
		[]string{"strategy"},
	)

	DiversifyIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memfed",
			Name:      "diversify_iterations",
			Help:      "Iterations per diversification run",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	BundleConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "memfed",
			Name:      "bundle_confidence",
			Help:      "Final bundle confidence distribution",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	FeatureCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "feature_cache_total",
			Help:      "Feature cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	FeatureExtractTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memfed",
			Name:      "feature_extract_total",
			Help:      "Feature extractions by provider and status",
		},
		[]string{"provider", "status"},
	)
)

var recallMetricsRegistered bool

// RegisterRecallMetrics registers recall pipeline metrics. Must be called once from main.
func RegisterRecallMetrics() {
	if recallMetricsRegistered {
		return
	}
	prometheus.MustRegister(StoreQueriesTotal)
	prometheus.MustRegister(StoreQueryDuration)
	prometheus.MustRegister(CircuitState)
	prometheus.MustRegister(BudgetHitsTotal)
	prometheus.MustRegister(FusionDedupRemoved)
	prometheus.MustRegister(FusionResultsTotal)
	prometheus.MustRegister(DiversifyIterations)
	prometheus.MustRegister(BundleConfidence)
	prometheus.MustRegister(FeatureCacheTotal)
	prometheus.MustRegister(FeatureExtractTotal)
	recallMetricsRegistered = true
}
