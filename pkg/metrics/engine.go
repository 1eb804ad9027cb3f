package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Requests through the recommendation pipeline by status code
	RecommendationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reco_requests_total",
		Help: "Recommendation requests by result code",
	}, []string{"code"})

	// Wall time per pipeline stage
	StageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reco_stage_latency_seconds",
		Help:    "Latency of each recommendation pipeline stage",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"stage"})

	// Cache lookups by the level that answered, "miss" otherwise
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reco_cache_lookups_total",
		Help: "Cache lookups by answering level",
	}, []string{"level"})

	DeduplicatedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reco_deduplicated_requests_total",
		Help: "Requests served from an identical in-flight computation",
	})

	// 0 closed, 1 open, 2 half-open
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reco_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"breaker"})

	RateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reco_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	})

	AlgorithmFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reco_algorithm_failures_total",
		Help: "Scoring algorithm failures that fell back to neutral scores",
	}, []string{"algorithm"})

	DegradedExplanations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reco_explanations_degraded_total",
		Help: "Explanations replaced by the degraded fallback",
	})

	// Count of feedback events by type and experiment variant
	FeedbackEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reco_feedback_events_total",
		Help: "Feedback events by type and variant",
	}, []string{"type", "variant"})

	AnalyticsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reco_analytics_events_dropped_total",
		Help: "Usage events dropped because the analytics queue was full",
	})
)

func Init() {
	prometheus.MustRegister(
		RecommendationRequests,
		StageLatency,
		CacheLookups,
		DeduplicatedRequests,
		CircuitBreakerState,
		RateLimitRejections,
		AlgorithmFailures,
		DegradedExplanations,
		FeedbackEvents,
		AnalyticsDropped,
	)
}
