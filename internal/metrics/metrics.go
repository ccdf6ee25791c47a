package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "fincortex"

// Pipeline Prometheus metrics.
var (
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of language model calls",
		},
		[]string{"stage", "status"},
	)

	LLMCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 90},
		},
		[]string{"stage"},
	)

	StageFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_fallbacks_total",
			Help:      "Stage outputs replaced by a fallback value",
		},
		[]string{"stage", "kind"},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Number of filing chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)
)

func init() {
	prometheus.MustRegister(LLMCallsTotal)
	prometheus.MustRegister(LLMCallDuration)
	prometheus.MustRegister(StageFallbacksTotal)
	prometheus.MustRegister(RetrievedChunks)
	prometheus.MustRegister(EmbeddingRequestsTotal)
}

// Fallback records a stage result that was replaced by its fallback text.
func Fallback(stage, kind string) {
	StageFallbacksTotal.WithLabelValues(stage, kind).Inc()
}
