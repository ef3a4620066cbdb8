// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysisRequests counts analysis requests by terminal state.
	AnalysisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niramay_analysis_requests_total",
		Help: "Analysis requests by terminal state (done, failed).",
	}, []string{"state"})

	// AnalysisDuration observes end-to-end request latency.
	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "niramay_analysis_duration_seconds",
		Help:    "End-to-end analysis request duration.",
		Buckets: prometheus.DefBuckets,
	})

	// Explanations counts per-drug explanation outcomes.
	Explanations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niramay_explanations_total",
		Help: "Per-drug explanation outcomes (generated, degraded, skipped).",
	}, []string{"outcome"})

	// GenerationAttempts counts cascade attempts per model.
	GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niramay_generation_attempts_total",
		Help: "Generation cascade attempts by model and result.",
	}, []string{"model", "result"})

	// EvidenceLookups counts retrieval outcomes including cache tiers.
	EvidenceLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "niramay_evidence_lookups_total",
		Help: "Evidence retrievals by outcome (local_cache, redis_cache, index, empty, error).",
	}, []string{"outcome"})
)
