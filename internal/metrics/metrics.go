// Package metrics defines the Prometheus instruments for the research
// pipeline and its hosting shell.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	StagesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_stages_executed_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepresearch_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepresearch_runs_completed_total",
			Help: "Total number of research runs completed",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_run_duration_seconds",
			Help:    "Full pipeline run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Retrieval metrics
	RetrievalPasses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_retrieval_passes_total",
			Help: "Total number of retrieval passes executed",
		},
	)

	DocumentsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_documents_fetched_total",
			Help: "Total number of evidence documents accepted",
		},
	)

	SearchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_search_errors_total",
			Help: "Total number of swallowed search failures",
		},
	)

	FetchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_fetch_errors_total",
			Help: "Total number of swallowed fetch failures",
		},
	)

	// Generation capability metrics
	LLMCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_llm_calls_total",
			Help: "Total number of generation capability calls",
		},
	)

	LLMErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_llm_errors_total",
			Help: "Total number of failed generation capability calls",
		},
	)

	LLMLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deepresearch_llm_latency_seconds",
			Help:    "Generation capability call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_sessions_created_total",
			Help: "Total number of research sessions created",
		},
	)

	CheckpointsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deepresearch_checkpoints_saved_total",
			Help: "Total number of session checkpoints persisted",
		},
	)
)
