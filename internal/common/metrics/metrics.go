// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_provider_searches_total",
			Help: "Total number of search provider calls",
		},
		[]string{"depth", "outcome"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_completion_calls_total",
			Help: "Total number of completion provider calls",
		},
		[]string{"purpose", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "deepsearch_pipeline_duration_seconds",
			Help: "Duration of one deep search invocation in seconds",
		},
		[]string{"strategy"},
	)

	AgentRounds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepsearch_agent_rounds",
			Help:    "Number of ReAct rounds executed per question",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"strategy"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_cache_requests_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)
)
