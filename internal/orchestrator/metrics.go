package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siteagent",
		Subsystem: "orchestrator",
		Name:      "runs_total",
		Help:      "Completed orchestration runs by outcome.",
	}, []string{"outcome"})

	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "siteagent",
		Subsystem: "orchestrator",
		Name:      "rounds_total",
		Help:      "Tool-executing rounds across all runs.",
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "siteagent",
		Subsystem: "orchestrator",
		Name:      "tool_calls_total",
		Help:      "Tool calls dispatched to the executor, by tool and status.",
	}, []string{"tool", "status"})

	llmRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "siteagent",
		Subsystem: "orchestrator",
		Name:      "llm_request_duration_seconds",
		Help:      "Latency of Responses API calls.",
		Buckets:   prometheus.DefBuckets,
	})
)
