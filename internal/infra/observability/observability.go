// Package observability registers the Prometheus metrics for the voting
// engine. Metrics are exposed through the API server's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Vote Metrics ───────────────────────────────────────────────────────────

// VotesProcessed counts vote submissions by source and result.
var VotesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crossroads",
	Subsystem: "votes",
	Name:      "processed_total",
	Help:      "Total vote submissions by source and result.",
}, []string{"source", "result"})

// DuplicateRejections counts votes rejected as duplicates.
var DuplicateRejections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crossroads",
	Subsystem: "votes",
	Name:      "duplicate_rejections_total",
	Help:      "Total votes rejected because the user already voted on the scenario.",
})

// ─── Close Metrics ──────────────────────────────────────────────────────────

// CloseDuration tracks how long scenario close processing takes.
var CloseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "crossroads",
	Subsystem: "close",
	Name:      "duration_seconds",
	Help:      "Scenario close processing duration in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
})

// FanoutFailures counts individual per-user outcome updates that failed
// during close fan-out. The batch itself never aborts.
var FanoutFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crossroads",
	Subsystem: "close",
	Name:      "fanout_failures_total",
	Help:      "Total per-user outcome updates that failed during close fan-out.",
})

// ─── Balance Metrics ────────────────────────────────────────────────────────

// BalanceAttempts tracks simulation rounds used per balancing run.
var BalanceAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "crossroads",
	Subsystem: "balance",
	Name:      "attempts",
	Help:      "Simulation rounds used per scenario balancing run.",
	Buckets:   []float64{1, 2, 3},
})

// ─── Scenario Metrics ───────────────────────────────────────────────────────

// ActiveScenario is 1 while a scenario is open for voting, 0 otherwise.
var ActiveScenario = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crossroads",
	Subsystem: "scenario",
	Name:      "active",
	Help:      "Whether a scenario is currently open for voting (1) or not (0).",
})
