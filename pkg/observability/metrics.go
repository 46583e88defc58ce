// Package observability exposes Prometheus metrics and health endpoints for
// the dispatch service.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Selection metrics
	selectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_selections_total",
			Help: "Total number of agent selections",
		},
		[]string{"outcome"}, // selected, fallback, ambiguous
	)

	selectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchboard_selection_duration_seconds",
			Help:    "Agent selection duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Collaboration metrics
	collaborationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_collaborations_total",
			Help: "Total number of collaboration calls",
		},
		[]string{"strategy", "policy", "status"},
	)

	collaborationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_collaboration_duration_seconds",
			Help:    "Collaboration call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// Execution unit metrics
	unitOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_unit_outcomes_total",
			Help: "Terminal states of collaboration execution units",
		},
		[]string{"agent", "state"},
	)

	unitRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_unit_retries_total",
			Help: "Retried execution unit attempts",
		},
		[]string{"agent"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchboard_invocation_duration_seconds",
			Help:    "Single agent invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	initOnce sync.Once
)

// InitMetrics registers the dispatch metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			selectionsTotal,
			selectionDuration,
			collaborationsTotal,
			collaborationDuration,
			unitOutcomesTotal,
			unitRetriesTotal,
			invocationDuration,
		)
	})
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordSelection records one selector call. outcome is "selected",
// "fallback", or "ambiguous".
func RecordSelection(outcome string, duration time.Duration) {
	selectionsTotal.WithLabelValues(outcome).Inc()
	selectionDuration.Observe(duration.Seconds())
}

// RecordCollaboration records one collaboration call. status is "ok" or the
// error class ("policy", "strategy", "timeout").
func RecordCollaboration(strategy, policy, status string, duration time.Duration) {
	collaborationsTotal.WithLabelValues(strategy, policy, status).Inc()
	collaborationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordUnitOutcome records the terminal state of one execution unit and any
// retries it consumed.
func RecordUnitOutcome(agent, state string, attempts int, duration time.Duration) {
	unitOutcomesTotal.WithLabelValues(agent, state).Inc()
	if attempts > 1 {
		unitRetriesTotal.WithLabelValues(agent).Add(float64(attempts - 1))
	}
	invocationDuration.WithLabelValues(agent).Observe(duration.Seconds())
}
