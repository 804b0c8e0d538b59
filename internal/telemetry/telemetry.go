// Package telemetry exposes Prometheus metrics for the feedguard agent.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Classification metrics.
var (
	// PredictionsTotal counts resolved link verdicts by source and outcome.
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedguard_predictions_total",
		Help: "Link verdicts resolved, by source (cache, batch, single, failopen) and outcome",
	}, []string{"source", "outcome"})

	// BatchFallbacks counts batch endpoint failures that degraded to per-link calls.
	BatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedguard_batch_fallbacks_total",
		Help: "Batch classification failures that fell back to per-link requests",
	})
)

// Post state metrics.
var (
	// PostTransitions counts state machine transitions by target state.
	PostTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedguard_post_transitions_total",
		Help: "Post state machine transitions, by target state",
	}, []string{"to"})
)

// Outbox metrics.
var (
	// OutboxDepth tracks the current queue depth per outbox queue.
	OutboxDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feedguard_outbox_depth",
		Help: "Items currently buffered, by queue",
	}, []string{"queue"})

	// OutboxFlushed counts items acknowledged by the remote endpoint.
	OutboxFlushed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedguard_outbox_flushed_total",
		Help: "Items successfully flushed, by queue",
	}, []string{"queue"})

	// OutboxFlushFailures counts failed flush attempts.
	OutboxFlushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedguard_outbox_flush_failures_total",
		Help: "Flush attempts that failed and left the batch queued, by queue",
	}, []string{"queue"})
)

// Graph metrics.
var (
	// GraphWriteFailures counts swallowed graph store errors.
	GraphWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedguard_graph_write_failures_total",
		Help: "Interaction graph writes that failed and were dropped",
	})
)

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
