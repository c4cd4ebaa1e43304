// Package refresh implements the refresh engine of the view-maintenance
// system: the per-transaction queue of rows awaiting recomputation, the
// savepoint snapshot stack, the fixpoint propagation loop which drains the
// queue at pre-commit, and the dispatcher which routes host transaction
// lifecycle events to those mechanisms.
//
// The engine holds no hidden per-connection state: every operation takes an
// explicit TxnQueue owned by the caller's transaction handle. The host's
// lifecycle callbacks reduce to a single enumerated Event type consumed by
// Service.Dispatch, which keeps the state machine testable without a host.
package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_refresh_enqueues_total",
		Help: "Cumulative number of refresh keys enqueued (before deduplication).",
	})
	recomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_refresh_recomputes_total",
		Help: "Cumulative number of entity rows recomputed.",
	})
	drainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matview_refresh_drains_total",
		Help: "Cumulative number of queue drains, by status.",
	}, []string{"status"})
	drainIterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_refresh_drain_iterations_total",
		Help: "Cumulative number of propagation iterations across all drains.",
	})
	drainDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "matview_refresh_drain_duration_seconds",
		Help: "Duration of queue drains, including cascaded recomputation.",
	})
	parallelDrainsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_refresh_parallel_drains_total",
		Help: "Cumulative number of drain iterations which fanned out to the worker pool.",
	})
	depthExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_refresh_depth_exceeded_total",
		Help: "Cumulative number of drains aborted by the propagation depth breaker.",
	})
)

// Keys for drain status metrics.
const (
	statusOK   = "ok"
	statusFail = "fail"
)
