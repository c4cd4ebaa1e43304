// Package prepared persists refresh queues across the prepare / commit
// phases of two-phase commit, and recovers queues orphaned by process faults.
// At prepare time a transaction's queue is serialized to a durable record
// keyed by the global transaction id (gid); commit-prepared restores and
// drains it, rollback-prepared discards it, and a recovery sweep drives
// records whose transactions finished without either.
package prepared

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_prepared_records_persisted_total",
		Help: "Cumulative number of refresh queues persisted at prepare time.",
	})
	recordsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matview_prepared_records_consumed_total",
		Help: "Cumulative number of persisted records consumed, by path.",
	}, []string{"path"})
	recordsCorruptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_prepared_records_corrupted_total",
		Help: "Cumulative number of persisted records which failed to deserialize.",
	})
	recoverySweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matview_prepared_recovery_sweeps_total",
		Help: "Cumulative number of recovery sweeps run.",
	})
	recoveryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matview_prepared_recovery_outcomes_total",
		Help: "Cumulative number of per-gid recovery resolutions, by outcome.",
	}, []string{"outcome"})
)
