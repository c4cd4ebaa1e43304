package prepared

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.matview.dev/core/depgraph"
)

// ProcessFunc drains a recovered queue: it recomputes |keys| within a new
// host transaction, with full propagation semantics. It's supplied by the
// refresh engine.
type ProcessFunc func(ctx context.Context, keys []depgraph.Key) error

// Sweeper recovers orphaned queue records: persisted queues whose prepared
// transactions finished (or died) without commit-prepared or
// rollback-prepared processing.
type Sweeper struct {
	Manager  *Manager
	Registry Registry
	Locker   Locker
	Process  ProcessFunc
}

// SweepStats summarizes one recovery sweep.
type SweepStats struct {
	// Scanned counts expired records considered.
	Scanned int
	// Recovered counts records drained after a resolved commit.
	Recovered int
	// Discarded counts records deleted after a resolved rollback.
	Discarded int
	// Ambiguous counts records left intact pending a resolvable outcome.
	Ambiguous int
	// Corrupted counts records flagged for manual inspection.
	Corrupted int
	// Skipped counts records locked by a concurrent sweep or still pending.
	Skipped int
	// Failed counts records whose processing failed; they remain for the
	// next sweep.
	Failed int
}

// Sweep finds expired records and drives each through commit, rollback, or
// deferral according to the host's prepared-transaction registry. Each gid
// is guarded by the Locker so concurrent sweeps never double-process a
// record; a held lock is always released, including on error. Per-record
// failures are logged and counted rather than aborting the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	recoverySweepsTotal.Inc()

	var stats SweepStats
	var gids, err = s.Manager.Store().ScanExpired(ctx, time.Now())
	if err != nil {
		return stats, errors.WithMessage(err, "scanning expired records")
	}

	for _, gid := range gids {
		stats.Scanned++
		if err = s.recoverGID(ctx, gid, &stats); err != nil {
			stats.Failed++
			log.WithFields(log.Fields{"gid": gid, "err": err}).
				Error("recovery of prepared transaction failed")
		}
	}
	return stats, nil
}

func (s *Sweeper) recoverGID(ctx context.Context, gid string, stats *SweepStats) error {
	var release, locked, err = s.Locker.TryLockGID(ctx, gid)
	if err != nil {
		return errors.WithMessage(err, "acquiring recovery lock")
	} else if !locked {
		stats.Skipped++ // A concurrent sweep owns this gid.
		return nil
	}
	defer func() {
		if rErr := release(); rErr != nil {
			log.WithFields(log.Fields{"gid": gid, "err": rErr}).
				Warn("failed to release recovery lock")
		}
	}()

	var outcome Outcome
	if outcome, err = s.Registry.Outcome(ctx, gid); err != nil {
		return errors.WithMessage(err, "resolving transaction outcome")
	}
	recoveryOutcomesTotal.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case OutcomePending:
		// The host may yet finish the transaction itself.
		stats.Skipped++
		return nil

	case OutcomeRolledBack:
		if err = s.Manager.Discard(ctx, gid); err != nil {
			return err
		}
		stats.Discarded++
		log.WithField("gid", gid).Info("discarded record of rolled-back transaction")
		return nil

	case OutcomeCommitted:
		var keys []depgraph.Key
		var ok bool
		if keys, ok, err = s.Manager.Restore(ctx, gid); err != nil {
			var corrupt *QueueCorruptedError
			if errors.As(err, &corrupt) {
				stats.Corrupted++
				log.WithField("gid", gid).
					Error("persisted queue is corrupted; flagged for manual inspection")
				return nil
			}
			return err
		} else if !ok {
			return nil // Raced with direct commit-prepared processing.
		}
		if err = s.Process(ctx, keys); err != nil {
			// The data committed long ago; refresh remains owed.
			return &CommittedStaleError{GID: gid, Err: err}
		}
		if err = s.Manager.Consume(ctx, gid); err != nil {
			return err
		}
		stats.Recovered++
		log.WithFields(log.Fields{"gid": gid, "keys": len(keys)}).
			Info("recovered refresh queue of committed transaction")
		return nil

	default:
		stats.Ambiguous++
		log.WithField("gid", gid).Warn("prepared transaction outcome is ambiguous; record retained")
		return nil
	}
}
