package refresh

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// PropagationDepthExceededError indicates the propagation loop failed to
// reach a fixpoint within the configured iteration bound. It is a runtime
// circuit breaker, distinct from the static DAG validation of package
// depgraph: it guards against configuration drift or bugs which produce a
// runtime-only cycle of discovered parents.
type PropagationDepthExceededError struct {
	// Processed counts keys recomputed before the breaker tripped.
	Processed int
	// Max is the configured iteration bound.
	Max int
}

func (e *PropagationDepthExceededError) Error() string {
	return fmt.Sprintf("propagation exceeded %d iterations (%d keys processed)", e.Max, e.Processed)
}

// drain runs the propagation loop over |txn| to its fixpoint. Each iteration
// takes ownership of the pending set, orders it by the dependency graph,
// recomputes each not-yet-processed key, and folds newly discovered parent
// keys (plus any keys enqueued by host triggers during recomputation) into
// the next iteration's pending set. Any recompute failure aborts the whole
// drain: the host transaction fails rather than committing partially
// refreshed state.
func (s *Service) drain(ctx context.Context, txn *TxnQueue) error {
	if txn.State() == Idle {
		return nil
	}
	var timer = prometheus.NewTimer(drainDurationSeconds)
	defer timer.ObserveDuration()

	var graph, err = s.catalog.Graph.Load(ctx)
	if err != nil {
		drainsTotal.WithLabelValues(statusFail).Inc()
		return err
	}

	var (
		processed  = make(map[Key]struct{})
		pending    = txn.Take()
		iterations = 0
	)
	for iteration := 1; len(pending) != 0; iteration++ {
		if iteration > s.cfg.MaxPropagationDepth {
			depthExceededTotal.Inc()
			drainsTotal.WithLabelValues(statusFail).Inc()
			return &PropagationDepthExceededError{
				Processed: len(processed),
				Max:       s.cfg.MaxPropagationDepth,
			}
		}
		iterations++
		drainIterationsTotal.Inc()

		var batch []Key
		for _, key := range graph.SortKeys(keySlice(pending)) {
			if _, ok := processed[key]; ok {
				continue
			}
			processed[key] = struct{}{}
			batch = append(batch, key)
		}

		var parents []Key
		if s.cfg.ParallelThreshold > 0 && len(batch) >= s.cfg.ParallelThreshold {
			parents, err = s.recomputeParallel(ctx, batch)
		} else {
			parents, err = s.recomputeBatch(ctx, batch)
		}
		if err != nil {
			drainsTotal.WithLabelValues(statusFail).Inc()
			return err
		}

		log.WithFields(log.Fields{
			"iteration": iteration,
			"keys":      len(batch),
			"parents":   len(parents),
		}).Debug("completed propagation iteration")

		// Keys enqueued by triggers during recomputation belong to the next
		// iteration, as do discovered parents not already processed.
		pending = txn.Take()
		for _, parent := range parents {
			if _, ok := processed[parent]; !ok {
				pending[parent] = struct{}{}
			}
		}
	}
	drainsTotal.WithLabelValues(statusOK).Inc()

	log.WithFields(log.Fields{
		"processed":  len(processed),
		"iterations": iterations,
	}).Info("drained refresh queue")
	return nil
}

// recomputeBatch serially recomputes |batch|, returning all discovered
// parent keys.
func (s *Service) recomputeBatch(ctx context.Context, batch []Key) ([]Key, error) {
	var parents []Key
	for _, key := range batch {
		var result, err = s.recomputer.RecomputeRow(ctx, key)
		if err != nil {
			return nil, errors.WithMessagef(err, "recomputing %s", key)
		}
		recomputesTotal.Inc()
		parents = append(parents, result.Parents...)
	}
	return parents, nil
}

func keySlice(set map[Key]struct{}) []Key {
	var out = make([]Key, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	return out
}
