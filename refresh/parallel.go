package refresh

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// recomputeParallel fans an oversized batch out to a bounded worker pool.
// The batch partitions by entity so that one worker owns all keys of an
// entity, each recomputing within its own host sub-transaction (a property
// of the Recomputer, which scopes its work per calling goroutine). The
// caller blocks until all workers finish or the configured timeout elapses;
// any worker failure cancels the rest and aborts the drain.
//
// This path trades wall-clock time for throughput on very large batches. It
// is gated by Config.ParallelThreshold so ordinary small transactions never
// pay the fan-out cost.
func (s *Service) recomputeParallel(ctx context.Context, batch []Key) ([]Key, error) {
	parallelDrainsTotal.Inc()

	var partitions = make(map[string][]Key)
	for _, key := range batch {
		partitions[key.Entity] = append(partitions[key.Entity], key)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ParallelTimeout)
	defer cancel()

	var group, groupCtx = errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.ParallelWorkers)

	var (
		mu      sync.Mutex
		parents []Key
	)
	for _, keys := range partitions {
		group.Go(func() error {
			var found []Key
			for _, key := range keys {
				var result, err = s.recomputer.RecomputeRow(groupCtx, key)
				if err != nil {
					return errors.WithMessagef(err, "recomputing %s", key)
				}
				recomputesTotal.Inc()
				found = append(found, result.Parents...)
			}
			mu.Lock()
			parents = append(parents, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return parents, nil
}
