package refresh

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.matview.dev/core/catalog"
	"go.matview.dev/core/depgraph"
	"go.matview.dev/core/prepared"
)

// Config parameterizes a Service. Zero values select defaults.
type Config struct {
	// MaxPropagationDepth bounds propagation iterations per drain
	// (default 100).
	MaxPropagationDepth int
	// ParallelThreshold is the batch size at and above which a drain
	// iteration fans out to the worker pool. Zero disables the parallel
	// path entirely.
	ParallelThreshold int
	// ParallelWorkers bounds the worker pool (default 4).
	ParallelWorkers int
	// ParallelTimeout bounds one parallel fan-out (default 5m).
	ParallelTimeout time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxPropagationDepth == 0 {
		cfg.MaxPropagationDepth = 100
	}
	if cfg.ParallelWorkers == 0 {
		cfg.ParallelWorkers = 4
	}
	if cfg.ParallelTimeout == 0 {
		cfg.ParallelTimeout = 5 * time.Minute
	}
	return cfg
}

// Service is the refresh engine: it connects the metadata catalog, the
// host's recompute primitive, and (optionally) the prepared-transaction
// record store, and consumes host lifecycle Events on behalf of TxnQueues
// owned by the host's transaction handles.
type Service struct {
	catalog    *catalog.Catalog
	recomputer Recomputer
	records    *prepared.Manager // Nil if 2PC is not configured.
	cfg        Config
}

// NewService returns a Service over the given collaborators. |records| may
// be nil, in which case Prepare / CommitPrepared / RollbackPrepared events
// fail.
func NewService(cat *catalog.Catalog, recomputer Recomputer, records *prepared.Manager, cfg Config) *Service {
	return &Service{
		catalog:    cat,
		recomputer: recomputer,
		records:    records,
		cfg:        cfg.withDefaults(),
	}
}

// OnRowChange enqueues the refresh key of a changed base table row. It's
// called by the host's row-change notification, once per affected row, and
// is a no-op for untracked tables.
func (s *Service) OnRowChange(ctx context.Context, txn *TxnQueue, table string, pk int64) error {
	var entity, ok, err = s.catalog.Lookup.EntityForTable(ctx, table)
	if err != nil {
		return errors.WithMessagef(err, "resolving entity of table %q", table)
	} else if !ok {
		return nil
	}
	txn.Enqueue(Key{Entity: entity, PK: pk})
	return nil
}

// EnqueueKey directly enqueues a refresh Key, for callers which already know
// the entity.
func (s *Service) EnqueueKey(txn *TxnQueue, key Key) { txn.Enqueue(key) }

// Dispatch routes one host lifecycle Event. It is the engine's single entry
// point for transaction-end, 2PC, and savepoint processing.
func (s *Service) Dispatch(ctx context.Context, txn *TxnQueue, event Event) error {
	switch event.Kind {
	case Begin:
		// Reset defensively: a pooled connection may reuse this context
		// without having reached a terminal event last time.
		txn.Clear()
		return nil

	case PreCommit:
		return s.drain(ctx, txn)

	case Commit, Abort:
		// PreCommit already drained (Commit), or the host rolled back and
		// no refresh is owed (Abort).
		txn.Clear()
		return nil

	case Prepare:
		if s.records == nil {
			return errors.New("two-phase commit requires a record store")
		}
		var depth = txn.SavepointDepth()
		var keys = sortedKeys(txn.Take())
		txn.Clear() // Drop savepoint snapshots; the transaction is prepared.
		return s.records.Persist(ctx, event.GID, keys, depth)

	case CommitPrepared:
		// The host's durable commit of |event.GID| has already happened:
		// this event must only be dispatched after it, so that entities
		// never reflect writes the host hasn't committed.
		return s.commitPrepared(ctx, event.GID)

	case RollbackPrepared:
		if s.records == nil {
			return errors.New("two-phase commit requires a record store")
		}
		return s.records.Discard(ctx, event.GID)

	case SavepointStart:
		if err := checkSavepointDepth(event, txn.SavepointDepth()+1); err != nil {
			return err
		}
		txn.PushSavepoint()
		return nil
	case SavepointRelease:
		if err := checkSavepointDepth(event, txn.SavepointDepth()); err != nil {
			return err
		}
		return txn.ReleaseSavepoint()
	case SavepointRollback:
		if err := checkSavepointDepth(event, txn.SavepointDepth()); err != nil {
			return err
		}
		return txn.RollbackSavepoint()

	default:
		return errors.Errorf("unknown event %v", event.Kind)
	}
}

func (s *Service) commitPrepared(ctx context.Context, gid string) error {
	if s.records == nil {
		return errors.New("two-phase commit requires a record store")
	}
	var keys, ok, err = s.records.Restore(ctx, gid)
	if err != nil {
		return err
	} else if !ok {
		return nil // The prepared transaction enqueued nothing.
	}
	if err = s.ProcessRecovered(ctx, keys); err != nil {
		// The host commit already succeeded; rollback is impossible.
		return &prepared.CommittedStaleError{GID: gid, Err: err}
	}
	return s.records.Consume(ctx, gid)
}

// ProcessRecovered drains |keys| restored from a persisted record, with full
// propagation semantics, in a fresh queue context. It also serves as the
// prepared.Sweeper's ProcessFunc.
func (s *Service) ProcessRecovered(ctx context.Context, keys []depgraph.Key) error {
	var txn = NewTxnQueue()
	for _, key := range keys {
		txn.Enqueue(key)
	}
	return s.drain(ctx, txn)
}

// InvalidateMetadata clears the catalog caches. The host's entity create and
// drop notifications must call it before any dependent transaction proceeds.
func (s *Service) InvalidateMetadata() {
	s.catalog.Invalidate()
	log.Info("invalidated metadata caches")
}

// QueueStats is a read-only summary of a TxnQueue.
type QueueStats struct {
	// Size is the number of distinct pending keys.
	Size int `json:"size"`
	// Entities are the distinct entities with pending keys, sorted.
	Entities []string `json:"entities"`
	// SavepointDepth is the current savepoint nesting depth.
	SavepointDepth int `json:"savepointDepth"`
}

// QueueStats returns stats of |txn|.
func (s *Service) QueueStats(txn *TxnQueue) QueueStats {
	var seen = make(map[string]struct{})
	for _, key := range txn.Keys() {
		seen[key.Entity] = struct{}{}
	}
	var entities = make([]string, 0, len(seen))
	for entity := range seen {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	return QueueStats{
		Size:           txn.Len(),
		Entities:       entities,
		SavepointDepth: txn.SavepointDepth(),
	}
}

// CacheStats returns stats of the catalog caches.
func (s *Service) CacheStats() catalog.Stats { return s.catalog.Stats() }

// GraphSnapshot returns a read-only snapshot of the current dependency
// graph, loading it if required.
func (s *Service) GraphSnapshot(ctx context.Context) (depgraph.Snapshot, error) {
	var graph, err = s.catalog.Graph.Load(ctx)
	if err != nil {
		return depgraph.Snapshot{}, err
	}
	return graph.Snapshot(), nil
}

// checkSavepointDepth validates a host-reported savepoint depth against the
// depth the queue expects for the event. A zero Depth means the host did not
// report one and is accepted as-is.
func checkSavepointDepth(event Event, want int) error {
	if event.Depth != 0 && event.Depth != want {
		return errors.Errorf("%v depth mismatch: host reports %d, queue expects %d",
			event.Kind, event.Depth, want)
	}
	return nil
}

func sortedKeys(set map[Key]struct{}) []Key {
	var out = keySlice(set)
	sort.Slice(out, func(a, b int) bool {
		if out[a].Entity != out[b].Entity {
			return out[a].Entity < out[b].Entity
		}
		return out[a].PK < out[b].PK
	})
	return out
}
