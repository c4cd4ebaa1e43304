package refresh

import (
	"sort"

	"github.com/pkg/errors"
)

// QueueState is the lifecycle state of a TxnQueue.
type QueueState int

const (
	// Idle means no keys are pending.
	Idle QueueState = iota
	// Draining means keys are pending and a drain is owed at transaction end.
	Draining
)

// String returns the state's name.
func (s QueueState) String() string {
	if s == Idle {
		return "Idle"
	}
	return "Draining"
}

// TxnQueue is the deduplicated set of Keys awaiting recomputation within one
// host transaction, together with its savepoint snapshot stack. It is owned
// by the caller's transaction handle and passed explicitly into every engine
// call; it is not safe for concurrent use, matching the single-session
// execution model of a host transaction.
type TxnQueue struct {
	keys       map[Key]struct{}
	savepoints []map[Key]struct{}
}

// NewTxnQueue returns an empty TxnQueue.
func NewTxnQueue() *TxnQueue {
	return &TxnQueue{keys: make(map[Key]struct{})}
}

// Enqueue adds |key| to the queue, returning true if it wasn't already
// present.
func (q *TxnQueue) Enqueue(key Key) bool {
	enqueuesTotal.Inc()
	if _, ok := q.keys[key]; ok {
		return false
	}
	q.keys[key] = struct{}{}
	return true
}

// Len returns the number of distinct pending keys.
func (q *TxnQueue) Len() int { return len(q.keys) }

// State returns Idle if no keys are pending, and Draining otherwise.
func (q *TxnQueue) State() QueueState {
	if len(q.keys) == 0 {
		return Idle
	}
	return Draining
}

// Contains returns whether |key| is pending.
func (q *TxnQueue) Contains(key Key) bool {
	var _, ok = q.keys[key]
	return ok
}

// Keys returns the pending keys, ordered by entity and then primary key.
func (q *TxnQueue) Keys() []Key {
	var out = make([]Key, 0, len(q.keys))
	for key := range q.keys {
		out = append(out, key)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Entity != out[b].Entity {
			return out[a].Entity < out[b].Entity
		}
		return out[a].PK < out[b].PK
	})
	return out
}

// Take removes and returns the current pending set, leaving the queue empty.
// Keys enqueued after Take belong to the caller's next drain iteration.
func (q *TxnQueue) Take() map[Key]struct{} {
	var taken = q.keys
	q.keys = make(map[Key]struct{})
	return taken
}

// Clear discards all pending keys and savepoint snapshots, as on transaction
// abort or a pooled connection's reuse.
func (q *TxnQueue) Clear() {
	q.keys = make(map[Key]struct{})
	q.savepoints = q.savepoints[:0]
}

// PushSavepoint snapshots the current pending set, to be restored if the
// savepoint is rolled back to. Snapshots are full copies: per-transaction
// queues are small and a copy makes rollback an O(1) swap with no aliasing.
func (q *TxnQueue) PushSavepoint() {
	var snapshot = make(map[Key]struct{}, len(q.keys))
	for key := range q.keys {
		snapshot[key] = struct{}{}
	}
	q.savepoints = append(q.savepoints, snapshot)
}

// ReleaseSavepoint discards the innermost snapshot, keeping the live pending
// set: keys enqueued under the savepoint remain owed.
func (q *TxnQueue) ReleaseSavepoint() error {
	if len(q.savepoints) == 0 {
		return errors.New("no savepoint to release")
	}
	q.savepoints = q.savepoints[:len(q.savepoints)-1]
	return nil
}

// RollbackSavepoint restores the innermost snapshot as the live pending set,
// discarding keys enqueued after the savepoint was taken.
func (q *TxnQueue) RollbackSavepoint() error {
	if len(q.savepoints) == 0 {
		return errors.New("no savepoint to roll back to")
	}
	q.keys = q.savepoints[len(q.savepoints)-1]
	q.savepoints = q.savepoints[:len(q.savepoints)-1]
	return nil
}

// SavepointDepth returns the current savepoint nesting depth.
func (q *TxnQueue) SavepointDepth() int { return len(q.savepoints) }
