package prepared

import (
	"context"
	"hash/fnv"
	"time"
)

// Store is the durable, globally visible store of persisted queue records.
// Records are keyed by gid and carry an expiry after which the recovery
// sweep considers them orphaned.
type Store interface {
	// Put durably writes |data| under |gid| with the given time-to-live.
	// |queueSize| is stored alongside for observability.
	Put(ctx context.Context, gid string, data []byte, ttl time.Duration, queueSize int) error
	// Get reads the record of |gid|. |ok| is false if no record exists.
	Get(ctx context.Context, gid string) (data []byte, ok bool, err error)
	// Delete removes the record of |gid|. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, gid string) error
	// ScanExpired returns gids of un-flagged records whose expiry has
	// passed as of |now|.
	ScanExpired(ctx context.Context, now time.Time) ([]string, error)
	// MarkCorrupted flags the record of |gid| so later scans skip it while
	// it awaits manual inspection.
	MarkCorrupted(ctx context.Context, gid string) error
}

// Outcome is the resolved fate of a prepared transaction.
type Outcome int

const (
	// OutcomeUnknown means the registry cannot resolve the transaction.
	OutcomeUnknown Outcome = iota
	// OutcomePending means the transaction is still prepared.
	OutcomePending
	// OutcomeCommitted means the transaction durably committed.
	OutcomeCommitted
	// OutcomeRolledBack means the transaction rolled back.
	OutcomeRolledBack
)

// String returns the Outcome's name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCommitted:
		return "committed"
	case OutcomeRolledBack:
		return "rolledBack"
	default:
		return "unknown"
	}
}

// Registry resolves prepared transaction outcomes from the host's own
// prepared-transaction bookkeeping.
type Registry interface {
	Outcome(ctx context.Context, gid string) (Outcome, error)
}

// Locker serializes recovery of a single gid across concurrent sweeps.
type Locker interface {
	// TryLockGID attempts the mutual-exclusion lock of |gid|. On success it
	// returns a release func which the caller must invoke unconditionally,
	// including on error paths.
	TryLockGID(ctx context.Context, gid string) (release func() error, ok bool, err error)
}

// LockKeyForGID hashes |gid| into the int64 keyspace of host advisory locks,
// using FNV-64a. A collision only serializes two unrelated recoveries.
func LockKeyForGID(gid string) int64 {
	var h = fnv.New64a()
	_, _ = h.Write([]byte(gid))
	return int64(h.Sum64())
}
