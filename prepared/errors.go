package prepared

import "fmt"

// QueueCorruptedError indicates a persisted record failed to deserialize.
// The record is flagged and left in the store for manual inspection rather
// than deleted: silently discarding it would mask the loss of owed refreshes.
type QueueCorruptedError struct {
	GID string
	Err error
}

func (e *QueueCorruptedError) Error() string {
	return fmt.Sprintf("persisted queue of gid %q is corrupted: %v", e.GID, e.Err)
}

func (e *QueueCorruptedError) Unwrap() error { return e.Err }

// AmbiguousError indicates the recovery sweep could not determine whether a
// prepared transaction committed or rolled back. The record is left intact
// for a later sweep.
type AmbiguousError struct {
	GID string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("outcome of prepared transaction %q is unknown", e.GID)
}

// CommittedStaleError indicates the host durably committed a prepared
// transaction but the subsequent view recomputation failed: base data is
// visible while derived entities are stale. Rollback is no longer possible,
// so this must surface distinctly and loudly rather than as an ordinary
// transaction failure.
type CommittedStaleError struct {
	GID string
	Err error
}

func (e *CommittedStaleError) Error() string {
	return fmt.Sprintf("transaction %q committed but view refresh failed (views are stale): %v", e.GID, e.Err)
}

func (e *CommittedStaleError) Unwrap() error { return e.Err }
