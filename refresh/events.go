package refresh

import "fmt"

// EventKind enumerates host transaction lifecycle events consumed by
// Service.Dispatch. Modeling host callbacks as one explicit event type keeps
// the engine's state machine inspectable and testable without a live host.
type EventKind int

const (
	// Begin marks the start of a transaction. It clears any state leaked by
	// a pooled connection whose previous transaction never reached a
	// terminal event.
	Begin EventKind = iota
	// PreCommit fires before the host commits; it drains the queue to a
	// fixpoint. A drain failure fails the host commit.
	PreCommit
	// Commit fires after a successful host commit.
	Commit
	// Abort fires on transaction rollback; pending keys are discarded.
	Abort
	// Prepare fires when the transaction prepares under 2PC; the queue is
	// persisted under Event.GID and cleared.
	Prepare
	// CommitPrepared fires after the host has durably committed the prepared
	// transaction identified by Event.GID.
	CommitPrepared
	// RollbackPrepared fires when the prepared transaction identified by
	// Event.GID is rolled back.
	RollbackPrepared
	// SavepointStart fires on savepoint creation.
	SavepointStart
	// SavepointRelease fires when a savepoint is released (sub-commit).
	SavepointRelease
	// SavepointRollback fires on rollback to a savepoint.
	SavepointRollback
)

// String returns the EventKind's name.
func (k EventKind) String() string {
	switch k {
	case Begin:
		return "Begin"
	case PreCommit:
		return "PreCommit"
	case Commit:
		return "Commit"
	case Abort:
		return "Abort"
	case Prepare:
		return "Prepare"
	case CommitPrepared:
		return "CommitPrepared"
	case RollbackPrepared:
		return "RollbackPrepared"
	case SavepointStart:
		return "SavepointStart"
	case SavepointRelease:
		return "SavepointRelease"
	case SavepointRollback:
		return "SavepointRollback"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one host transaction lifecycle notification.
type Event struct {
	Kind EventKind
	// GID is the global transaction identifier. Set for Prepare,
	// CommitPrepared, and RollbackPrepared.
	GID string
	// Depth is the 1-based nesting depth of the savepoint the event
	// concerns, as reported by the host. Zero means the host did not report
	// a depth. When set, Dispatch validates it against the queue's own
	// savepoint stack and fails on divergence.
	Depth int
}
