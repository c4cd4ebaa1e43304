package prepared_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"go.matview.dev/core/depgraph"
	"go.matview.dev/core/prepared"
	"go.matview.dev/core/prepared/preparedtest"
)

// sweeperFixture wires a Sweeper over in-memory collaborators and records
// the keys its ProcessFunc receives.
type sweeperFixture struct {
	sweeper   *prepared.Sweeper
	store     *preparedtest.MemoryStore
	registry  *preparedtest.MemoryRegistry
	locker    *preparedtest.MemoryLocker
	processed [][]depgraph.Key
	failWith  error
}

func newSweeperFixture() *sweeperFixture {
	var f = &sweeperFixture{
		store:    preparedtest.NewMemoryStore(),
		registry: preparedtest.NewMemoryRegistry(),
		locker:   preparedtest.NewMemoryLocker(),
	}
	f.sweeper = &prepared.Sweeper{
		Manager:  prepared.NewManager(f.store, time.Hour),
		Registry: f.registry,
		Locker:   f.locker,
		Process: func(_ context.Context, keys []depgraph.Key) error {
			if f.failWith != nil {
				return f.failWith
			}
			f.processed = append(f.processed, keys)
			return nil
		},
	}
	return f
}

// persistExpired persists a one-key record for |gid| and back-dates its
// expiry so a sweep will consider it.
func (f *sweeperFixture) persistExpired(t *testing.T, gid string) {
	t.Helper()
	require.NoError(t, f.sweeper.Manager.Persist(
		context.Background(), gid, []depgraph.Key{{Entity: "user", PK: 1}}, 0))
	f.store.Expire(gid)
}

func TestSweepRecoversCommittedRecord(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	f.registry.SetOutcome("gid-1", prepared.OutcomeCommitted)

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Recovered: 1}, stats)

	require.Equal(t, [][]depgraph.Key{{{Entity: "user", PK: 1}}}, f.processed)
	require.Equal(t, 0, f.store.Len())
	require.Equal(t, 1, f.locker.Releases)
}

func TestSweepDiscardsRolledBackRecord(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	f.registry.SetOutcome("gid-1", prepared.OutcomeRolledBack)

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Discarded: 1}, stats)

	require.Empty(t, f.processed)
	require.Equal(t, 0, f.store.Len())
}

func TestSweepSkipsPendingAndLockedRecords(t *testing.T) {
	var f = newSweeperFixture()

	f.persistExpired(t, "gid-pending")
	f.registry.SetOutcome("gid-pending", prepared.OutcomePending)

	f.persistExpired(t, "gid-locked")
	f.registry.SetOutcome("gid-locked", prepared.OutcomeCommitted)
	f.locker.Hold("gid-locked")

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 2, Skipped: 2}, stats)
	require.Equal(t, 2, f.store.Len())
}

func TestSweepRetainsAmbiguousRecord(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	// No registry mapping: the outcome resolves as unknown.

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Ambiguous: 1}, stats)
	require.Equal(t, 1, f.store.Len())
}

func TestSweepFlagsCorruptedRecord(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	f.registry.SetOutcome("gid-1", prepared.OutcomeCommitted)
	f.store.Corrupt("gid-1")

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Corrupted: 1}, stats)

	var rec, ok = f.store.Record("gid-1")
	require.True(t, ok)
	require.True(t, rec.Corrupted)
}

func TestSweepProcessFailureIsCountedNotFatal(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	f.registry.SetOutcome("gid-1", prepared.OutcomeCommitted)
	f.failWith = errors.New("recompute failed")

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Failed: 1}, stats)

	// The record is retained and the lock released for the next sweep.
	require.Equal(t, 1, f.store.Len())
	require.Equal(t, 1, f.locker.Releases)

	// A later sweep with a working processor recovers it.
	f.failWith = nil
	stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Recovered: 1}, stats)
}

func TestSweepRegistryError(t *testing.T) {
	var f = newSweeperFixture()
	f.persistExpired(t, "gid-1")
	f.registry.Err = errors.New("registry unavailable")

	var stats, err = f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, prepared.SweepStats{Scanned: 1, Failed: 1}, stats)
	require.Equal(t, 1, f.locker.Releases)
}
