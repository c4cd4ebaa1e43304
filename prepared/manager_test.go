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

func TestManagerPersistAndRestore(t *testing.T) {
	var store = preparedtest.NewMemoryStore()
	var mgr = prepared.NewManager(store, time.Hour)
	var ctx = context.Background()

	var keys = []depgraph.Key{
		{Entity: "post", PK: 10},
		{Entity: "user", PK: 1},
	}
	require.NoError(t, mgr.Persist(ctx, "gid-1", keys, 1))

	var rec, ok = store.Record("gid-1")
	require.True(t, ok)
	require.Equal(t, 2, rec.QueueSize)

	var restored, found, err = mgr.Restore(ctx, "gid-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, keys, restored)

	// Restore does not consume; the record remains until Consume or Discard.
	_, found, err = mgr.Restore(ctx, "gid-1")
	require.NoError(t, err)
	require.True(t, found)
}

func TestManagerPersistEmptyQueueIsNoop(t *testing.T) {
	var store = preparedtest.NewMemoryStore()
	var mgr = prepared.NewManager(store, time.Hour)

	require.NoError(t, mgr.Persist(context.Background(), "gid-1", nil, 0))
	require.Equal(t, 0, store.Puts)
}

func TestManagerRestoreMissingRecord(t *testing.T) {
	var mgr = prepared.NewManager(preparedtest.NewMemoryStore(), time.Hour)

	var keys, ok, err = mgr.Restore(context.Background(), "gid-absent")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, keys)
}

func TestManagerRestoreCorruptedRecord(t *testing.T) {
	var store = preparedtest.NewMemoryStore()
	var mgr = prepared.NewManager(store, time.Hour)
	var ctx = context.Background()

	require.NoError(t, mgr.Persist(ctx, "gid-1", []depgraph.Key{{Entity: "user", PK: 1}}, 0))
	store.Corrupt("gid-1")

	var _, ok, err = mgr.Restore(ctx, "gid-1")
	require.True(t, ok)

	var corrupt *prepared.QueueCorruptedError
	require.ErrorAs(t, err, &corrupt)
	require.Equal(t, "gid-1", corrupt.GID)

	// The record is flagged, not deleted, and leaves future scans.
	var rec, found = store.Record("gid-1")
	require.True(t, found)
	require.True(t, rec.Corrupted)

	store.Expire("gid-1")
	gids, err := store.ScanExpired(ctx, time.Now())
	require.NoError(t, err)
	require.Empty(t, gids)
}

func TestManagerConsumeAndDiscard(t *testing.T) {
	var store = preparedtest.NewMemoryStore()
	var mgr = prepared.NewManager(store, time.Hour)
	var ctx = context.Background()

	require.NoError(t, mgr.Persist(ctx, "gid-1", []depgraph.Key{{Entity: "user", PK: 1}}, 0))
	require.NoError(t, mgr.Persist(ctx, "gid-2", []depgraph.Key{{Entity: "user", PK: 2}}, 0))

	require.NoError(t, mgr.Consume(ctx, "gid-1"))
	require.NoError(t, mgr.Discard(ctx, "gid-2"))
	require.Equal(t, 0, store.Len())

	// Deleting an absent record is not an error.
	require.NoError(t, mgr.Discard(ctx, "gid-1"))
}

func TestManagerPersistStoreFailure(t *testing.T) {
	var store = preparedtest.NewMemoryStore()
	store.PutErr = errors.New("disk full")
	var mgr = prepared.NewManager(store, time.Hour)

	var err = mgr.Persist(context.Background(), "gid-1", []depgraph.Key{{Entity: "user", PK: 1}}, 0)
	require.ErrorContains(t, err, `persisting queue of gid "gid-1"`)
}

func TestLockKeyForGIDIsStable(t *testing.T) {
	var a = prepared.LockKeyForGID("gid-1")
	require.Equal(t, a, prepared.LockKeyForGID("gid-1"))
	require.NotEqual(t, a, prepared.LockKeyForGID("gid-2"))
}
