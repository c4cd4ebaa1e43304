package prepared

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.matview.dev/core/depgraph"
)

// DefaultTTL is the default record time-to-live. A prepared transaction
// outliving it is presumed orphaned and becomes eligible for recovery.
const DefaultTTL = 24 * time.Hour

// Manager serializes queues into a Store at prepare time and restores them
// for commit-prepared processing and recovery.
type Manager struct {
	store   Store
	ttl     time.Duration
	session string
}

// NewManager returns a Manager over |store|. |ttl| defaults to DefaultTTL
// where zero.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:   store,
		ttl:     ttl,
		session: uuid.NewString(),
	}
}

// Store returns the Manager's backing Store.
func (m *Manager) Store() Store { return m.store }

// Persist durably records |keys| under |gid|. An empty |keys| persists
// nothing: no refresh is owed, and commit-prepared treats a missing record
// the same way.
func (m *Manager) Persist(ctx context.Context, gid string, keys []depgraph.Key, savepointDepth int) error {
	if len(keys) == 0 {
		return nil
	}
	var data, err = MarshalRecord(Record{
		Version: recordVersion,
		Keys:    keys,
		Metadata: RecordMetadata{
			PreparedAt:     time.Now().UTC(),
			SourceSession:  m.session,
			SavepointDepth: savepointDepth,
		},
	})
	if err != nil {
		return err
	}
	if err = m.store.Put(ctx, gid, data, m.ttl, len(keys)); err != nil {
		return errors.WithMessagef(err, "persisting queue of gid %q", gid)
	}
	recordsPersistedTotal.Inc()

	log.WithFields(log.Fields{
		"gid":  gid,
		"keys": len(keys),
	}).Info("persisted refresh queue for prepared transaction")
	return nil
}

// Restore loads the keys persisted under |gid|. |ok| is false if no record
// exists. A record which fails to deserialize is flagged in the Store and
// surfaced as *QueueCorruptedError.
func (m *Manager) Restore(ctx context.Context, gid string) (keys []depgraph.Key, ok bool, err error) {
	var data []byte
	if data, ok, err = m.store.Get(ctx, gid); err != nil {
		return nil, false, errors.WithMessagef(err, "loading record of gid %q", gid)
	} else if !ok {
		return nil, false, nil
	}

	var rec Record
	if rec, err = UnmarshalRecord(data); err != nil {
		recordsCorruptedTotal.Inc()
		if mErr := m.store.MarkCorrupted(ctx, gid); mErr != nil {
			log.WithFields(log.Fields{"gid": gid, "err": mErr}).
				Error("failed to flag corrupted record")
		}
		return nil, true, &QueueCorruptedError{GID: gid, Err: err}
	}
	return rec.Keys, true, nil
}

// Discard deletes the record of |gid| without processing, as on
// rollback-prepared: the prepared writes never became visible, so no refresh
// is owed.
func (m *Manager) Discard(ctx context.Context, gid string) error {
	if err := m.store.Delete(ctx, gid); err != nil {
		return errors.WithMessagef(err, "deleting record of gid %q", gid)
	}
	recordsConsumedTotal.WithLabelValues("rollback").Inc()
	return nil
}

// Consume deletes the record of |gid| after successful commit-prepared
// processing.
func (m *Manager) Consume(ctx context.Context, gid string) error {
	if err := m.store.Delete(ctx, gid); err != nil {
		return errors.WithMessagef(err, "deleting record of gid %q", gid)
	}
	recordsConsumedTotal.WithLabelValues("commit").Inc()
	return nil
}

// Session returns the Manager's session identity, recorded into each
// persisted record.
func (m *Manager) Session() string { return m.session }
