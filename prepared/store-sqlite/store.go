// Package store_sqlite implements the prepared package's Store, Registry,
// and Locker over a SQLite database, for single-node deployments and tests.
//
// SQLite has no prepared-transaction bookkeeping of its own, so the Registry
// reads a host-maintained matview_txn_outcomes table: the host integration
// records each gid's fate there as it commits or rolls back. The Locker is
// process-local, which suffices because a SQLite database has exactly one
// writing process.
package store_sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // Driver.
	"github.com/pkg/errors"

	"go.matview.dev/core/prepared"
)

// CreateTablesStmt bootstraps the record and outcome tables.
const CreateTablesStmt = `
CREATE TABLE IF NOT EXISTS matview_pending_refresh
(
    gid         TEXT      NOT NULL PRIMARY KEY,
    queue       BLOB      NOT NULL,
    queue_size  INTEGER   NOT NULL,
    prepared_at TIMESTAMP NOT NULL,
    expires_at  TIMESTAMP NOT NULL,
    corrupted   BOOLEAN   NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS matview_txn_outcomes
(
    gid     TEXT NOT NULL PRIMARY KEY,
    outcome TEXT NOT NULL CHECK (outcome IN ('pending', 'committed', 'rolledBack'))
);
`

// Store is a prepared.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if required) the SQLite database at |path| and
// returns a Store over it.
func Open(path string) (*Store, error) {
	var db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening database %q", path)
	}
	if _, err = db.Exec(CreateTablesStmt); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "creating tables")
	}
	return &Store{db: db}, nil
}

// DB returns the Store's database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put implements prepared.Store.
func (s *Store) Put(ctx context.Context, gid string, data []byte, ttl time.Duration, queueSize int) error {
	var now = time.Now().UTC()
	var _, err = s.db.ExecContext(ctx, `
INSERT INTO matview_pending_refresh (gid, queue, queue_size, prepared_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (gid) DO UPDATE SET
    queue = excluded.queue, queue_size = excluded.queue_size,
    prepared_at = excluded.prepared_at, expires_at = excluded.expires_at,
    corrupted = FALSE;`,
		gid, data, queueSize, now, now.Add(ttl))
	return err
}

// Get implements prepared.Store.
func (s *Store) Get(ctx context.Context, gid string) ([]byte, bool, error) {
	var data []byte
	var err = s.db.QueryRowContext(ctx,
		`SELECT queue FROM matview_pending_refresh WHERE gid = ?;`, gid).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete implements prepared.Store.
func (s *Store) Delete(ctx context.Context, gid string) error {
	var _, err = s.db.ExecContext(ctx,
		`DELETE FROM matview_pending_refresh WHERE gid = ?;`, gid)
	return err
}

// ScanExpired implements prepared.Store.
func (s *Store) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx, `
SELECT gid FROM matview_pending_refresh
WHERE expires_at <= ? AND NOT corrupted ORDER BY prepared_at ASC;`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gids []string
	for rows.Next() {
		var gid string
		if err = rows.Scan(&gid); err != nil {
			return nil, err
		}
		gids = append(gids, gid)
	}
	return gids, rows.Err()
}

// MarkCorrupted implements prepared.Store.
func (s *Store) MarkCorrupted(ctx context.Context, gid string) error {
	var _, err = s.db.ExecContext(ctx,
		`UPDATE matview_pending_refresh SET corrupted = TRUE WHERE gid = ?;`, gid)
	return err
}

// SetOutcome records |outcome| of |gid| into the outcome table. It's called
// by the host integration as transactions resolve.
func (s *Store) SetOutcome(ctx context.Context, gid string, outcome prepared.Outcome) error {
	var _, err = s.db.ExecContext(ctx, `
INSERT INTO matview_txn_outcomes (gid, outcome) VALUES (?, ?)
ON CONFLICT (gid) DO UPDATE SET outcome = excluded.outcome;`,
		gid, outcome.String())
	return err
}

// Registry is a prepared.Registry over the host-maintained outcome table.
type Registry struct {
	db *sql.DB
}

// NewRegistry returns a Registry over the Store's database.
func NewRegistry(store *Store) *Registry { return &Registry{db: store.db} }

// Outcome implements prepared.Registry.
func (r *Registry) Outcome(ctx context.Context, gid string) (prepared.Outcome, error) {
	var outcome string
	var err = r.db.QueryRowContext(ctx,
		`SELECT outcome FROM matview_txn_outcomes WHERE gid = ?;`, gid).Scan(&outcome)

	if err == sql.ErrNoRows {
		return prepared.OutcomeUnknown, nil
	} else if err != nil {
		return prepared.OutcomeUnknown, errors.WithMessagef(err, "resolving outcome of gid %q", gid)
	}

	switch outcome {
	case "pending":
		return prepared.OutcomePending, nil
	case "committed":
		return prepared.OutcomeCommitted, nil
	case "rolledBack":
		return prepared.OutcomeRolledBack, nil
	default:
		return prepared.OutcomeUnknown, nil
	}
}

// Locker is a process-local prepared.Locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker { return &Locker{held: make(map[string]struct{})} }

// TryLockGID implements prepared.Locker.
func (l *Locker) TryLockGID(_ context.Context, gid string) (func() error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[gid]; ok {
		return nil, false, nil
	}
	l.held[gid] = struct{}{}

	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, gid)
		return nil
	}, true, nil
}

var (
	_ prepared.Store    = (*Store)(nil)
	_ prepared.Registry = (*Registry)(nil)
	_ prepared.Locker   = (*Locker)(nil)
)
