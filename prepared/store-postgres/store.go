// Package store_postgres implements the prepared package's Store, Registry,
// and Locker over a PostgreSQL database, which is ordinarily the same
// database hosting the maintained entities.
//
// Records live in the matview_pending_refresh table. Put must run on the
// session of the transaction being prepared, so that the record captures its
// xid and becomes durable exactly when the prepare does. The Registry
// resolves outcomes from pg_prepared_xacts and txid_status, and the Locker
// maps gids onto session-scoped advisory locks.
package store_postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Driver.
	"github.com/pkg/errors"

	"go.matview.dev/core/prepared"
)

// Store is a prepared.Store backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over |db|.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// EnsureSchema creates the record table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	var _, err = s.db.ExecContext(ctx, CreateTableStmt)
	return errors.WithMessage(err, "creating matview_pending_refresh")
}

// Put implements prepared.Store.
func (s *Store) Put(ctx context.Context, gid string, data []byte, ttl time.Duration, queueSize int) error {
	var _, err = s.db.ExecContext(ctx, putStmt,
		gid, data, queueSize, fmt.Sprintf("%d seconds", int64(ttl.Seconds())))
	return err
}

// Get implements prepared.Store.
func (s *Store) Get(ctx context.Context, gid string) ([]byte, bool, error) {
	var data []byte
	var err = s.db.QueryRowContext(ctx, getStmt, gid).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete implements prepared.Store.
func (s *Store) Delete(ctx context.Context, gid string) error {
	var _, err = s.db.ExecContext(ctx, deleteStmt, gid)
	return err
}

// ScanExpired implements prepared.Store.
func (s *Store) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx, scanExpiredStmt, now)
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
	var _, err = s.db.ExecContext(ctx, markCorruptedStmt, gid)
	return err
}

var _ prepared.Store = (*Store)(nil)
