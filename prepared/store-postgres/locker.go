package store_postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go.matview.dev/core/prepared"
)

// Locker is a prepared.Locker over PostgreSQL session advisory locks. Each
// acquired lock pins a dedicated connection, since advisory locks are scoped
// to the session which took them; release unlocks and returns the connection
// to the pool.
type Locker struct {
	db *sql.DB
}

// NewLocker returns a Locker over |db|.
func NewLocker(db *sql.DB) *Locker { return &Locker{db: db} }

// TryLockGID implements prepared.Locker.
func (l *Locker) TryLockGID(ctx context.Context, gid string) (func() error, bool, error) {
	var key = prepared.LockKeyForGID(gid)

	var conn, err = l.db.Conn(ctx)
	if err != nil {
		return nil, false, errors.WithMessage(err, "obtaining connection")
	}

	var locked bool
	if err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).
		Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, false, errors.WithMessagef(err, "locking gid %q", gid)
	} else if !locked {
		_ = conn.Close()
		return nil, false, nil
	}

	var release = func() error {
		var _, err = conn.ExecContext(context.Background(),
			`SELECT pg_advisory_unlock($1)`, key)
		if cErr := conn.Close(); err == nil {
			err = cErr
		}
		return errors.WithMessagef(err, "unlocking gid %q", gid)
	}
	return release, true, nil
}

var _ prepared.Locker = (*Locker)(nil)
