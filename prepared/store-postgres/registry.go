package store_postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go.matview.dev/core/prepared"
)

// Registry is a prepared.Registry which resolves transaction outcomes from
// PostgreSQL's own prepared-transaction bookkeeping.
type Registry struct {
	db *sql.DB
}

// NewRegistry returns a Registry over |db|.
func NewRegistry(db *sql.DB) *Registry { return &Registry{db: db} }

// Outcome implements prepared.Registry. A gid listed in pg_prepared_xacts is
// pending. Otherwise the record's captured xid resolves through txid_status:
// "committed" or "aborted" where the commit log still covers the xid, and
// unknown where it has aged out.
func (r *Registry) Outcome(ctx context.Context, gid string) (prepared.Outcome, error) {
	var (
		isPrepared bool
		status     sql.NullString
	)
	var err = r.db.QueryRowContext(ctx, outcomeStmt, gid).Scan(&isPrepared, &status)

	if err == sql.ErrNoRows {
		// The record is gone; there is nothing left to resolve.
		return prepared.OutcomeUnknown, nil
	} else if err != nil {
		return prepared.OutcomeUnknown, errors.WithMessagef(err, "resolving outcome of gid %q", gid)
	}

	if isPrepared {
		return prepared.OutcomePending, nil
	}
	switch status.String {
	case "committed":
		return prepared.OutcomeCommitted, nil
	case "aborted":
		return prepared.OutcomeRolledBack, nil
	case "in progress":
		return prepared.OutcomePending, nil
	default:
		return prepared.OutcomeUnknown, nil
	}
}

var _ prepared.Registry = (*Registry)(nil)
