package store_postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"go.matview.dev/core/refresh"
)

// Recomputer is a refresh.Recomputer which invokes the matview_refresh_row
// database function. The function runs the entity's defining query for the
// keyed row, updates its stored value, and returns the (entity, pk) rows
// which embed it.
type Recomputer struct {
	db *sql.DB
}

// NewRecomputer returns a Recomputer over |db|.
func NewRecomputer(db *sql.DB) *Recomputer { return &Recomputer{db: db} }

// RecomputeRow implements refresh.Recomputer.
func (r *Recomputer) RecomputeRow(ctx context.Context, key refresh.Key) (refresh.RecomputeResult, error) {
	var result refresh.RecomputeResult

	var rows, err = r.db.QueryContext(ctx,
		`SELECT parent_entity, parent_pk FROM matview_refresh_row($1, $2);`,
		key.Entity, key.PK)
	if err != nil {
		return result, errors.WithMessagef(err, "invoking matview_refresh_row(%s)", key)
	}
	defer rows.Close()

	for rows.Next() {
		var parent refresh.Key
		if err = rows.Scan(&parent.Entity, &parent.PK); err != nil {
			return result, err
		}
		result.Parents = append(result.Parents, parent)
	}
	return result, rows.Err()
}

var _ refresh.Recomputer = (*Recomputer)(nil)
