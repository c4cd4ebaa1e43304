package store_postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"

	"go.matview.dev/core/catalog"
	"go.matview.dev/core/depgraph"
)

// CreateMetadataTableStmt bootstraps the entity metadata table. Host
// integrations populate it as entities are created and dropped.
const CreateMetadataTableStmt = `
CREATE TABLE IF NOT EXISTS matview_entities
(
    name         TEXT  NOT NULL,
    key_column   TEXT  NOT NULL,
    base_table   TEXT  NOT NULL,
    dependencies JSONB NOT NULL DEFAULT '[]',

    PRIMARY KEY (name),
    UNIQUE (base_table)
);
`

// MetadataStore is a catalog.MetadataStore over the matview_entities table.
type MetadataStore struct {
	db *sql.DB
}

// NewMetadataStore returns a MetadataStore over |db|.
func NewMetadataStore(db *sql.DB) *MetadataStore { return &MetadataStore{db: db} }

// EnsureSchema creates the metadata table if it doesn't exist.
func (s *MetadataStore) EnsureSchema(ctx context.Context) error {
	var _, err = s.db.ExecContext(ctx, CreateMetadataTableStmt)
	return errors.WithMessage(err, "creating matview_entities")
}

// LoadEntities implements catalog.MetadataStore.
func (s *MetadataStore) LoadEntities(ctx context.Context) ([]depgraph.EntityDefinition, error) {
	var rows, err = s.db.QueryContext(ctx,
		`SELECT name, key_column, dependencies FROM matview_entities ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []depgraph.EntityDefinition
	for rows.Next() {
		var def depgraph.EntityDefinition
		var deps []byte

		if err = rows.Scan(&def.Name, &def.KeyColumn, &deps); err != nil {
			return nil, err
		}
		if err = json.Unmarshal(deps, &def.Dependencies); err != nil {
			return nil, errors.WithMessagef(err, "decoding dependencies of entity %q", def.Name)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// EntityForTable implements catalog.MetadataStore.
func (s *MetadataStore) EntityForTable(ctx context.Context, table string) (string, bool, error) {
	var entity string
	var err = s.db.QueryRowContext(ctx,
		`SELECT name FROM matview_entities WHERE base_table = $1;`, table).Scan(&entity)

	if err == sql.ErrNoRows {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return entity, true, nil
}

var _ catalog.MetadataStore = (*MetadataStore)(nil)
