package catalog

import (
	"context"

	"go.matview.dev/core/depgraph"
)

// MetadataStore is the host-side catalog of entity definitions. The engine
// never writes through a MetadataStore; entity creation and drop are host
// operations which notify the engine only through cache invalidation.
type MetadataStore interface {
	// LoadEntities reads all current EntityDefinitions.
	LoadEntities(ctx context.Context) ([]depgraph.EntityDefinition, error)
	// EntityForTable maps a base table identifier to the name of the entity
	// whose rows must be enqueued when that table changes. |ok| is false if
	// the table backs no entity.
	EntityForTable(ctx context.Context, table string) (entity string, ok bool, err error)
}
