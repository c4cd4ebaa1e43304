package refresh

import (
	"context"

	"go.matview.dev/core/depgraph"
)

// Key identifies a unique entity row awaiting recomputation.
// Aliased for brevity from the `depgraph` package.
type Key = depgraph.Key

// RecomputeResult is the outcome of recomputing one entity row.
type RecomputeResult struct {
	// Value is the row's recomputed stored value. The engine treats it as
	// opaque and carries it only for host-side diagnostics; the host's query
	// executor has already written it to the entity table.
	Value []byte
	// Parents are the immediate parent keys whose stored values embed this
	// row, and which must therefore be recomputed in a later iteration.
	Parents []Key
}

// Recomputer executes the "recompute one row of one entity" primitive against
// the host's query executor. Implementations run the entity's defining query
// for the keyed row, update the stored row, and report the parent rows
// embedding it. Calls block for the duration of the host query.
type Recomputer interface {
	RecomputeRow(ctx context.Context, key Key) (RecomputeResult, error)
}

// RecomputerFunc adapts a function to the Recomputer interface.
type RecomputerFunc func(ctx context.Context, key Key) (RecomputeResult, error)

// RecomputeRow invokes the function.
func (f RecomputerFunc) RecomputeRow(ctx context.Context, key Key) (RecomputeResult, error) {
	return f(ctx, key)
}
