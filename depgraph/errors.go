package depgraph

import (
	"fmt"
	"strings"
)

// MetadataError indicates a dependency edge references an entity for which no
// definition exists.
type MetadataError struct {
	// Entity whose definition declares the broken edge.
	Entity string
	// Reference is the missing target entity.
	Reference string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("entity %q depends on unknown entity %q", e.Entity, e.Reference)
}

// DuplicateEntityError indicates two definitions share an entity name.
type DuplicateEntityError struct {
	Entity string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("entity %q is defined more than once", e.Entity)
}

// CycleError indicates entity definitions form a dependency cycle.
type CycleError struct {
	// Cycle is the sequence of entities forming the cycle. The first entity
	// is repeated as the last element.
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// DepthExceededError indicates the static dependency chain rooted at Entity
// is deeper than the configured maximum.
type DepthExceededError struct {
	Entity     string
	Depth, Max int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("entity %q dependency depth %d exceeds maximum %d", e.Entity, e.Depth, e.Max)
}
