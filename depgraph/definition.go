// Package depgraph models the dependency graph over derived entities: which
// entities embed or aggregate rows of which other entities, and the safe
// order in which affected rows must be recomputed.
package depgraph

import (
	"encoding/json"
	"fmt"
)

// DependencyKind enumerates the ways an entity's stored value can embed
// another entity's row.
type DependencyKind int

const (
	// Scalar embeds a single column value of the target row.
	Scalar DependencyKind = iota
	// NestedObject embeds the target row as a nested document.
	NestedObject
	// Array embeds a collection of target rows, matched by ArrayMatchKey.
	Array
)

// String returns the catalog representation of the DependencyKind.
func (k DependencyKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case NestedObject:
		return "nested_object"
	case Array:
		return "array"
	default:
		return fmt.Sprintf("DependencyKind(%d)", int(k))
	}
}

// MarshalJSON marshals the DependencyKind as its catalog string.
func (k DependencyKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON unmarshals a DependencyKind from its catalog string.
func (k *DependencyKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var parsed, err = ParseDependencyKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseDependencyKind maps a catalog string to its DependencyKind.
func ParseDependencyKind(s string) (DependencyKind, error) {
	switch s {
	case "scalar":
		return Scalar, nil
	case "nested_object":
		return NestedObject, nil
	case "array":
		return Array, nil
	default:
		return Scalar, fmt.Errorf("unknown dependency kind %q", s)
	}
}

// Dependency is one edge of an EntityDefinition: this entity's stored value
// derives from rows of Target.
type Dependency struct {
	// Target is the name of the entity depended upon.
	Target string `json:"target"`
	// Kind of the embedding.
	Kind DependencyKind `json:"kind"`
	// Path locates the embedded value within the entity's stored document.
	Path string `json:"path,omitempty"`
	// ArrayMatchKey identifies array elements for in-place patching.
	// Set only where Kind is Array.
	ArrayMatchKey string `json:"arrayMatchKey,omitempty"`
}

// EntityDefinition describes one derived entity: its name, the column holding
// its primary key, and the ordered edges to entities it derives from.
// Definitions are created by entity creation, removed by entity drop, and
// immutable in between.
type EntityDefinition struct {
	// Name of the entity.
	Name string `json:"name"`
	// KeyColumn is the column of the entity's stored table holding its
	// primary key.
	KeyColumn string `json:"keyColumn"`
	// Dependencies are edges to entities whose rows this entity embeds,
	// in catalog order.
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Key identifies a unique entity row awaiting recomputation.
// It is a value type: equality of all fields defines queue deduplication.
type Key struct {
	// Entity name.
	Entity string `json:"entity"`
	// PK is the row's primary key value.
	PK int64 `json:"pk"`
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.Entity, k.PK) }
