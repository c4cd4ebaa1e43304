package depgraph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGraphOrderAndEdges(t *testing.T) {
	var g, err = NewGraph(feedFixture(), 0)
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())

	// Every entity precedes the entities deriving from it.
	var rank = map[string]int{}
	for i, name := range g.Order() {
		rank[name] = i
	}
	require.Less(t, rank["company"], rank["user"])
	require.Less(t, rank["user"], rank["post"])
	require.Less(t, rank["post"], rank["feed"])

	require.Equal(t, []string{"user"}, g.ParentsOf("company"))
	require.Equal(t, []string{"post"}, g.ParentsOf("user"))
	require.Equal(t, []string{"feed"}, g.ParentsOf("post"))
	require.Empty(t, g.ParentsOf("feed"))
	require.Empty(t, g.ParentsOf("not-an-entity"))

	require.Equal(t, []string{"user"}, g.ChildrenOf("post"))
	require.Empty(t, g.ChildrenOf("company"))

	var def, ok = g.Definition("post")
	require.True(t, ok)
	require.Equal(t, "pk_post", def.KeyColumn)
	_, ok = g.Definition("missing")
	require.False(t, ok)
}

func TestGraphSortKeys(t *testing.T) {
	var g, err = NewGraph(feedFixture(), 0)
	require.NoError(t, err)

	var sorted = g.SortKeys([]Key{
		{Entity: "feed", PK: 9},
		{Entity: "user", PK: 2},
		{Entity: "post", PK: 11},
		{Entity: "post", PK: 10},
		{Entity: "user", PK: 1},
	})
	require.Equal(t, []Key{
		{Entity: "user", PK: 1},
		{Entity: "user", PK: 2},
		{Entity: "post", PK: 10},
		{Entity: "post", PK: 11},
		{Entity: "feed", PK: 9},
	}, sorted)
}

func TestGraphSortKeysRetainsUnknownEntities(t *testing.T) {
	var g, err = NewGraph(feedFixture(), 0)
	require.NoError(t, err)

	var sorted = g.SortKeys([]Key{
		{Entity: "zebra", PK: 1},
		{Entity: "apple", PK: 2},
		{Entity: "user", PK: 3},
	})
	// Known entities first, then unknowns in lexicographic order.
	require.Equal(t, []Key{
		{Entity: "user", PK: 3},
		{Entity: "apple", PK: 2},
		{Entity: "zebra", PK: 1},
	}, sorted)
}

func TestGraphUnknownDependencyTarget(t *testing.T) {
	var _, err = NewGraph([]EntityDefinition{
		{Name: "order", Dependencies: []Dependency{{Target: "customer", Kind: NestedObject}}},
	}, 0)

	var metaErr *MetadataError
	require.ErrorAs(t, err, &metaErr)
	require.Equal(t, "order", metaErr.Entity)
	require.Equal(t, "customer", metaErr.Reference)
}

func TestGraphCycleDetection(t *testing.T) {
	var _, err = NewGraph([]EntityDefinition{
		{Name: "a", Dependencies: []Dependency{{Target: "b", Kind: Scalar}}},
		{Name: "b", Dependencies: []Dependency{{Target: "c", Kind: Scalar}}},
		{Name: "c", Dependencies: []Dependency{{Target: "a", Kind: Scalar}}},
	}, 0)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	// |Cycle| walks the loop and closes it on its first entity.
	require.Len(t, cycleErr.Cycle, 4)
	require.Equal(t, cycleErr.Cycle[0], cycleErr.Cycle[len(cycleErr.Cycle)-1])
}

func TestGraphDepthBound(t *testing.T) {
	var chain = func(n int) []EntityDefinition {
		var defs = []EntityDefinition{{Name: "e0"}}
		for i := 1; i < n; i++ {
			defs = append(defs, EntityDefinition{
				Name:         fmt.Sprintf("e%d", i),
				Dependencies: []Dependency{{Target: fmt.Sprintf("e%d", i-1), Kind: Scalar}},
			})
		}
		return defs
	}

	// Eleven entities chain through exactly DefaultMaxDepth edges.
	var _, err = NewGraph(chain(DefaultMaxDepth+1), 0)
	require.NoError(t, err)

	_, err = NewGraph(chain(DefaultMaxDepth+2), 0)
	var depthErr *DepthExceededError
	require.ErrorAs(t, err, &depthErr)
	require.Equal(t, DefaultMaxDepth+1, depthErr.Depth)
	require.Equal(t, DefaultMaxDepth, depthErr.Max)

	// A tighter explicit bound applies over the default.
	_, err = NewGraph(chain(4), 2)
	require.ErrorAs(t, err, &depthErr)
	require.Equal(t, 2, depthErr.Max)
}

func TestGraphDuplicateDefinition(t *testing.T) {
	var _, err = NewGraph([]EntityDefinition{
		{Name: "user"},
		{Name: "user"},
	}, 0)
	var dupErr *DuplicateEntityError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, "user", dupErr.Entity)
	require.EqualError(t, err, `entity "user" is defined more than once`)
}

func TestValidateNewEdge(t *testing.T) {
	var defs = []EntityDefinition{
		{Name: "a", Dependencies: []Dependency{{Target: "b", Kind: Scalar}}},
		{Name: "b"},
	}

	// b -> a would close a cycle.
	var err = ValidateNewEdge(defs, "b", "a", 0)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)

	// A fresh entity depending on b is fine, and |defs| is untouched.
	require.NoError(t, ValidateNewEdge(defs, "c", "b", 0))
	require.Len(t, defs[0].Dependencies, 1)
	require.Empty(t, defs[1].Dependencies)

	// An edge to an undefined entity is a metadata error.
	var metaErr *MetadataError
	require.ErrorAs(t, ValidateNewEdge(defs, "c", "nope", 0), &metaErr)
}

func TestDependencyKindRoundTrip(t *testing.T) {
	for _, kind := range []DependencyKind{Scalar, NestedObject, Array} {
		var parsed, err = ParseDependencyKind(kind.String())
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}
	var _, err = ParseDependencyKind("tuple")
	require.Error(t, err)
}

func feedFixture() []EntityDefinition {
	return []EntityDefinition{
		{Name: "company", KeyColumn: "pk_company"},
		{Name: "user", KeyColumn: "pk_user", Dependencies: []Dependency{
			{Target: "company", Kind: NestedObject, Path: "company"},
		}},
		{Name: "post", KeyColumn: "pk_post", Dependencies: []Dependency{
			{Target: "user", Kind: NestedObject, Path: "author"},
		}},
		{Name: "feed", KeyColumn: "pk_feed", Dependencies: []Dependency{
			{Target: "post", Kind: Array, Path: "posts", ArrayMatchKey: "id"},
		}},
	}
}
