package depgraph

import (
	"sort"
)

// DefaultMaxDepth bounds the static depth of dependency chains, measured in
// edges from a leaf entity to its furthest dependent.
const DefaultMaxDepth = 10

// Graph is a directed acyclic graph over EntityDefinitions. Nodes live in an
// arena slice and edges are arena indices, so cyclic *candidate* inputs are
// representable and rejected by explicit search rather than by construction.
//
// A Graph is immutable once built. Callers requiring an updated Graph build a
// new one and swap it in (see catalog.GraphCache).
type Graph struct {
	nodes    []node
	index    map[string]int
	order    []int // Arena indices, topologically sorted with sources first.
	maxDepth int
}

type node struct {
	def      EntityDefinition
	parents  []int // Nodes whose stored values embed this node's rows.
	children []int // Nodes this node derives from.
}

// NewGraph builds and validates a Graph over the given definitions.
// It returns:
//   - *DuplicateEntityError if two definitions share a name,
//   - *MetadataError if a dependency references an undefined entity,
//   - *CycleError if definitions form a dependency cycle,
//   - *DepthExceededError if a chain exceeds |maxDepth| edges
//     (DefaultMaxDepth where |maxDepth| is zero).
func NewGraph(defs []EntityDefinition, maxDepth int) (*Graph, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var g = &Graph{
		nodes:    make([]node, 0, len(defs)),
		index:    make(map[string]int, len(defs)),
		maxDepth: maxDepth,
	}
	for _, def := range defs {
		if _, ok := g.index[def.Name]; ok {
			return nil, &DuplicateEntityError{Entity: def.Name}
		}
		g.index[def.Name] = len(g.nodes)
		g.nodes = append(g.nodes, node{def: def})
	}
	for i := range g.nodes {
		for _, dep := range g.nodes[i].def.Dependencies {
			var j, ok = g.index[dep.Target]
			if !ok {
				return nil, &MetadataError{
					Entity:    g.nodes[i].def.Name,
					Reference: dep.Target,
				}
			}
			g.nodes[i].children = append(g.nodes[i].children, j)
			g.nodes[j].parents = append(g.nodes[j].parents, i)
		}
	}
	if err := g.sortAndCheck(); err != nil {
		return nil, err
	}
	return g, nil
}

// sortAndCheck runs a three-color depth-first search over child edges,
// producing a topological order (sources first), detecting cycles, and
// measuring each chain against the depth bound.
func (g *Graph) sortAndCheck() error {
	const (
		white = iota // Unvisited.
		grey         // On the current DFS stack.
		black        // Finished.
	)
	var (
		color = make([]int, len(g.nodes))
		depth = make([]int, len(g.nodes)) // Longest chain of edges below node.
		stack []int
		err   error
	)
	g.order = g.order[:0]

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = grey
		stack = append(stack, i)

		for _, j := range g.nodes[i].children {
			switch color[j] {
			case grey:
				err = &CycleError{Cycle: cycleOf(g, stack, j)}
				return false
			case white:
				if !visit(j) {
					return false
				}
			}
			if d := depth[j] + 1; d > depth[i] {
				depth[i] = d
			}
		}
		if depth[i] > g.maxDepth {
			err = &DepthExceededError{
				Entity: g.nodes[i].def.Name,
				Depth:  depth[i],
				Max:    g.maxDepth,
			}
			return false
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		g.order = append(g.order, i) // Post-order: children precede parents.
		return true
	}

	for i := range g.nodes {
		if color[i] == white && !visit(i) {
			return err
		}
	}
	return nil
}

// cycleOf reconstructs the cycle closed by a back edge to |to|, from the
// current DFS |stack|.
func cycleOf(g *Graph, stack []int, to int) []string {
	var at = 0
	for ; at != len(stack) && stack[at] != to; at++ {
	}
	var cycle []string
	for _, i := range stack[at:] {
		cycle = append(cycle, g.nodes[i].def.Name)
	}
	return append(cycle, g.nodes[to].def.Name)
}

// Len returns the number of entities in the Graph.
func (g *Graph) Len() int { return len(g.nodes) }

// MaxDepth returns the configured static depth bound.
func (g *Graph) MaxDepth() int { return g.maxDepth }

// Definition returns the EntityDefinition of the named entity.
func (g *Graph) Definition(entity string) (EntityDefinition, bool) {
	if i, ok := g.index[entity]; ok {
		return g.nodes[i].def, true
	}
	return EntityDefinition{}, false
}

// ParentsOf returns the names of entities whose stored values embed rows of
// |entity|: the entities to which a change of |entity| propagates. Names are
// sorted, and empty where |entity| is unknown or has no dependents.
func (g *Graph) ParentsOf(entity string) []string {
	var i, ok = g.index[entity]
	if !ok {
		return nil
	}
	var out = make([]string, 0, len(g.nodes[i].parents))
	for _, p := range g.nodes[i].parents {
		out = append(out, g.nodes[p].def.Name)
	}
	sort.Strings(out)
	return out
}

// ChildrenOf returns the sorted names of entities which |entity| derives from.
func (g *Graph) ChildrenOf(entity string) []string {
	var i, ok = g.index[entity]
	if !ok {
		return nil
	}
	var out = make([]string, 0, len(g.nodes[i].children))
	for _, c := range g.nodes[i].children {
		out = append(out, g.nodes[c].def.Name)
	}
	sort.Strings(out)
	return out
}

// Order returns entity names in topological order: an entity always precedes
// every entity which derives from it.
func (g *Graph) Order() []string {
	var out = make([]string, 0, len(g.order))
	for _, i := range g.order {
		out = append(out, g.nodes[i].def.Name)
	}
	return out
}

// SortKeys orders |keys| for processing: keys group by entity, entity groups
// follow the Graph's topological order, and keys of one entity order by
// primary key. A key is therefore never ordered after a key of an entity
// which derives from its own.
//
// Keys of entities unknown to the Graph sort last, in lexicographic entity
// order. They are retained rather than dropped: recomputation surfaces the
// missing metadata as an error instead of silently losing the refresh.
func (g *Graph) SortKeys(keys []Key) []Key {
	var groups = make(map[string][]int64, len(keys))
	for _, k := range keys {
		groups[k.Entity] = append(groups[k.Entity], k.PK)
	}

	var out = make([]Key, 0, len(keys))
	var emit = func(entity string) {
		var pks, ok = groups[entity]
		if !ok {
			return
		}
		sort.Slice(pks, func(a, b int) bool { return pks[a] < pks[b] })
		for _, pk := range pks {
			out = append(out, Key{Entity: entity, PK: pk})
		}
		delete(groups, entity)
	}

	for _, i := range g.order {
		emit(g.nodes[i].def.Name)
	}
	var rest = make([]string, 0, len(groups))
	for entity := range groups {
		rest = append(rest, entity)
	}
	sort.Strings(rest)
	for _, entity := range rest {
		emit(entity)
	}
	return out
}

// Snapshot is a read-only view of the Graph for observability APIs.
type Snapshot struct {
	Entities []EntityDefinition `json:"entities"`
	Order    []string           `json:"order"`
	MaxDepth int                `json:"maxDepth"`
}

// Snapshot returns a Snapshot of the Graph.
func (g *Graph) Snapshot() Snapshot {
	var s = Snapshot{
		Entities: make([]EntityDefinition, 0, len(g.nodes)),
		Order:    g.Order(),
		MaxDepth: g.maxDepth,
	}
	for _, n := range g.nodes {
		s.Entities = append(s.Entities, n.def)
	}
	return s
}
