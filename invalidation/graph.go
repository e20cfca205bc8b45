package invalidation

import "github.com/jonwraymond/simcache/cache"

// Graph is the cache dependency graph. An edge A -> B records that
// invalidating A must also invalidate B.
//
// Contract:
// - Mutation: AddEdge is for setup only and is not synchronized.
// - Reads: Propagate takes no lock; the graph must be treated as
//   immutable once requests start flowing.
// - Termination: traversal visits each node at most once, so cycles and
//   diamond-shaped paths are safe.
type Graph struct {
	edges map[cache.ID][]cache.ID
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[cache.ID][]cache.ID)}
}

// AddEdge records that invalidating from must also invalidate to.
// Duplicate edges are ignored; insertion order is preserved so
// propagation output is deterministic.
func (g *Graph) AddEdge(from, to cache.ID) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Dependents returns the direct dependents of id.
func (g *Graph) Dependents(id cache.ID) []cache.ID {
	return g.edges[id]
}

// Propagate returns every cache reachable from source in breadth-first
// order, source always first, each exactly once. maxDepth bounds the
// traversal depth when positive (1 reaches direct dependents only).
// filter, when non-nil, drops dependents it rejects from the result;
// traversal still continues through them so transitive dependents are
// not lost, and source is kept regardless.
func (g *Graph) Propagate(source cache.ID, maxDepth int, filter func(cache.ID) bool) []cache.ID {
	type visit struct {
		id    cache.ID
		depth int
	}

	visited := map[cache.ID]bool{source: true}
	out := []cache.ID{source}
	queue := []visit{{id: source, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, dep := range g.edges[cur.id] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if filter == nil || filter(dep) {
				out = append(out, dep)
			}
			queue = append(queue, visit{id: dep, depth: cur.depth + 1})
		}
	}
	return out
}
