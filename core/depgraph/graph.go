// Package depgraph orders tasks by their declared task dependencies.
//
// The order is reproducible: among nodes that are ready at the same time the
// one that appeared first in the input wins.
package depgraph

import "sort"

// Graph is a dependency DAG over task ids.
type Graph struct {
	ids      []int
	index    map[int]int
	outgoing [][]int
	incoming [][]int
}

// New creates a graph whose node order is the order of ids.
func New(ids []int) (*Graph, error) {
	g := &Graph{
		ids:      append([]int(nil), ids...),
		index:    make(map[int]int, len(ids)),
		outgoing: make([][]int, len(ids)),
		incoming: make([][]int, len(ids)),
	}
	for i, id := range ids {
		if _, dup := g.index[id]; dup {
			return nil, invalidf("duplicate task id %d", id)
		}
		g.index[id] = i
	}
	return g, nil
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id int) bool {
	_, ok := g.index[id]
	return ok
}

// AddEdge records that to depends on from. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to int) error {
	fi, ok := g.index[from]
	if !ok {
		return invalidf("unknown task %d", from)
	}
	ti, ok := g.index[to]
	if !ok {
		return invalidf("unknown task %d", to)
	}
	if fi == ti {
		return invalidf("task %d depends on itself", from)
	}
	for _, x := range g.outgoing[fi] {
		if x == ti {
			return nil
		}
	}
	g.outgoing[fi] = append(g.outgoing[fi], ti)
	g.incoming[ti] = append(g.incoming[ti], fi)
	return nil
}

// Dependents returns the ids that directly depend on id, in input order.
func (g *Graph) Dependents(id int) []int {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	idx := append([]int(nil), g.outgoing[i]...)
	sort.Ints(idx)
	out := make([]int, len(idx))
	for k, j := range idx {
		out[k] = g.ids[j]
	}
	return out
}

// Prerequisites returns the ids id depends on, in input order.
func (g *Graph) Prerequisites(id int) []int {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	idx := append([]int(nil), g.incoming[i]...)
	sort.Ints(idx)
	out := make([]int, len(idx))
	for k, j := range idx {
		out[k] = g.ids[j]
	}
	return out
}

// TopoOrder runs Kahn's algorithm keeping the frontier sorted by input
// position. A cycle yields a *GraphError wrapping ErrCycleFound.
func (g *Graph) TopoOrder() ([]int, error) {
	indeg := make([]int, len(g.ids))
	for i := range g.incoming {
		indeg[i] = len(g.incoming[i])
	}
	var frontier []int
	for i, d := range indeg {
		if d == 0 {
			frontier = append(frontier, i)
		}
	}
	order := make([]int, 0, len(g.ids))
	for len(frontier) > 0 {
		sort.Ints(frontier)
		n := frontier[0]
		frontier = frontier[1:]
		order = append(order, g.ids[n])
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				frontier = append(frontier, m)
			}
		}
	}
	if len(order) < len(g.ids) {
		var remaining []int
		for i, d := range indeg {
			if d > 0 {
				remaining = append(remaining, g.ids[i])
			}
		}
		return order, cycleError(remaining)
	}
	return order, nil
}
