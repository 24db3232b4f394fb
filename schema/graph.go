package schema

import "sort"

// Graph is an immutable arena of schema nodes. A Graph is safe for concurrent
// use by any number of readers; it is never modified after Builder.Build.
type Graph struct {
	nodes []Node
	names map[string]NodeID
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Valid reports whether id addresses a node of g.
func (g *Graph) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// Node returns the node for id. It panics on an out-of-range handle, which can
// only come from mixing handles of different graphs.
func (g *Graph) Node(id NodeID) *Node {
	return &g.nodes[id]
}

// Lookup returns the node registered under a component name.
func (g *Graph) Lookup(name string) (NodeID, bool) {
	id, ok := g.names[name]
	return id, ok
}

// Names returns the registered component names in sorted order.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.names))
	for n := range g.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
