package domain

import "sort"

// Graph is the immutable node index of one process.
// It is built once by the loader and is safe for concurrent read-only use.
type Graph struct {
	// ProcessID is the id of the process definition the graph was built from.
	ProcessID string
	// ProcessName is the optional display name of that process.
	ProcessName string

	nodes map[string]*Node
	order []string
}

// NewGraph builds a graph from nodes in document order.
// The caller must not mutate the nodes afterwards.
func NewGraph(processID, processName string, nodes []*Node) *Graph {
	g := &Graph{
		ProcessID:   processID,
		ProcessName: processName,
		nodes:       make(map[string]*Node, len(nodes)),
		order:       make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			continue
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	return g
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Nodes returns the nodes in document order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// IDs returns the node ids sorted lexically.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Strings(ids)
	return ids
}

// ByType returns the nodes of the given type in document order.
func (g *Graph) ByType(t NodeType) []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// TargetName returns the name of the node a flow points to, or "" if unresolved.
func (g *Graph) TargetName(f Flow) string {
	if n, ok := g.Node(f.Target); ok {
		return n.Name
	}
	return ""
}
