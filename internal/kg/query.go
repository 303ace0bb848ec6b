package kg

import "github.com/guided-indexing/gik/internal/kgstore"

// DefaultMaxHops bounds how far BuildContext walks from its seed nodes.
const DefaultMaxHops = 2

// ContextOptions bounds a BuildContext call.
type ContextOptions struct {
	MaxHops  int
	MaxNodes int
	MaxEdges int
}

// DefaultContextOptions returns the spec's defaults: 2 hops, no node/edge
// cap (0 means unbounded).
func DefaultContextOptions() ContextOptions {
	return ContextOptions{MaxHops: DefaultMaxHops}
}

// Context is a bounded neighborhood of the knowledge graph around a set of
// seed node ids.
type Context struct {
	Nodes []kgstore.Node
	Edges []kgstore.Edge
}

// BuildContext seeds a breadth-first walk at seedIDs and expands up to
// opts.MaxHops over edges (undirected, since either endpoint may be the
// already-known side), capping at opts.MaxNodes/opts.MaxEdges when set.
func BuildContext(allNodes []kgstore.Node, allEdges []kgstore.Edge, seedIDs []string, opts ContextOptions) Context {
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}

	nodeByID := make(map[string]kgstore.Node, len(allNodes))
	for _, n := range allNodes {
		nodeByID[n.ID] = n
	}

	adjacency := make(map[string][]kgstore.Edge)
	for _, e := range allEdges {
		adjacency[e.From] = append(adjacency[e.From], e)
		adjacency[e.To] = append(adjacency[e.To], e)
	}

	visited := make(map[string]bool)
	var frontier []string
	for _, id := range seedIDs {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	seenEdge := make(map[string]bool)
	var edgeOrder []kgstore.Edge

	for hop := 0; hop < opts.MaxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, e := range adjacency[id] {
				other := e.To
				if other == id {
					other = e.From
				}
				key := e.From + "\x00" + e.To + "\x00" + e.Kind
				if !seenEdge[key] {
					seenEdge[key] = true
					edgeOrder = append(edgeOrder, e)
					if opts.MaxEdges > 0 && len(edgeOrder) >= opts.MaxEdges {
						break
					}
				}
				if !visited[other] {
					visited[other] = true
					next = append(next, other)
					if opts.MaxNodes > 0 && len(visited) >= opts.MaxNodes {
						break
					}
				}
			}
		}
		frontier = next
	}

	var nodes []kgstore.Node
	for id := range visited {
		if n, ok := nodeByID[id]; ok {
			nodes = append(nodes, n)
		}
	}

	if opts.MaxEdges > 0 && len(edgeOrder) > opts.MaxEdges {
		edgeOrder = edgeOrder[:opts.MaxEdges]
	}
	if opts.MaxNodes > 0 && len(nodes) > opts.MaxNodes {
		nodes = nodes[:opts.MaxNodes]
	}

	return Context{Nodes: nodes, Edges: edgeOrder}
}
