// Package depgraph gives the Dependency Validator (C8) a deterministic
// ordering over mod ids so that issue lists come out in the same order
// on every run regardless of map iteration: a dependency graph keyed by
// string mod id (Dependents, Dependencies, Optionals edges), with its
// root/frontier walk sorted at every step so Sorted() is reproducible.
package depgraph

import "sort"

// Node is a single mod id in the graph, with its dependency edges.
type Node struct {
	ID    string
	graph *Graph

	// Dependencies are ids this node requires (edges pointing "down").
	Dependencies map[string]struct{}
	// Dependents are ids that require this node (edges pointing "up").
	Dependents map[string]struct{}
	// Optionals are soft edges recorded on the node only: they take no part
	// in the order Sorted/Cyclic compute and add no Dependents entry.
	Optionals map[string]struct{}
}

// IsRoot reports whether no other node depends on this one.
func (n *Node) IsRoot() bool { return len(n.Dependents) == 0 }

// IsLeaf reports whether this node has no dependencies of its own.
func (n *Node) IsLeaf() bool { return len(n.Dependencies) == 0 }

// Graph is a mod-id dependency graph keyed by id.
type Graph struct {
	nodes map[string]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode returns the node for id, creating it if absent.
func (g *Graph) AddNode(id string) *Node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{
		ID:           id,
		graph:        g,
		Dependencies: make(map[string]struct{}),
		Dependents:   make(map[string]struct{}),
		Optionals:    make(map[string]struct{}),
	}
	g.nodes[id] = n
	return n
}

// AddDependency records that "from" requires "to". Both ids are created
// if they aren't already present.
func (g *Graph) AddDependency(from, to string) {
	a := g.AddNode(from)
	b := g.AddNode(to)
	a.Dependencies[to] = struct{}{}
	b.Dependents[from] = struct{}{}
}

// AddOptional records a soft dependency: from "wants" to, but its
// absence is not a validation failure.
func (g *Graph) AddOptional(from, to string) {
	a := g.AddNode(from)
	g.AddNode(to)
	a.Optionals[to] = struct{}{}
}

// Node looks up a node by id, or returns nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// walk runs the sorted Kahn's-algorithm frontier pass once: roots
// (nothing depends on them) first, ties broken lexicographically by id,
// descending through each node's dependencies as their in-degree (count
// of still-unvisited dependents) reaches zero. It returns the ordered
// nodes it reached plus the full sorted id list, so callers can tell
// which ids (if any) a dependency cycle kept out of the walk.
func (g *Graph) walk() (ordered []*Node, allIDs []string) {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	remaining := make(map[string]int, len(g.nodes))
	for _, id := range ids {
		remaining[id] = len(g.nodes[id].Dependents)
	}

	var frontier []string
	for _, id := range ids {
		if remaining[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	ordered = make([]*Node, 0, len(g.nodes))
	for len(frontier) > 0 {
		sort.Strings(frontier)
		id := frontier[0]
		frontier = frontier[1:]

		n := g.nodes[id]
		ordered = append(ordered, n)

		deps := make([]string, 0, len(n.Dependencies))
		for dep := range n.Dependencies {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			remaining[dep]--
			if remaining[dep] == 0 {
				frontier = append(frontier, dep)
			}
		}
	}

	return ordered, ids
}

// Sorted returns every node in a deterministic topological order. Nodes
// caught in a dependency cycle never reach in-degree zero through the
// frontier walk; rather than silently dropping them, Sorted appends them
// at the end, in id order, so a caller that simply ranges over the
// result still visits every node. Cyclic reports which ids, if any, were
// appended this way.
func (g *Graph) Sorted() []*Node {
	ordered, ids := g.walk()
	if len(ordered) == len(ids) {
		return ordered
	}

	visited := make(map[string]bool, len(ordered))
	for _, n := range ordered {
		visited[n.ID] = true
	}
	for _, id := range ids {
		if !visited[id] {
			ordered = append(ordered, g.nodes[id])
		}
	}
	return ordered
}

// Cyclic returns the ids that never reached in-degree zero in the
// frontier walk — every node that participates in a dependency cycle or
// is (directly or transitively) a dependency of a cycle member — in
// ascending id order. A node that merely depends on a cycle is not listed. An empty result means the
// graph is acyclic.
func (g *Graph) Cyclic() []string {
	ordered, ids := g.walk()
	if len(ordered) == len(ids) {
		return nil
	}

	visited := make(map[string]bool, len(ordered))
	for _, n := range ordered {
		visited[n.ID] = true
	}
	var cyclic []string
	for _, id := range ids {
		if !visited[id] {
			cyclic = append(cyclic, id)
		}
	}
	return cyclic
}
