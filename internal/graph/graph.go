// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph declares the workflow DAG: nodes, dependency edges, and the
// branch predicates that gate edges. Phases are not hardcoded; they fall
// out of the edge structure (see Phases).
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/niche-engine/internal/node"
	"github.com/pdiddy/niche-engine/internal/state"
)

// Predicate is a pure function of the research state. It must not have
// side effects.
type Predicate func(*state.Snapshot) bool

// Edge A -> B means B may run only after A. When names the predicate that
// must hold for B to run; an empty name always holds.
type Edge struct {
	From string
	To   string
	When string

	pred Predicate
}

// Holds evaluates the edge predicate against snap.
func (e Edge) Holds(snap *state.Snapshot) bool {
	return e.pred == nil || e.pred(snap)
}

// Vertex is a node placed in the graph.
type Vertex struct {
	Node node.Node

	// Timeout overrides the scheduler's default node timeout when positive.
	Timeout time.Duration
}

// ID returns the node id.
func (v Vertex) ID() string { return v.Node.ID() }

// Graph is a workflow DAG. Build it with AddNode and AddEdge, then call
// Validate before executing it.
type Graph struct {
	name     string
	vertices []Vertex
	index    map[string]int
	edges    []Edge
	in       map[string][]Edge
	out      map[string][]Edge
}

// New returns an empty graph.
func New(name string) *Graph {
	return &Graph{
		name:  name,
		index: map[string]int{},
		in:    map[string][]Edge{},
		out:   map[string][]Edge{},
	}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// AddNode appends a node. Declaration order breaks ties between ready
// nodes, which keeps runs deterministic.
func (g *Graph) AddNode(n node.Node, timeout time.Duration) error {
	id := n.ID()
	if id == "" {
		return errors.New("node has an empty id")
	}
	if _, dup := g.index[id]; dup {
		return fmt.Errorf("duplicate node %q", id)
	}
	g.index[id] = len(g.vertices)
	g.vertices = append(g.vertices, Vertex{Node: n, Timeout: timeout})
	return nil
}

// AddEdge adds from -> to. name labels the predicate for logs and
// definitions; pred may be nil for an unconditional edge.
func (g *Graph) AddEdge(from, to, name string, pred Predicate) error {
	if _, ok := g.index[from]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown node %q", from, to, from)
	}
	if _, ok := g.index[to]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown node %q", from, to, to)
	}
	if from == to {
		return fmt.Errorf("edge %s -> %s: self loop", from, to)
	}
	for _, e := range g.out[from] {
		if e.To == to {
			return fmt.Errorf("duplicate edge %s -> %s", from, to)
		}
	}
	if name != "" && pred == nil {
		return fmt.Errorf("edge %s -> %s: predicate %q has no function", from, to, name)
	}
	e := Edge{From: from, To: to, When: name, pred: pred}
	g.edges = append(g.edges, e)
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return nil
}

// Validate checks that the graph is non-empty and acyclic.
func (g *Graph) Validate() error {
	if len(g.vertices) == 0 {
		return errors.New("graph has no nodes")
	}
	_, err := g.Order()
	return err
}

// Vertices returns the nodes in declaration order.
func (g *Graph) Vertices() []Vertex { return slices.Clone(g.vertices) }

// Vertex looks up a node by id.
func (g *Graph) Vertex(id string) (Vertex, bool) {
	i, ok := g.index[id]
	if !ok {
		return Vertex{}, false
	}
	return g.vertices[i], true
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Incoming returns the edges into id.
func (g *Graph) Incoming(id string) []Edge { return g.in[id] }

// Outgoing returns the edges out of id.
func (g *Graph) Outgoing(id string) []Edge { return g.out[id] }

// Order returns a topological order (Kahn's algorithm). Among nodes that
// become ready together, declaration order wins. A cycle is an error
// naming the nodes left unordered.
func (g *Graph) Order() ([]string, error) {
	indeg := make([]int, len(g.vertices))
	for _, e := range g.edges {
		indeg[g.index[e.To]]++
	}

	var order []string
	done := make([]bool, len(g.vertices))
	for len(order) < len(g.vertices) {
		progressed := false
		for i, v := range g.vertices {
			if done[i] || indeg[i] > 0 {
				continue
			}
			done[i] = true
			progressed = true
			order = append(order, v.ID())
			for _, e := range g.out[v.ID()] {
				indeg[g.index[e.To]]--
			}
		}
		if !progressed {
			var stuck []string
			for i, v := range g.vertices {
				if !done[i] {
					stuck = append(stuck, v.ID())
				}
			}
			return nil, fmt.Errorf("graph %s has a cycle through %s", g.name, strings.Join(stuck, ", "))
		}
	}
	return order, nil
}

// Ancestors returns every node with a path to id.
func (g *Graph) Ancestors(id string) map[string]bool {
	return g.walk(id, func(n string) []string {
		var out []string
		for _, e := range g.in[n] {
			out = append(out, e.From)
		}
		return out
	})
}

// Descendants returns every node reachable from id.
func (g *Graph) Descendants(id string) map[string]bool {
	return g.walk(id, func(n string) []string {
		var out []string
		for _, e := range g.out[n] {
			out = append(out, e.To)
		}
		return out
	})
}

// Independent reports whether neither node can reach the other.
func (g *Graph) Independent(a, b string) bool {
	return a != b && !g.Ancestors(b)[a] && !g.Descendants(b)[a]
}

func (g *Graph) walk(start string, next func(string) []string) map[string]bool {
	seen := map[string]bool{}
	stack := next(start)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, next(n)...)
	}
	return seen
}

// Phases groups nodes by longest distance from a root. Nodes in the same
// phase never depend on each other. The graph must be valid.
func (g *Graph) Phases() [][]string {
	order, err := g.Order()
	if err != nil {
		return nil
	}
	depth := map[string]int{}
	maxDepth := 0
	for _, id := range order {
		d := 0
		for _, e := range g.in[id] {
			d = max(d, depth[e.From]+1)
		}
		depth[id] = d
		maxDepth = max(maxDepth, d)
	}
	phases := make([][]string, maxDepth+1)
	for _, v := range g.vertices {
		d := depth[v.ID()]
		phases[d] = append(phases[d], v.ID())
	}
	return phases
}
