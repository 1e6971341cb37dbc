package reconcile

import (
	"maps"
	"sort"

	"servicegraph/internal/domain"
)

// Committed is what the reconciler believes is present in the renderer
type Committed struct {
	Nodes map[string]struct{}
	Edges map[domain.EdgeKey]struct{}
	// Graph holds the records behind Nodes and Edges, used as the previous
	// snapshot when the next cycle resolves removals.
	Graph *domain.RenderGraph
}

// EmptyCommitted returns the committed set of a freshly mounted renderer
func EmptyCommitted() Committed {
	return Committed{
		Nodes: make(map[string]struct{}),
		Edges: make(map[domain.EdgeKey]struct{}),
		Graph: domain.NewRenderGraph(),
	}
}

// CommittedFrom builds the committed set for a render graph
func CommittedFrom(g *domain.RenderGraph) Committed {
	c := Committed{
		Nodes: make(map[string]struct{}, len(g.Nodes)),
		Edges: make(map[domain.EdgeKey]struct{}, len(g.Edges)),
		Graph: g,
	}
	for id := range g.Nodes {
		c.Nodes[id] = struct{}{}
	}
	for k := range g.Edges {
		c.Edges[k] = struct{}{}
	}
	return c
}

// Clone returns a copy that shares the immutable Graph
func (c Committed) Clone() Committed {
	return Committed{Nodes: maps.Clone(c.Nodes), Edges: maps.Clone(c.Edges), Graph: c.Graph}
}

// Delta is a sorted set of node ids and edge keys
type Delta struct {
	Nodes []string
	Edges []domain.EdgeKey
}

// Empty reports whether the delta names nothing
func (d Delta) Empty() bool {
	return len(d.Nodes) == 0 && len(d.Edges) == 0
}

// Staging is the diff of one reconciliation cycle
type Staging struct {
	Add    Delta
	Remove Delta
	// Reparent lists nodes present on both sides whose parent changed
	Reparent []string
	Previous *domain.RenderGraph
	Next     *domain.RenderGraph
}

// Empty reports whether applying the staging would change the structure
func (s Staging) Empty() bool {
	return s.Add.Empty() && s.Remove.Empty() && len(s.Reparent) == 0
}

// Plan diffs the committed set against the next render graph. It has no side
// effects. The next graph is validated first: a parent or edge endpoint that
// is not part of it, or a parent cycle, is an InvariantError.
func Plan(prev Committed, next *domain.RenderGraph) (Staging, Committed, error) {
	if err := Validate(next); err != nil {
		return Staging{}, prev, err
	}

	previous := prev.Graph
	if previous == nil {
		previous = domain.NewRenderGraph()
	}
	s := Staging{Previous: previous, Next: next}

	for id, n := range next.Nodes {
		if _, ok := prev.Nodes[id]; !ok {
			s.Add.Nodes = append(s.Add.Nodes, id)
			continue
		}
		if old, ok := previous.Nodes[id]; ok && old.ParentID != n.ParentID {
			s.Reparent = append(s.Reparent, id)
		}
	}
	for id := range prev.Nodes {
		if _, ok := next.Nodes[id]; !ok {
			s.Remove.Nodes = append(s.Remove.Nodes, id)
		}
	}
	for k := range next.Edges {
		if _, ok := prev.Edges[k]; !ok {
			s.Add.Edges = append(s.Add.Edges, k)
		}
	}
	for k := range prev.Edges {
		if _, ok := next.Edges[k]; !ok {
			s.Remove.Edges = append(s.Remove.Edges, k)
		}
	}

	sort.Strings(s.Add.Nodes)
	sort.Strings(s.Remove.Nodes)
	sort.Strings(s.Reparent)
	domain.SortEdgeKeys(s.Add.Edges)
	domain.SortEdgeKeys(s.Remove.Edges)

	return s, CommittedFrom(next), nil
}

// Validate checks that every parent and edge endpoint exists and parents form a forest
func Validate(g *domain.RenderGraph) error {
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.ParentID == "" {
			continue
		}
		if _, ok := g.Nodes[n.ParentID]; !ok {
			return violation(InvariantDanglingParent, "node %s references missing parent %s", id, n.ParentID)
		}
		seen := map[string]bool{id: true}
		for p := n.ParentID; p != ""; p = g.Nodes[p].ParentID {
			if seen[p] {
				return violation(InvariantParentCycle, "node %s is its own ancestor", id)
			}
			seen[p] = true
		}
	}
	for _, k := range g.EdgeKeys() {
		if _, ok := g.Nodes[k.Source]; !ok {
			return violation(InvariantDanglingEdge, "edge %s references missing source", k)
		}
		if _, ok := g.Nodes[k.Target]; !ok {
			return violation(InvariantDanglingEdge, "edge %s references missing target", k)
		}
	}
	return nil
}

// additionOrder sorts node ids so parents come before their children
func additionOrder(g *domain.RenderGraph, ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := g.Depth(out[i]), g.Depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}
