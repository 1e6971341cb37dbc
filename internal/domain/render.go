package domain

import "sort"

// GhostSuffix is appended to a service id to form its ghost child id
const GhostSuffix = "-ghost"

// GhostID returns the id of the ghost child synthesized for a service
func GhostID(serviceID string) string {
	return serviceID + GhostSuffix
}

// RenderNode is a renderer-ready node record
type RenderNode struct {
	ID       string
	ParentID string
	Type     NodeType
	Name     string
	Health   Health
	Activity Activity
	Ghost    bool
	// Source is the backend node; zero for ghosts.
	Source Node
	// LastActivity is the raw activity timestamp, empty when none was reported.
	LastActivity string
}

// Style returns the style values the renderer shows for this node
func (n RenderNode) Style() map[string]string {
	return map[string]string{
		StyleHealth:   string(n.Health),
		StyleActivity: string(n.Activity),
	}
}

// SameContent reports whether two records show the same data. Health and
// activity are compared through styles and parent links through reparenting,
// so they are ignored here.
func (n RenderNode) SameContent(o RenderNode) bool {
	return n.ID == o.ID &&
		n.Type == o.Type &&
		n.Name == o.Name &&
		n.Ghost == o.Ghost &&
		n.LastActivity == o.LastActivity &&
		sameNode(n.Source, o.Source)
}

func sameNode(a, b Node) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Class == b.Class &&
		a.ParentKey() == b.ParentKey() &&
		a.Counters == b.Counters
}

// RenderEdge is a renderer-ready edge record
type RenderEdge struct {
	Key    EdgeKey
	Health Health
	Volume int
	Source Edge
}

// SameContent reports whether two edge records show the same data, ignoring health
func (e RenderEdge) SameContent(o RenderEdge) bool {
	return e.Key == o.Key &&
		e.Volume == o.Volume &&
		e.Source == o.Source
}

// Style property names understood by renderers
const (
	StyleHealth   = "health"
	StyleActivity = "activity"
	StyleWidth    = "width"
)

// RenderGraph is the transformed form of one snapshot
type RenderGraph struct {
	Nodes map[string]RenderNode
	Edges map[EdgeKey]RenderEdge
}

// NewRenderGraph returns an empty render graph
func NewRenderGraph() *RenderGraph {
	return &RenderGraph{
		Nodes: make(map[string]RenderNode),
		Edges: make(map[EdgeKey]RenderEdge),
	}
}

// NodeIDs returns the node ids sorted
func (g *RenderGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeKeys returns the edge keys sorted
func (g *RenderGraph) EdgeKeys() []EdgeKey {
	keys := make([]EdgeKey, 0, len(g.Edges))
	for k := range g.Edges {
		keys = append(keys, k)
	}
	SortEdgeKeys(keys)
	return keys
}

// Children returns the sorted ids of the direct children of id
func (g *RenderGraph) Children(id string) []string {
	var children []string
	for cid, n := range g.Nodes {
		if n.ParentID == id {
			children = append(children, cid)
		}
	}
	sort.Strings(children)
	return children
}

// Depth returns how many ancestors a node has. Cycles stop the walk.
func (g *RenderGraph) Depth(id string) int {
	depth := 0
	seen := map[string]bool{id: true}
	for {
		n, ok := g.Nodes[id]
		if !ok || n.ParentID == "" || seen[n.ParentID] {
			return depth
		}
		seen[n.ParentID] = true
		id = n.ParentID
		depth++
	}
}

// SortEdgeKeys sorts keys in place by source, then target
func SortEdgeKeys(keys []EdgeKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}
