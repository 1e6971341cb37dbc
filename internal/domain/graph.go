package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeType distinguishes services from the transactions they serve
type NodeType string

const (
	NodeTypeService     NodeType = "service"
	NodeTypeTransaction NodeType = "transaction"
)

// NodeTypes lists every known node type in display order
var NodeTypes = []NodeType{NodeTypeService, NodeTypeTransaction}

// Valid reports whether t is a known node type
func (t NodeType) Valid() bool {
	return t == NodeTypeService || t == NodeTypeTransaction
}

// Code returns the numeric code used in stored snapshots
func (t NodeType) Code() int {
	switch t {
	case NodeTypeService:
		return 1
	case NodeTypeTransaction:
		return 2
	default:
		return 0
	}
}

// NodeTypeFromCode is the inverse of Code
func NodeTypeFromCode(code int) (NodeType, error) {
	switch code {
	case 1:
		return NodeTypeService, nil
	case 2:
		return NodeTypeTransaction, nil
	default:
		return "", fmt.Errorf("unknown node type code: %d", code)
	}
}

// Counters holds the per-status call counts observed for a node or edge
type Counters struct {
	OK              int `json:"status_ok"`
	ExpectedError   int `json:"status_expected_error"`
	UnexpectedError int `json:"status_unexpected_error"`
}

// Volume is the total number of observed calls
func (c Counters) Volume() int {
	return c.OK + c.ExpectedError + c.UnexpectedError
}

// Node is a service or transaction as reported by the backend
type Node struct {
	ID          uuid.UUID  `json:"node_id"`
	Type        NodeType   `json:"node_type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Class       string     `json:"class,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Counters
}

// HasParent reports whether the node is nested under another node
func (n Node) HasParent() bool {
	return n.ParentID != nil
}

// ParentKey returns the parent id as a string, or "" for top-level nodes
func (n Node) ParentKey() string {
	if n.ParentID == nil {
		return ""
	}
	return n.ParentID.String()
}

// Edge is a directed call relationship between two nodes
type Edge struct {
	FromNodeID  uuid.UUID `json:"from_node_id"`
	ToNodeID    uuid.UUID `json:"to_node_id"`
	Description string    `json:"description,omitempty"`
	Class       string    `json:"class,omitempty"`
	Counters
}

// Key returns the identity of the edge. At most one edge exists per ordered pair.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.FromNodeID.String(), Target: e.ToNodeID.String()}
}

// EdgeKey identifies an edge by its endpoints
type EdgeKey struct {
	Source string
	Target string
}

func (k EdgeKey) String() string {
	return k.Source + "->" + k.Target
}

// ParseEdgeKey parses the "source->target" form produced by EdgeKey.String
func ParseEdgeKey(s string) (EdgeKey, error) {
	source, target, ok := strings.Cut(s, "->")
	if !ok || source == "" || target == "" {
		return EdgeKey{}, fmt.Errorf("invalid edge key %q: expected source->target", s)
	}
	return EdgeKey{Source: strings.TrimSpace(source), Target: strings.TrimSpace(target)}, nil
}

// Less orders edge keys by source, then target
func (k EdgeKey) Less(other EdgeKey) bool {
	if k.Source != other.Source {
		return k.Source < other.Source
	}
	return k.Target < other.Target
}

// Graph is the node and edge set of one snapshot
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID.String() == id {
			return n, true
		}
	}
	return Node{}, false
}

// EdgeByKey returns the edge with the given key
func (g Graph) EdgeByKey(key EdgeKey) (Edge, bool) {
	for _, e := range g.Edges {
		if e.Key() == key {
			return e, true
		}
	}
	return Edge{}, false
}

// Children returns the direct children of the node with the given id
func (g Graph) Children(id string) []Node {
	var children []Node
	for _, n := range g.Nodes {
		if n.ParentKey() == id {
			children = append(children, n)
		}
	}
	return children
}

// ActiveNode is a node annotated with the time it was last seen
type ActiveNode struct {
	Node
	LastActivity string `json:"last_activity"`
}

// ActiveNodes wraps the activity list as it appears on the wire
type ActiveNodes struct {
	Nodes []ActiveNode `json:"nodes"`
}

// NodeActivity is the activity record merged into a node by id
type NodeActivity struct {
	NodeID       string
	LastActivity string
}

// Payload is one response of the graph query endpoint
type Payload struct {
	Graph       Graph       `json:"graph"`
	ActiveNodes ActiveNodes `json:"active_nodes"`
}

// Activities flattens the active node list into activity records keyed by node id.
// When a node appears more than once the last record wins.
func (p *Payload) Activities() map[string]NodeActivity {
	out := make(map[string]NodeActivity, len(p.ActiveNodes.Nodes))
	for _, n := range p.ActiveNodes.Nodes {
		id := n.ID.String()
		out[id] = NodeActivity{NodeID: id, LastActivity: n.LastActivity}
	}
	return out
}

// Bucket is one time slot of the traffic histogram
type Bucket struct {
	TS string `json:"ts"`
	N  int    `json:"n"`
}

// Histogram is the response of the histogram endpoint
type Histogram struct {
	Buckets []Bucket `json:"buckets"`
}

// Max returns the largest bucket count
func (h *Histogram) Max() int {
	max := 0
	for _, b := range h.Buckets {
		if b.N > max {
			max = b.N
		}
	}
	return max
}

// DefaultBucketWidth is assumed when a histogram has fewer than two buckets
const DefaultBucketWidth = time.Minute

// BucketRange returns the time span covered by buckets from through to,
// inclusive. The last bucket is as wide as the gap between the first two.
func (h *Histogram) BucketRange(from, to int) (start, end time.Time, err error) {
	if from > to {
		from, to = to, from
	}
	if h == nil || from < 0 || to >= len(h.Buckets) {
		return time.Time{}, time.Time{}, fmt.Errorf("bucket range %d..%d out of bounds", from, to)
	}
	start, err = time.Parse(time.RFC3339, h.Buckets[from].TS)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bucket %d: %w", from, err)
	}
	last, err := time.Parse(time.RFC3339, h.Buckets[to].TS)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bucket %d: %w", to, err)
	}

	width := DefaultBucketWidth
	if len(h.Buckets) > 1 {
		first, err1 := time.Parse(time.RFC3339, h.Buckets[0].TS)
		second, err2 := time.Parse(time.RFC3339, h.Buckets[1].TS)
		if err1 == nil && err2 == nil && second.After(first) {
			width = second.Sub(first)
		}
	}
	return start, last.Add(width), nil
}

// ActivityHistogram counts active nodes per bucket of their last activity.
// Records with unparsable timestamps are skipped.
func (p *Payload) ActivityHistogram(bucket time.Duration) *Histogram {
	counts := make(map[time.Time]int)
	for _, n := range p.ActiveNodes.Nodes {
		t, ok := ParseActivity(n.LastActivity)
		if !ok {
			continue
		}
		counts[t.UTC().Truncate(bucket)]++
	}

	keys := make([]time.Time, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b time.Time) int { return a.Compare(b) })

	h := &Histogram{Buckets: make([]Bucket, 0, len(keys))}
	for _, k := range keys {
		h.Buckets = append(h.Buckets, Bucket{TS: k.Format(time.RFC3339), N: counts[k]})
	}
	return h
}
