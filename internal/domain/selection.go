package domain

// SelectionKind says what a selection refers to
type SelectionKind int

const (
	SelectionNone SelectionKind = iota
	SelectionNode
	SelectionEdge
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionNode:
		return "node"
	case SelectionEdge:
		return "edge"
	default:
		return "none"
	}
}

// Selection references a node or edge by identity only
type Selection struct {
	Kind   SelectionKind
	NodeID string
	Edge   EdgeKey
}

// SelectNode returns a node selection
func SelectNode(id string) Selection {
	return Selection{Kind: SelectionNode, NodeID: id}
}

// SelectEdge returns an edge selection
func SelectEdge(sourceID, destID string) Selection {
	return Selection{Kind: SelectionEdge, Edge: EdgeKey{Source: sourceID, Target: destID}}
}

// IsZero reports whether nothing is selected
func (s Selection) IsZero() bool {
	return s.Kind == SelectionNone
}

// NodeDetails is the resolved view of a selected node
type NodeDetails struct {
	Node         Node
	Health       Health
	Activity     Activity
	LastActivity string
	Parent       *Node
	Children     []Node
	Incoming     []Edge
	Outgoing     []Edge
}

// EdgeDetails is the resolved view of a selected edge
type EdgeDetails struct {
	Edge        Edge
	Source      Node
	Destination Node
	Health      Health
	Volume      int
}

// DetailsView is what the details panel shows. Exactly one of Node or Edge is set.
type DetailsView struct {
	Node *NodeDetails
	Edge *EdgeDetails
}
