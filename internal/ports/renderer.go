package ports

import "servicegraph/internal/domain"

// Handle references an element inside a renderer. The zero Handle means none.
type Handle uint64

// NoHandle is used as parent for top-level nodes
const NoHandle Handle = 0

// LayoutConfig parameterizes a layout run
type LayoutConfig struct {
	Name    string
	Spacing int
	Animate bool
}

// TapKind says what a tap landed on
type TapKind int

const (
	TapBackground TapKind = iota
	TapNode
	TapEdge
)

// TapEvent is emitted by the renderer when the user activates an element
type TapEvent struct {
	Kind   TapKind
	NodeID string
	Edge   domain.EdgeKey
}

// Renderer is a stateful compound-graph canvas. It is driven by a single writer.
type Renderer interface {
	// Mutation
	AddNode(node domain.RenderNode, parent Handle) (Handle, error)
	AddEdge(edge domain.RenderEdge, source, target Handle) (Handle, error)
	// RemoveNode removes a node and returns how many nodes physically
	// disappeared, which includes descendants still attached to it.
	RemoveNode(h Handle) (int, error)
	RemoveEdge(h Handle) error
	// Reparent moves a node under parent, or detaches it when parent is NoHandle.
	Reparent(h Handle, parent Handle) error
	SetStyle(h Handle, property, value string) error
	// UpdateNode and UpdateEdge replace the record shown for an existing element
	UpdateNode(h Handle, node domain.RenderNode) error
	UpdateEdge(h Handle, edge domain.RenderEdge) error

	// Inspection
	Contains(h Handle) bool
	// Parent returns the parent of h, NoHandle for top-level nodes. ok is false when h is unknown.
	Parent(h Handle) (parent Handle, ok bool)
	NodeCount() int
	EdgeCount() int

	// Layout runs asynchronously until it settles or is stopped
	RunLayout(cfg LayoutConfig) error
	StopLayout()

	// Events
	OnTap(handler func(TapEvent))

	// Destroy releases the canvas. Every call afterwards fails.
	Destroy() error
}

// RendererFactory creates a renderer on mount
type RendererFactory func() (Renderer, error)
