// Package canvas is an in-memory compound graph renderer. It behaves like a
// browser graph library: removing a node takes its descendants and incident
// edges with it, layout runs in the background, and taps are reported as events.
package canvas

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// ErrDestroyed is returned by every call after Destroy
var ErrDestroyed = errors.New("canvas destroyed")

// ErrUnknownHandle is returned for handles the canvas does not hold
var ErrUnknownHandle = errors.New("unknown handle")

type kind int

const (
	kindNode kind = iota
	kindEdge
)

// Position is a slot in the layered layout
type Position struct {
	Layer int
	Slot  int
}

type element struct {
	handle ports.Handle
	kind   kind
	node   domain.RenderNode
	edge   domain.RenderEdge
	parent ports.Handle
	source ports.Handle
	target ports.Handle
	style  map[string]string
	pos    Position
	placed bool
}

// Canvas implements ports.Renderer
type Canvas struct {
	mu        sync.Mutex
	last      ports.Handle
	elements  map[ports.Handle]*element
	nodes     int
	edges     int
	destroyed bool
	tap       func(ports.TapEvent)
	run       *layoutRun
	runs      int
	version   uint64
}

var _ ports.Renderer = (*Canvas)(nil)

// New creates an empty canvas
func New() *Canvas {
	return &Canvas{elements: make(map[ports.Handle]*element)}
}

// Factory returns a ports.RendererFactory producing fresh canvases and
// reporting each one to created, which may be nil
func Factory(created func(*Canvas)) ports.RendererFactory {
	return func() (ports.Renderer, error) {
		c := New()
		if created != nil {
			created(c)
		}
		return c, nil
	}
}

// AddNode adds a node under parent, or at the top level for NoHandle
func (c *Canvas) AddNode(node domain.RenderNode, parent ports.Handle) (ports.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ports.NoHandle, ErrDestroyed
	}
	if parent != ports.NoHandle {
		if _, err := c.nodeLocked(parent); err != nil {
			return ports.NoHandle, fmt.Errorf("parent: %w", err)
		}
	}

	c.last++
	c.elements[c.last] = &element{
		handle: c.last,
		kind:   kindNode,
		node:   node,
		parent: parent,
		style:  node.Style(),
	}
	c.nodes++
	c.version++
	return c.last, nil
}

// AddEdge connects two nodes
func (c *Canvas) AddEdge(edge domain.RenderEdge, source, target ports.Handle) (ports.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ports.NoHandle, ErrDestroyed
	}
	if _, err := c.nodeLocked(source); err != nil {
		return ports.NoHandle, fmt.Errorf("source: %w", err)
	}
	if _, err := c.nodeLocked(target); err != nil {
		return ports.NoHandle, fmt.Errorf("target: %w", err)
	}

	c.last++
	c.elements[c.last] = &element{
		handle: c.last,
		kind:   kindEdge,
		edge:   edge,
		source: source,
		target: target,
		style:  map[string]string{domain.StyleHealth: string(edge.Health)},
	}
	c.edges++
	c.version++
	return c.last, nil
}

// RemoveNode removes a node with all of its descendants and every edge
// touching them. It returns the number of nodes removed.
func (c *Canvas) RemoveNode(h ports.Handle) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return 0, ErrDestroyed
	}
	if _, err := c.nodeLocked(h); err != nil {
		return 0, err
	}

	doomed := map[ports.Handle]bool{h: true}
	for changed := true; changed; {
		changed = false
		for eh, el := range c.elements {
			if el.kind == kindNode && !doomed[eh] && doomed[el.parent] {
				doomed[eh] = true
				changed = true
			}
		}
	}

	for eh, el := range c.elements {
		if el.kind == kindEdge && (doomed[el.source] || doomed[el.target]) {
			delete(c.elements, eh)
			c.edges--
		}
	}
	for nh := range doomed {
		delete(c.elements, nh)
		c.nodes--
	}
	c.version++
	return len(doomed), nil
}

// RemoveEdge removes an edge
func (c *Canvas) RemoveEdge(h ports.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	el, ok := c.elements[h]
	if !ok || el.kind != kindEdge {
		return fmt.Errorf("edge %d: %w", h, ErrUnknownHandle)
	}
	delete(c.elements, h)
	c.edges--
	c.version++
	return nil
}

// Reparent moves a node under parent, or to the top level for NoHandle
func (c *Canvas) Reparent(h ports.Handle, parent ports.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	el, err := c.nodeLocked(h)
	if err != nil {
		return err
	}
	if parent != ports.NoHandle {
		if _, err := c.nodeLocked(parent); err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		for p := parent; p != ports.NoHandle; p = c.elements[p].parent {
			if p == h {
				return fmt.Errorf("cannot move node %d under its own descendant", h)
			}
		}
	}
	el.parent = parent
	c.version++
	return nil
}

// SetStyle sets one style property of a node or edge
func (c *Canvas) SetStyle(h ports.Handle, property, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	el, ok := c.elements[h]
	if !ok {
		return fmt.Errorf("element %d: %w", h, ErrUnknownHandle)
	}
	el.style[property] = value
	c.version++
	return nil
}

// UpdateNode replaces the record of a node, keeping its parent and style
func (c *Canvas) UpdateNode(h ports.Handle, node domain.RenderNode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	el, err := c.nodeLocked(h)
	if err != nil {
		return err
	}
	el.node = node
	c.version++
	return nil
}

// UpdateEdge replaces the record of an edge, keeping its endpoints and style
func (c *Canvas) UpdateEdge(h ports.Handle, edge domain.RenderEdge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return ErrDestroyed
	}
	el, ok := c.elements[h]
	if !ok || el.kind != kindEdge {
		return fmt.Errorf("edge %d: %w", h, ErrUnknownHandle)
	}
	el.edge = edge
	c.version++
	return nil
}

// Contains reports whether h is a live node or edge
func (c *Canvas) Contains(h ports.Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.elements[h]
	return ok && !c.destroyed
}

// Parent returns the parent of a node
func (c *Canvas) Parent(h ports.Handle) (ports.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[h]
	if !ok || el.kind != kindNode {
		return ports.NoHandle, false
	}
	return el.parent, true
}

// NodeCount returns the number of live nodes
func (c *Canvas) NodeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes
}

// EdgeCount returns the number of live edges
func (c *Canvas) EdgeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edges
}

// OnTap registers the tap handler, replacing any previous one
func (c *Canvas) OnTap(handler func(ports.TapEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tap = handler
}

// Tap simulates the user activating element h. An unknown handle is a background tap.
func (c *Canvas) Tap(h ports.Handle) {
	c.mu.Lock()
	handler := c.tap
	ev := ports.TapEvent{Kind: ports.TapBackground}
	if el, ok := c.elements[h]; ok && !c.destroyed {
		switch el.kind {
		case kindNode:
			ev = ports.TapEvent{Kind: ports.TapNode, NodeID: el.node.ID}
		case kindEdge:
			ev = ports.TapEvent{Kind: ports.TapEdge, Edge: el.edge.Key}
		}
	}
	c.mu.Unlock()

	if handler != nil {
		handler(ev)
	}
}

// Destroy stops layout and releases every element
func (c *Canvas) Destroy() error {
	c.StopLayout()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return ErrDestroyed
	}
	c.destroyed = true
	c.elements = make(map[ports.Handle]*element)
	c.nodes, c.edges = 0, 0
	c.tap = nil
	c.version++
	return nil
}

// Destroyed reports whether Destroy has been called
func (c *Canvas) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Version increases on every mutation
func (c *Canvas) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Style returns a copy of the style of h
func (c *Canvas) Style(h ports.Handle) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[h]
	if !ok {
		return nil
	}
	return copyStyle(el.style)
}

func (c *Canvas) nodeLocked(h ports.Handle) (*element, error) {
	el, ok := c.elements[h]
	if !ok || el.kind != kindNode {
		return nil, fmt.Errorf("node %d: %w", h, ErrUnknownHandle)
	}
	return el, nil
}

// childrenLocked returns the child handles of every node, each list sorted by node id
func (c *Canvas) childrenLocked() map[ports.Handle][]ports.Handle {
	children := make(map[ports.Handle][]ports.Handle)
	for h, el := range c.elements {
		if el.kind == kindNode {
			children[el.parent] = append(children[el.parent], h)
		}
	}
	for p := range children {
		list := children[p]
		sort.Slice(list, func(i, j int) bool {
			return c.elements[list[i]].node.ID < c.elements[list[j]].node.ID
		})
	}
	return children
}
