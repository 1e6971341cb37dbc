package canvas

import (
	"sort"
	"time"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// StepDelay is the pause between layers of an animated layout run
var StepDelay = 15 * time.Millisecond

type layoutRun struct {
	stop chan struct{}
	done chan struct{}
}

type placement struct {
	handle ports.Handle
	pos    Position
}

// RunLayout stops any running layout and starts a new one in the background.
// Top-level nodes that were placed before keep their position.
func (c *Canvas) RunLayout(cfg ports.LayoutConfig) error {
	c.StopLayout()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return ErrDestroyed
	}
	steps := c.planLayoutLocked()
	run := &layoutRun{stop: make(chan struct{}), done: make(chan struct{})}
	c.run = run
	c.runs++
	c.mu.Unlock()

	go c.execute(run, steps, cfg.Animate)
	return nil
}

// StopLayout halts the running layout, if any, and waits for it to exit
func (c *Canvas) StopLayout() {
	c.mu.Lock()
	run := c.run
	c.run = nil
	c.mu.Unlock()

	if run == nil {
		return
	}
	close(run.stop)
	<-run.done
}

// WaitLayout blocks until the running layout, if any, settles
func (c *Canvas) WaitLayout() {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run != nil {
		<-run.done
	}
}

// LayoutRuns returns how many layouts were started
func (c *Canvas) LayoutRuns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// LayoutRunning reports whether a layout is in progress
func (c *Canvas) LayoutRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

func (c *Canvas) execute(run *layoutRun, steps [][]placement, animate bool) {
	defer close(run.done)

	for i, step := range steps {
		if animate && i > 0 {
			select {
			case <-run.stop:
				return
			case <-time.After(StepDelay):
			}
		} else {
			select {
			case <-run.stop:
				return
			default:
			}
		}

		c.mu.Lock()
		for _, p := range step {
			if el, ok := c.elements[p.handle]; ok {
				el.pos = p.pos
				el.placed = true
			}
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.run == run {
		c.run = nil
	}
	c.mu.Unlock()
}

// planLayoutLocked assigns top-level nodes to layers by breadth-first search
// over the edges between them, one step per layer
func (c *Canvas) planLayoutLocked() [][]placement {
	children := c.childrenLocked()
	tops := children[ports.NoHandle]

	topOf := func(h ports.Handle) ports.Handle {
		for c.elements[h].parent != ports.NoHandle {
			h = c.elements[h].parent
		}
		return h
	}

	adjacent := make(map[ports.Handle]map[ports.Handle]bool)
	hasIncoming := make(map[ports.Handle]bool)
	for _, el := range c.elements {
		if el.kind != kindEdge {
			continue
		}
		s, t := topOf(el.source), topOf(el.target)
		if s == t {
			continue
		}
		if adjacent[s] == nil {
			adjacent[s] = make(map[ports.Handle]bool)
		}
		adjacent[s][t] = true
		hasIncoming[t] = true
	}

	var roots []ports.Handle
	for _, h := range tops {
		if !hasIncoming[h] {
			roots = append(roots, h)
		}
	}

	visited := make(map[ports.Handle]bool)
	for _, h := range roots {
		visited[h] = true
	}
	layers := [][]ports.Handle{roots}
	for {
		var next []ports.Handle
		for _, h := range layers[len(layers)-1] {
			for t := range adjacent[h] {
				if !visited[t] {
					visited[t] = true
					next = append(next, t)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Slice(next, func(i, j int) bool {
			return c.elements[next[i]].node.ID < c.elements[next[j]].node.ID
		})
		layers = append(layers, next)
	}
	for _, h := range tops {
		if !visited[h] {
			layers[0] = append(layers[0], h)
		}
	}

	used := make(map[Position]bool)
	for _, h := range tops {
		if el := c.elements[h]; el.placed {
			used[el.pos] = true
		}
	}

	steps := make([][]placement, 0, len(layers))
	for layer, handles := range layers {
		var step []placement
		for _, h := range handles {
			el := c.elements[h]
			pos := el.pos
			if !el.placed {
				pos = Position{Layer: layer}
				for used[pos] {
					pos.Slot++
				}
				used[pos] = true
			}
			step = append(step, placement{handle: h, pos: pos})
			step = append(step, c.placeChildren(children, h, pos.Layer)...)
		}
		steps = append(steps, step)
	}
	return steps
}

func (c *Canvas) placeChildren(children map[ports.Handle][]ports.Handle, parent ports.Handle, layer int) []placement {
	var out []placement
	for slot, h := range children[parent] {
		out = append(out, placement{handle: h, pos: Position{Layer: layer, Slot: slot}})
		out = append(out, c.placeChildren(children, h, layer)...)
	}
	return out
}

// Row is one visible node in drawing order
type Row struct {
	Handle    ports.Handle
	Node      domain.RenderNode
	Depth     int
	Pos       Position
	Placed    bool
	Container bool
	Style     map[string]string
}

// Rows returns the visible nodes depth first, top-level nodes ordered by
// layout position. Ghost nodes are hidden but mark their parent as a container.
func (c *Canvas) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	children := c.childrenLocked()
	tops := append([]ports.Handle(nil), children[ports.NoHandle]...)
	sort.SliceStable(tops, func(i, j int) bool {
		a, b := c.elements[tops[i]], c.elements[tops[j]]
		if a.placed != b.placed {
			return a.placed
		}
		if a.pos.Layer != b.pos.Layer {
			return a.pos.Layer < b.pos.Layer
		}
		if a.pos.Slot != b.pos.Slot {
			return a.pos.Slot < b.pos.Slot
		}
		return a.node.ID < b.node.ID
	})

	var rows []Row
	var walk func(h ports.Handle, depth int)
	walk = func(h ports.Handle, depth int) {
		el := c.elements[h]
		if el.node.Ghost {
			return
		}
		rows = append(rows, Row{
			Handle:    h,
			Node:      el.node,
			Depth:     depth,
			Pos:       el.pos,
			Placed:    el.placed,
			Container: len(children[h]) > 0,
			Style:     copyStyle(el.style),
		})
		for _, ch := range children[h] {
			walk(ch, depth+1)
		}
	}
	for _, h := range tops {
		walk(h, 0)
	}
	return rows
}

// EdgeRow is one edge with its resolved endpoints
type EdgeRow struct {
	Handle ports.Handle
	Edge   domain.RenderEdge
	Source domain.RenderNode
	Target domain.RenderNode
	Style  map[string]string
}

// EdgeRows returns every edge ordered by source and target name
func (c *Canvas) EdgeRows() []EdgeRow {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rows []EdgeRow
	for h, el := range c.elements {
		if el.kind != kindEdge {
			continue
		}
		rows = append(rows, EdgeRow{
			Handle: h,
			Edge:   el.edge,
			Source: c.elements[el.source].node,
			Target: c.elements[el.target].node,
			Style:  copyStyle(el.style),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Source.Name != rows[j].Source.Name {
			return rows[i].Source.Name < rows[j].Source.Name
		}
		if rows[i].Target.Name != rows[j].Target.Name {
			return rows[i].Target.Name < rows[j].Target.Name
		}
		return rows[i].Edge.Key.Less(rows[j].Edge.Key)
	})
	return rows
}

// Position returns the layout position of a node
func (c *Canvas) Position(h ports.Handle) (Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[h]
	if !ok || !el.placed {
		return Position{}, false
	}
	return el.pos, true
}

func copyStyle(style map[string]string) map[string]string {
	out := make(map[string]string, len(style))
	for k, v := range style {
		out[k] = v
	}
	return out
}
