// Package reconcile keeps a stateful compound-graph renderer in lock-step with
// a stream of graph snapshots. Plan computes the diff of one cycle without
// side effects; Reconciler applies it through explicit id to handle maps and
// verifies the renderer afterwards.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
	"servicegraph/internal/transform"
)

// State is the lifecycle state of a Reconciler
type State int

const (
	StateEmpty State = iota
	StateMounted
	StateReconciling
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateMounted:
		return "mounted"
	case StateReconciling:
		return "reconciling"
	case StateUnmounted:
		return "unmounted"
	default:
		return "unknown"
	}
}

// Options configure classification, edge widths and layout
type Options struct {
	Thresholds     domain.Thresholds
	ActivityWindow time.Duration
	MinWidth       float64
	MaxWidth       float64
	Layout         ports.LayoutConfig
	Now            func() time.Time
	Metrics        *Metrics
}

// DefaultOptions returns options with the default thresholds and widths
func DefaultOptions() Options {
	return Options{
		Thresholds:     domain.DefaultThresholds(),
		ActivityWindow: domain.DefaultActivityWindow,
		MinWidth:       transform.DefaultMinWidth,
		MaxWidth:       transform.DefaultMaxWidth,
		Layout:         ports.LayoutConfig{Name: "layered", Spacing: 2},
		Now:            time.Now,
	}
}

// Operations counts the renderer calls issued in one cycle
type Operations struct {
	AddedNodes   int
	RemovedNodes int
	AddedEdges   int
	RemovedEdges int
	Detached     int
	Reparented   int
	Repaired     int
	Styled       int
	Updated      int
}

// Structural returns the number of structural mutations
func (o Operations) Structural() int {
	return o.AddedNodes + o.RemovedNodes + o.AddedEdges + o.RemovedEdges + o.Detached + o.Reparented + o.Repaired
}

func (o Operations) byName() map[string]int {
	return map[string]int{
		"add_node":    o.AddedNodes,
		"remove_node": o.RemovedNodes,
		"add_edge":    o.AddedEdges,
		"remove_edge": o.RemovedEdges,
		"detach":      o.Detached,
		"reparent":    o.Reparented,
		"repair":      o.Repaired,
		"style":       o.Styled,
		"update":      o.Updated,
	}
}

// Result describes one completed or aborted cycle
type Result struct {
	Staging    Staging
	Operations Operations
	LayoutRun  bool
	Duration   time.Duration
}

// NoOp reports whether the cycle changed no structure
func (r *Result) NoOp() bool {
	return r.Staging.Empty()
}

// Reconciler owns the renderer between Mount and Unmount and is its only writer.
// Cycles are serialized.
type Reconciler struct {
	mu        sync.Mutex
	opts      Options
	state     State
	renderer  ports.Renderer
	committed Committed
	nodes     map[string]ports.Handle
	edges     map[domain.EdgeKey]ports.Handle
	styles    map[ports.Handle]map[string]string
}

// New creates a reconciler in the Empty state
func New(opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ActivityWindow == 0 {
		opts.ActivityWindow = domain.DefaultActivityWindow
	}
	r := &Reconciler{opts: opts}
	r.reset()
	return r
}

func (r *Reconciler) reset() {
	r.committed = EmptyCommitted()
	r.nodes = make(map[string]ports.Handle)
	r.edges = make(map[domain.EdgeKey]ports.Handle)
	r.styles = make(map[ports.Handle]map[string]string)
}

// State returns the current lifecycle state
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Committed returns a copy of the committed set
func (r *Reconciler) Committed() Committed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed.Clone()
}

// NodeHandle returns the renderer handle of a committed node
func (r *Reconciler) NodeHandle(id string) (ports.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.nodes[id]
	return h, ok
}

// EdgeHandle returns the renderer handle of a committed edge
func (r *Reconciler) EdgeHandle(k domain.EdgeKey) (ports.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.edges[k]
	return h, ok
}

// Mount acquires a renderer from factory. A failing or panicking factory
// leaves the reconciler Empty.
func (r *Reconciler) Mount(factory ports.RendererFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateUnmounted:
		return ErrUnmounted
	case StateMounted, StateReconciling:
		return ErrMounted
	}

	var renderer ports.Renderer
	err := guard("mount", func() error {
		var err error
		renderer, err = factory()
		return err
	})
	if err != nil {
		return err
	}
	if renderer == nil {
		return &RendererError{Op: "mount", Err: errors.New("factory returned no renderer")}
	}

	r.renderer = renderer
	r.reset()
	r.state = StateMounted
	return nil
}

// Unmount stops any layout and destroys the renderer. It is idempotent and
// the reconciler cannot be mounted again.
func (r *Reconciler) Unmount() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateUnmounted {
		return nil
	}
	r.state = StateUnmounted
	renderer := r.renderer
	r.renderer = nil
	r.reset()

	if renderer == nil {
		return nil
	}
	return guard("destroy", func() error {
		renderer.StopLayout()
		return renderer.Destroy()
	})
}

// OnTap forwards renderer tap events to handler
func (r *Reconciler) OnTap(handler func(ports.TapEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.renderer == nil {
		return ErrNotMounted
	}
	return guard("on tap", func() error {
		r.renderer.OnTap(handler)
		return nil
	})
}

// Reconcile brings the renderer in line with payload. On an invariant
// violation or renderer failure the cycle is aborted, the committed set is
// rebuilt from what the renderer actually holds, and the error is returned.
func (r *Reconciler) Reconcile(ctx context.Context, payload *domain.Payload) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateEmpty:
		return nil, ErrNotMounted
	case StateUnmounted:
		return nil, ErrUnmounted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	start := time.Now()
	r.state = StateReconciling
	defer func() { r.state = StateMounted }()

	next := transform.Payload(payload, transform.Options{
		Thresholds:     r.opts.Thresholds,
		ActivityWindow: r.opts.ActivityWindow,
		Now:            r.opts.Now(),
	})

	staging, committed, err := Plan(r.committed, next)
	if err != nil {
		r.abort(ctx, err, start)
		return nil, err
	}

	res := &Result{Staging: staging}
	err = guard("apply", func() error { return r.apply(staging, &res.Operations) })
	if err == nil {
		err = r.check(next)
	}
	if err != nil {
		r.resync(staging)
		r.opts.Metrics.ops(res.Operations)
		r.abort(ctx, err, start)
		res.Duration = time.Since(start)
		return res, err
	}

	r.committed = committed

	if !staging.Empty() {
		layout := r.opts.Layout
		if err := guard("layout", func() error { return r.renderer.RunLayout(layout) }); err != nil {
			log.Warn("layout failed", "error", err)
		} else {
			res.LayoutRun = true
		}
	}

	res.Duration = time.Since(start)
	r.opts.Metrics.ops(res.Operations)
	r.opts.Metrics.cycle(cycleResult(res), res.Duration)
	log.Debug("reconciled",
		"nodes", len(next.Nodes),
		"edges", len(next.Edges),
		"added_nodes", res.Operations.AddedNodes,
		"removed_nodes", res.Operations.RemovedNodes,
		"added_edges", res.Operations.AddedEdges,
		"removed_edges", res.Operations.RemovedEdges,
		"styled", res.Operations.Styled,
		"updated", res.Operations.Updated,
		"layout", res.LayoutRun,
		"duration", res.Duration)
	return res, nil
}

func cycleResult(res *Result) string {
	if res.NoOp() {
		return "noop"
	}
	return "applied"
}

func (r *Reconciler) abort(ctx context.Context, err error, start time.Time) {
	log := logging.FromContext(ctx)
	var inv *InvariantError
	if errors.As(err, &inv) {
		log.Error("reconcile cycle aborted", "invariant", inv.Invariant, "detail", inv.Detail)
		r.opts.Metrics.violation(inv.Invariant)
		r.opts.Metrics.cycle("invariant", time.Since(start))
		return
	}
	log.Error("reconcile cycle failed", "error", err)
	r.opts.Metrics.cycle("error", time.Since(start))
}

// apply issues the renderer calls for one staging, in dependency order
func (r *Reconciler) apply(s Staging, ops *Operations) error {
	if s.Empty() {
		return r.applyChanges(s, ops)
	}

	r.renderer.StopLayout()

	removing := make(map[string]bool, len(s.Remove.Nodes))
	for _, id := range s.Remove.Nodes {
		removing[id] = true
	}

	for _, id := range s.Remove.Nodes {
		if err := r.removeNode(id, ops); err != nil {
			return err
		}
	}

	for _, k := range s.Remove.Edges {
		h, ok := r.edges[k]
		if !ok {
			return violation(InvariantMissingEdge, "edge %s is committed but has no handle", k)
		}
		delete(r.edges, k)
		delete(r.styles, h)
		if !r.renderer.Contains(h) {
			if removing[k.Source] || removing[k.Target] {
				continue
			}
			return violation(InvariantMissingEdge, "edge %s is committed but not in the renderer", k)
		}
		if err := r.renderer.RemoveEdge(h); err != nil {
			return &RendererError{Op: "remove edge " + k.String(), Err: err}
		}
		ops.RemovedEdges++
	}

	for _, id := range additionOrder(s.Next, s.Add.Nodes) {
		rn := s.Next.Nodes[id]
		parent := ports.NoHandle
		if ph, ok := r.nodes[rn.ParentID]; ok && rn.ParentID != "" {
			parent = ph
		}
		h, err := r.renderer.AddNode(rn, parent)
		if err != nil {
			return &RendererError{Op: "add node " + id, Err: err}
		}
		r.nodes[id] = h
		r.styles[h] = rn.Style()
		ops.AddedNodes++
	}

	for _, k := range s.Add.Edges {
		if err := r.addEdge(s.Next.Edges[k]); err != nil {
			return err
		}
		ops.AddedEdges++
	}

	if err := r.repair(s, ops); err != nil {
		return err
	}
	return r.applyChanges(s, ops)
}

// applyChanges refreshes elements kept from the previous snapshot whose
// record or styles differ
func (r *Reconciler) applyChanges(s Staging, ops *Operations) error {
	if err := r.applyContent(s, ops); err != nil {
		return err
	}
	return r.applyStyles(s.Next, ops)
}

// applyContent replaces the records of nodes and edges whose data changed
func (r *Reconciler) applyContent(s Staging, ops *Operations) error {
	for _, id := range s.Next.NodeIDs() {
		old, ok := s.Previous.Nodes[id]
		rn := s.Next.Nodes[id]
		if !ok || old.SameContent(rn) {
			continue
		}
		h, ok := r.nodes[id]
		if !ok {
			return violation(InvariantMissingNode, "node %s has no handle", id)
		}
		if err := r.renderer.UpdateNode(h, rn); err != nil {
			return &RendererError{Op: "update node " + id, Err: err}
		}
		ops.Updated++
	}

	for _, k := range s.Next.EdgeKeys() {
		old, ok := s.Previous.Edges[k]
		re := s.Next.Edges[k]
		if !ok || old.SameContent(re) {
			continue
		}
		h, ok := r.edges[k]
		if !ok {
			return violation(InvariantMissingEdge, "edge %s has no handle", k)
		}
		if err := r.renderer.UpdateEdge(h, re); err != nil {
			return &RendererError{Op: "update edge " + k.String(), Err: err}
		}
		ops.Updated++
	}
	return nil
}

// removeNode detaches the node's children and the node itself before removing
// it, so the renderer never cascades into nodes that are not being removed.
func (r *Reconciler) removeNode(id string, ops *Operations) error {
	h, ok := r.nodes[id]
	if !ok || !r.renderer.Contains(h) {
		return violation(InvariantMissingNode, "node %s is committed but not in the renderer", id)
	}

	for _, child := range r.childrenOf(h) {
		if err := r.renderer.Reparent(child, ports.NoHandle); err != nil {
			return &RendererError{Op: "detach child of " + id, Err: err}
		}
		ops.Detached++
	}
	if parent, _ := r.renderer.Parent(h); parent != ports.NoHandle {
		if err := r.renderer.Reparent(h, ports.NoHandle); err != nil {
			return &RendererError{Op: "detach " + id, Err: err}
		}
		ops.Detached++
	}

	removed, err := r.renderer.RemoveNode(h)
	if err != nil {
		return &RendererError{Op: "remove node " + id, Err: err}
	}
	delete(r.nodes, id)
	delete(r.styles, h)
	ops.RemovedNodes++
	if removed != 1 {
		return violation(InvariantCascade, "removing node %s removed %d nodes", id, removed)
	}
	return nil
}

// childrenOf returns the handles the renderer currently holds under h, ordered by node id
func (r *Reconciler) childrenOf(h ports.Handle) []ports.Handle {
	var ids []string
	for id, ch := range r.nodes {
		if p, ok := r.renderer.Parent(ch); ok && p == h && ch != h {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]ports.Handle, len(ids))
	for i, id := range ids {
		out[i] = r.nodes[id]
	}
	return out
}

func (r *Reconciler) addEdge(re domain.RenderEdge) error {
	src, ok := r.nodes[re.Key.Source]
	if !ok {
		return violation(InvariantDanglingEdge, "edge %s source is not committed", re.Key)
	}
	dst, ok := r.nodes[re.Key.Target]
	if !ok {
		return violation(InvariantDanglingEdge, "edge %s target is not committed", re.Key)
	}
	h, err := r.renderer.AddEdge(re, src, dst)
	if err != nil {
		return &RendererError{Op: "add edge " + re.Key.String(), Err: err}
	}
	r.edges[re.Key] = h
	r.styles[h] = map[string]string{domain.StyleHealth: string(re.Health)}
	return nil
}

// repair re-applies parent links and re-adds edges the renderer does not hold
func (r *Reconciler) repair(s Staging, ops *Operations) error {
	for _, id := range s.Next.NodeIDs() {
		h, ok := r.nodes[id]
		if !ok || !r.renderer.Contains(h) {
			return violation(InvariantMissingNode, "node %s is not in the renderer after apply", id)
		}
		want := ports.NoHandle
		if pid := s.Next.Nodes[id].ParentID; pid != "" {
			want, ok = r.nodes[pid]
			if !ok {
				return violation(InvariantDanglingParent, "parent %s of node %s is not committed", pid, id)
			}
		}
		got, _ := r.renderer.Parent(h)
		if got == want {
			continue
		}
		if err := r.renderer.Reparent(h, want); err != nil {
			return &RendererError{Op: "reparent " + id, Err: err}
		}
		if slices.Contains(s.Reparent, id) {
			ops.Reparented++
		} else {
			ops.Repaired++
		}
	}

	for _, k := range s.Next.EdgeKeys() {
		if h, ok := r.edges[k]; ok && r.renderer.Contains(h) {
			continue
		}
		delete(r.edges, k)
		if err := r.addEdge(s.Next.Edges[k]); err != nil {
			return err
		}
		ops.Repaired++
	}
	return nil
}

// applyStyles sets health, activity and width values that differ from what was last applied
func (r *Reconciler) applyStyles(g *domain.RenderGraph, ops *Operations) error {
	for _, id := range g.NodeIDs() {
		h, ok := r.nodes[id]
		if !ok {
			return violation(InvariantMissingNode, "node %s has no handle", id)
		}
		rn := g.Nodes[id]
		if err := r.setStyle(h, domain.StyleHealth, string(rn.Health), ops); err != nil {
			return err
		}
		if err := r.setStyle(h, domain.StyleActivity, string(rn.Activity), ops); err != nil {
			return err
		}
	}

	widths := transform.EdgeWidths(g.Edges, r.opts.MinWidth, r.opts.MaxWidth)
	for _, k := range g.EdgeKeys() {
		h, ok := r.edges[k]
		if !ok {
			return violation(InvariantMissingEdge, "edge %s has no handle", k)
		}
		if err := r.setStyle(h, domain.StyleHealth, string(g.Edges[k].Health), ops); err != nil {
			return err
		}
		if err := r.setStyle(h, domain.StyleWidth, FormatWidth(widths[k]), ops); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) setStyle(h ports.Handle, property, value string, ops *Operations) error {
	applied := r.styles[h]
	if applied == nil {
		applied = make(map[string]string)
		r.styles[h] = applied
	}
	if v, ok := applied[property]; ok && v == value {
		return nil
	}
	if err := r.renderer.SetStyle(h, property, value); err != nil {
		return &RendererError{Op: "set " + property, Err: err}
	}
	applied[property] = value
	ops.Styled++
	return nil
}

// FormatWidth renders an edge width as a style value
func FormatWidth(w float64) string {
	return strconv.FormatFloat(w, 'f', 2, 64)
}

// check verifies that committed ids and the renderer agree one to one
func (r *Reconciler) check(next *domain.RenderGraph) error {
	for _, id := range next.NodeIDs() {
		h, ok := r.nodes[id]
		if !ok || !r.renderer.Contains(h) {
			return violation(InvariantMissingNode, "node %s is not in the renderer", id)
		}
	}
	if len(r.nodes) != len(next.Nodes) || r.renderer.NodeCount() != len(next.Nodes) {
		return violation(InvariantNodeCount, "expected %d nodes, tracking %d, renderer holds %d",
			len(next.Nodes), len(r.nodes), r.renderer.NodeCount())
	}

	for _, k := range next.EdgeKeys() {
		h, ok := r.edges[k]
		if !ok || !r.renderer.Contains(h) {
			return violation(InvariantMissingEdge, "edge %s is not in the renderer", k)
		}
	}
	if len(r.edges) != len(next.Edges) || r.renderer.EdgeCount() != len(next.Edges) {
		return violation(InvariantEdgeCount, "expected %d edges, tracking %d, renderer holds %d",
			len(next.Edges), len(r.edges), r.renderer.EdgeCount())
	}
	return nil
}

// resync rebuilds the committed set from the handles the renderer still
// holds, recording each node under the parent the renderer reports and with
// the record it was last given.
func (r *Reconciler) resync(s Staging) {
	byHandle := make(map[ports.Handle]string, len(r.nodes))
	for id, h := range r.nodes {
		if !r.renderer.Contains(h) {
			delete(r.nodes, id)
			delete(r.styles, h)
			continue
		}
		byHandle[h] = id
	}

	g := domain.NewRenderGraph()
	for id, h := range r.nodes {
		rn, ok := s.Previous.Nodes[id]
		if !ok {
			rn = s.Next.Nodes[id]
		}
		rn.ID = id
		rn.ParentID = ""
		if p, _ := r.renderer.Parent(h); p != ports.NoHandle {
			rn.ParentID = byHandle[p]
		}
		g.Nodes[id] = rn
	}
	for k, h := range r.edges {
		if !r.renderer.Contains(h) {
			delete(r.edges, k)
			delete(r.styles, h)
			continue
		}
		re, ok := s.Previous.Edges[k]
		if !ok {
			re = s.Next.Edges[k]
		}
		re.Key = k
		g.Edges[k] = re
	}
	r.committed = CommittedFrom(g)
}

// guard runs fn and converts a panic into a RendererError
func guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &RendererError{Op: op, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	err = fn()
	var re *RendererError
	var inv *InvariantError
	if err != nil && !errors.As(err, &re) && !errors.As(err, &inv) {
		err = &RendererError{Op: op, Err: err}
	}
	return err
}
