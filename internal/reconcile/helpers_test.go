package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func nid(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", n))
}

func sid(n int) string {
	return nid(n).String()
}

func svc(n int) domain.Node {
	return domain.Node{ID: nid(n), Type: domain.NodeTypeService, Name: fmt.Sprintf("svc-%d", n)}
}

func txn(n, parent int) domain.Node {
	p := nid(parent)
	return domain.Node{ID: nid(n), Type: domain.NodeTypeTransaction, Name: fmt.Sprintf("tx-%d", n), ParentID: &p}
}

func call(from, to, ok int) domain.Edge {
	return domain.Edge{FromNodeID: nid(from), ToNodeID: nid(to), Counters: domain.Counters{OK: ok}}
}

func snapshot(nodes []domain.Node, edges ...domain.Edge) *domain.Payload {
	return &domain.Payload{Graph: domain.Graph{Nodes: nodes, Edges: edges}}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	opts.MinWidth = 1
	opts.MaxWidth = 5
	return opts
}

// recorder wraps a canvas and logs every call the reconciler makes
type recorder struct {
	*canvas.Canvas
	calls []string

	failAddEdge  bool
	panicOnStyle bool
	extraRemoved int
}

func newRecorder() *recorder {
	return &recorder{Canvas: canvas.New()}
}

func (r *recorder) factory() ports.RendererFactory {
	return func() (ports.Renderer, error) { return r, nil }
}

func (r *recorder) reset() {
	r.calls = nil
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *recorder) AddNode(node domain.RenderNode, parent ports.Handle) (ports.Handle, error) {
	r.calls = append(r.calls, "add_node "+node.ID)
	return r.Canvas.AddNode(node, parent)
}

func (r *recorder) AddEdge(edge domain.RenderEdge, source, target ports.Handle) (ports.Handle, error) {
	r.calls = append(r.calls, "add_edge "+edge.Key.String())
	if r.failAddEdge {
		return ports.NoHandle, fmt.Errorf("edge rejected")
	}
	return r.Canvas.AddEdge(edge, source, target)
}

func (r *recorder) RemoveNode(h ports.Handle) (int, error) {
	r.calls = append(r.calls, fmt.Sprintf("remove_node %d", h))
	n, err := r.Canvas.RemoveNode(h)
	return n + r.extraRemoved, err
}

func (r *recorder) RemoveEdge(h ports.Handle) error {
	r.calls = append(r.calls, fmt.Sprintf("remove_edge %d", h))
	return r.Canvas.RemoveEdge(h)
}

func (r *recorder) Reparent(h, parent ports.Handle) error {
	r.calls = append(r.calls, fmt.Sprintf("reparent %d %d", h, parent))
	return r.Canvas.Reparent(h, parent)
}

func (r *recorder) SetStyle(h ports.Handle, property, value string) error {
	if r.panicOnStyle {
		panic("style engine crashed")
	}
	r.calls = append(r.calls, "style "+property)
	return r.Canvas.SetStyle(h, property, value)
}

func (r *recorder) UpdateNode(h ports.Handle, node domain.RenderNode) error {
	r.calls = append(r.calls, "update_node "+node.ID)
	return r.Canvas.UpdateNode(h, node)
}

func (r *recorder) UpdateEdge(h ports.Handle, edge domain.RenderEdge) error {
	r.calls = append(r.calls, "update_edge "+edge.Key.String())
	return r.Canvas.UpdateEdge(h, edge)
}

func (r *recorder) RunLayout(cfg ports.LayoutConfig) error {
	r.calls = append(r.calls, "run_layout")
	return r.Canvas.RunLayout(cfg)
}

func (r *recorder) StopLayout() {
	r.calls = append(r.calls, "stop_layout")
	r.Canvas.StopLayout()
}
