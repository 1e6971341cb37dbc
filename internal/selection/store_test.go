package selection

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func samplePayload() (*domain.Payload, uuid.UUID, uuid.UUID) {
	api, get := uuid.New(), uuid.New()
	return &domain.Payload{
		Graph: domain.Graph{
			Nodes: []domain.Node{
				{ID: api, Type: domain.NodeTypeService, Name: "api"},
				{ID: get, Type: domain.NodeTypeTransaction, Name: "GET /", ParentID: &api,
					Counters: domain.Counters{OK: 10, UnexpectedError: 5}},
			},
			Edges: []domain.Edge{{FromNodeID: api, ToNodeID: get, Counters: domain.Counters{OK: 3, ExpectedError: 1}}},
		},
		ActiveNodes: domain.ActiveNodes{Nodes: []domain.ActiveNode{
			{Node: domain.Node{ID: api}, LastActivity: "2024-05-01T11:50:00Z"},
		}},
	}, api, get
}

func newTestStore() *Store {
	s := NewStore(domain.DefaultThresholds(), time.Hour)
	s.SetClock(func() time.Time { return now })
	return s
}

func TestStore_ResolveNode(t *testing.T) {
	p, api, get := samplePayload()
	s := newTestStore()
	s.Update(p)
	s.Select(domain.SelectNode(api.String()))

	view, ok := s.Details()
	if !ok || view.Node == nil {
		t.Fatal("expected node details")
	}
	if view.Node.Node.Name != "api" {
		t.Errorf("unexpected node: %s", view.Node.Node.Name)
	}
	if view.Node.Activity != domain.Active {
		t.Errorf("expected active, got %s", view.Node.Activity)
	}
	if len(view.Node.Children) != 1 || view.Node.Children[0].ID != get {
		t.Errorf("unexpected children: %+v", view.Node.Children)
	}
	if len(view.Node.Outgoing) != 1 {
		t.Errorf("expected one outgoing edge, got %d", len(view.Node.Outgoing))
	}

	s.Select(domain.SelectNode(get.String()))
	view, _ = s.Details()
	if view.Node.Health != domain.Unhealthy {
		t.Errorf("expected unhealthy child, got %s", view.Node.Health)
	}
	if view.Node.Parent == nil || view.Node.Parent.ID != api {
		t.Error("expected parent to resolve")
	}
	if view.Node.Activity != domain.Inactive {
		t.Errorf("expected inactive child, got %s", view.Node.Activity)
	}
}

func TestStore_ResolveEdge(t *testing.T) {
	p, api, get := samplePayload()
	s := newTestStore()
	s.Update(p)
	s.Select(domain.SelectEdge(api.String(), get.String()))

	view, ok := s.Details()
	if !ok || view.Edge == nil {
		t.Fatal("expected edge details")
	}
	if view.Edge.Source.Name != "api" || view.Edge.Destination.Name != "GET /" {
		t.Errorf("unexpected endpoints: %s -> %s", view.Edge.Source.Name, view.Edge.Destination.Name)
	}
	if view.Edge.Volume != 4 || view.Edge.Health != domain.Unhealthy {
		t.Errorf("unexpected edge stats: %+v", view.Edge)
	}
}

func TestStore_SelectionSurvivesDisappearance(t *testing.T) {
	p, api, _ := samplePayload()
	s := newTestStore()
	s.Update(p)
	s.Select(domain.SelectNode(api.String()))

	s.Update(&domain.Payload{})
	if _, ok := s.Details(); ok {
		t.Error("expected not found after the node disappeared")
	}
	if s.Selection().NodeID != api.String() {
		t.Error("selection identity must be kept")
	}

	s.Update(p)
	if _, ok := s.Details(); !ok {
		t.Error("expected the selection to resolve again")
	}
}

func TestStore_HandleTap(t *testing.T) {
	s := newTestStore()

	tests := []struct {
		name string
		ev   ports.TapEvent
		want domain.Selection
	}{
		{"node", ports.TapEvent{Kind: ports.TapNode, NodeID: "a"}, domain.SelectNode("a")},
		{"ghost selects its service", ports.TapEvent{Kind: ports.TapNode, NodeID: "a-ghost"}, domain.SelectNode("a")},
		{"edge", ports.TapEvent{Kind: ports.TapEdge, Edge: domain.EdgeKey{Source: "a", Target: "b"}}, domain.SelectEdge("a", "b")},
		{"background clears", ports.TapEvent{Kind: ports.TapBackground}, domain.Selection{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.HandleTap(tt.ev)
			if got := s.Selection(); got != tt.want {
				t.Errorf("Selection() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStore_NoSnapshot(t *testing.T) {
	s := newTestStore()
	s.Select(domain.SelectNode("x"))
	if _, ok := s.Details(); ok {
		t.Error("expected nothing without a snapshot")
	}
}
