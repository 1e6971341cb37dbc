package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"servicegraph/internal/adapters/sqlite"
	"servicegraph/internal/domain"
)

var (
	apiID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	getID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	dbID  = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	now   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type stubSource struct {
	payload *domain.Payload
}

func (s *stubSource) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	return s.payload, nil
}

func (s *stubSource) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	return &domain.Histogram{}, nil
}

func testPayload(withDB bool) *domain.Payload {
	p := &domain.Payload{
		Graph: domain.Graph{Nodes: []domain.Node{
			{ID: apiID, Type: domain.NodeTypeService, Name: "api"},
			{ID: getID, Type: domain.NodeTypeTransaction, Name: "GET /users", ParentID: &apiID},
		}},
		ActiveNodes: domain.ActiveNodes{Nodes: []domain.ActiveNode{
			{Node: domain.Node{ID: apiID}, LastActivity: "2024-05-01T11:55:00Z"},
		}},
	}
	if withDB {
		p.Graph.Nodes = append(p.Graph.Nodes, domain.Node{ID: dbID, Type: domain.NodeTypeService, Name: "db"})
		p.Graph.Edges = []domain.Edge{{FromNodeID: getID, ToNodeID: dbID, Counters: domain.Counters{OK: 50, UnexpectedError: 1}}}
	}
	return p
}

func testDeps(t *testing.T, p *domain.Payload) Deps {
	t.Helper()
	store := sqlite.NewStore()
	if err := store.Open(filepath.Join(t.TempDir(), "snapshots.db")); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return Deps{
		Source:     &stubSource{payload: p},
		Store:      store,
		ProjectID:  1,
		Thresholds: domain.DefaultThresholds(),
		Now:        func() time.Time { return now },
	}
}

func call(t *testing.T, h server.ToolHandlerFunc, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestGraphSummary(t *testing.T) {
	deps := testDeps(t, testPayload(true))

	out, isErr := call(t, summaryHandler(deps), nil)

	if isErr {
		t.Fatalf("unexpected error: %s", out)
	}
	for _, want := range []string{
		"3 nodes, 1 edges",
		"api  [healthy, active]",
		"  " + getID.String() + "  GET /users",
		"GET /users -> db  volume=51  unhealthy",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "-ghost") {
		t.Errorf("ghosts should not be listed:\n%s", out)
	}
}

func TestNodeAndEdgeDetails(t *testing.T) {
	deps := testDeps(t, testPayload(true))

	tests := []struct {
		name    string
		handler server.ToolHandlerFunc
		args    map[string]any
		want    string
		isErr   bool
	}{
		{name: "node", handler: nodeDetailsHandler(deps), args: map[string]any{"node_id": apiID.String()}, want: "child: " + getID.String()},
		{name: "missing node arg", handler: nodeDetailsHandler(deps), args: map[string]any{}, want: "node_id is required", isErr: true},
		{name: "unknown node", handler: nodeDetailsHandler(deps), args: map[string]any{"node_id": uuid.NewString()}, want: "node not found"},
		{name: "edge", handler: edgeDetailsHandler(deps), args: map[string]any{"source_id": getID.String(), "destination_id": dbID.String()}, want: "volume: 51"},
		{name: "missing edge arg", handler: edgeDetailsHandler(deps), args: map[string]any{"source_id": getID.String()}, isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, tt.handler, tt.args)
			if isErr != tt.isErr {
				t.Fatalf("isErr = %v, want %v (%s)", isErr, tt.isErr, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output %q does not contain %q", out, tt.want)
			}
		})
	}
}

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		args  map[string]any
		want  string
		isErr bool
	}{
		{args: map[string]any{"ok": 98, "expected_error": 2, "unexpected_error": 0}, want: "healthy"},
		{args: map[string]any{"ok": 0, "expected_error": 0, "unexpected_error": 1}, want: "unhealthy"},
		{args: map[string]any{"ok": 1}, isErr: true},
	}

	for _, tt := range tests {
		out, isErr := call(t, classifyHandler(), tt.args)
		if isErr != tt.isErr {
			t.Fatalf("%v: isErr = %v (%s)", tt.args, isErr, out)
		}
		if !tt.isErr && out != tt.want {
			t.Errorf("%v: got %q, want %q", tt.args, out, tt.want)
		}
	}
}

func TestRecordDiffAndHistory(t *testing.T) {
	src := &stubSource{payload: testPayload(false)}
	deps := testDeps(t, nil)
	deps.Source = src

	out, isErr := call(t, recordHandler(deps), nil)
	if isErr || !strings.Contains(out, "recorded snapshot 1") {
		t.Fatalf("record failed: %s", out)
	}
	src.payload = testPayload(true)
	deps.Now = func() time.Time { return now.Add(time.Minute) }
	if out, isErr := call(t, recordHandler(deps), nil); isErr {
		t.Fatalf("record failed: %s", out)
	}

	out, _ = call(t, listSnapshotsHandler(deps), nil)
	if !strings.HasPrefix(out, "2  ") {
		t.Errorf("expected newest snapshot first:\n%s", out)
	}

	out, isErr = call(t, diffHandler(deps), map[string]any{"from": 1, "to": 2})
	if isErr {
		t.Fatalf("diff failed: %s", out)
	}
	for _, want := range []string{"+2/-0 nodes", "+ node " + dbID.String() + "-ghost", "+ edge " + getID.String() + "->" + dbID.String()} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}

	out, _ = call(t, edgeHistoryHandler(deps), map[string]any{"source_id": getID.String(), "destination_id": dbID.String()})
	if !strings.Contains(out, "ok=50 expected_error=0 unexpected_error=1  unhealthy") {
		t.Errorf("unexpected history:\n%s", out)
	}

	out, isErr = call(t, diffHandler(deps), map[string]any{"from": 1, "to": 9})
	if !isErr || !strings.Contains(out, "not found") {
		t.Errorf("expected not found error, got %s", out)
	}
}

func TestPrune(t *testing.T) {
	deps := testDeps(t, testPayload(true))
	if _, isErr := call(t, recordHandler(deps), nil); isErr {
		t.Fatal("record failed")
	}
	deps.Now = func() time.Time { return now.Add(2 * time.Hour) }
	p := deps.Store.(Pruner)

	out, isErr := call(t, pruneHandler(deps, p), map[string]any{"older_than": "1h"})
	if isErr || out != "pruned 1 snapshots" {
		t.Errorf("unexpected prune result: %s", out)
	}
	if _, isErr := call(t, pruneHandler(deps, p), map[string]any{"older_than": "soon"}); !isErr {
		t.Error("expected error for bad duration")
	}
}
