package editor

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"servicegraph/internal/domain"
)

func TestOpener_CommandUsesEditorArgs(t *testing.T) {
	t.Setenv("EDITOR", "myeditor -w")
	t.Setenv("VISUAL", "")

	cmd, err := NewOpener("").Command("/tmp/x.json")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}

	got := strings.Join(cmd.Args, " ")
	if got != "myeditor -w /tmp/x.json" {
		t.Errorf("unexpected args: %q", got)
	}
}

func TestOpener_CommandFallsBackToVisual(t *testing.T) {
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "vis")

	cmd, err := NewOpener("").Command("f")
	if err != nil {
		t.Fatalf("Command() error: %v", err)
	}
	if cmd.Args[0] != "vis" {
		t.Errorf("expected vis, got %q", cmd.Args[0])
	}
}

func TestOpener_DumpPayload(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	p := &domain.Payload{Graph: domain.Graph{Nodes: []domain.Node{{ID: id, Type: domain.NodeTypeService, Name: "api"}}}}

	path, err := NewOpener(dir).DumpPayload(p, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DumpPayload() error: %v", err)
	}
	if !strings.HasSuffix(path, "servicegraph-20240501-120000.json") {
		t.Errorf("unexpected path: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back domain.Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("dump is not valid JSON: %v", err)
	}
	if back.Graph.Nodes[0].ID != id {
		t.Errorf("expected node %s, got %s", id, back.Graph.Nodes[0].ID)
	}
}
