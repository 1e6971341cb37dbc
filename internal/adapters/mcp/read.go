package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"servicegraph/internal/application/commands"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
	"servicegraph/internal/transform"
)

// Deps are what the graph tools read from
type Deps struct {
	Source     ports.DataSource
	Store      ports.SnapshotStore
	ProjectID  int
	Thresholds domain.Thresholds
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) query(req mcp.CallToolRequest) domain.Query {
	return domain.Query{ProjectID: req.GetInt("project_id", d.ProjectID)}
}

// RegisterReadTools adds the live graph tools to the MCP server.
func RegisterReadTools(s *server.MCPServer, deps Deps) {
	s.AddTool(summaryTool(), summaryHandler(deps))
	s.AddTool(nodeDetailsTool(), nodeDetailsHandler(deps))
	s.AddTool(edgeDetailsTool(), edgeDetailsHandler(deps))
	s.AddTool(classifyTool(), classifyHandler())
}

func projectArg() mcp.ToolOption {
	return mcp.WithNumber("project_id",
		mcp.Description("Project to query. Defaults to the configured project."),
	)
}

// --- graph_summary ---

func summaryTool() mcp.Tool {
	return mcp.NewTool("graph_summary",
		mcp.WithDescription("Fetch the current service graph and summarize it: services with their transactions, edges with volume and health."),
		projectArg(),
	)
}

func summaryHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := commands.FetchGraph(ctx, deps.Source, deps.query(req))
		if err != nil {
			return toolError(err)
		}
		opts := transform.Options{Thresholds: deps.Thresholds, ActivityWindow: domain.DefaultActivityWindow, Now: deps.now()}
		return mcp.NewToolResultText(renderSummary(p, opts)), nil
	}
}

func renderSummary(p *domain.Payload, opts transform.Options) string {
	g := transform.Payload(p, opts)
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d nodes, %d edges\n", len(p.Graph.Nodes), len(p.Graph.Edges))
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Ghost || n.ParentID != "" {
			continue
		}
		fmt.Fprintf(&sb, "%s  %s  [%s, %s]\n", n.ID, n.Name, n.Health, n.Activity)
		for _, c := range g.Children(id) {
			child := g.Nodes[c]
			if child.Ghost {
				continue
			}
			fmt.Fprintf(&sb, "  %s  %s  [%s, %s]\n", child.ID, child.Name, child.Health, child.Activity)
		}
	}
	for _, k := range g.EdgeKeys() {
		e := g.Edges[k]
		fmt.Fprintf(&sb, "%s -> %s  volume=%d  %s\n", g.Nodes[k.Source].Name, g.Nodes[k.Target].Name, e.Volume, e.Health)
	}
	return sb.String()
}

// --- node_details ---

func nodeDetailsTool() mcp.Tool {
	return mcp.NewTool("node_details",
		mcp.WithDescription("Show a node with its health, activity, parent, children and incident edges."),
		mcp.WithString("node_id",
			mcp.Description("Node UUID"),
			mcp.Required(),
		),
		projectArg(),
	)
}

func nodeDetailsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("node_id", "")
		if id == "" {
			return toolError(fmt.Errorf("node_id is required"))
		}
		return details(ctx, deps, req, domain.SelectNode(id))
	}
}

// --- edge_details ---

func edgeDetailsTool() mcp.Tool {
	return mcp.NewTool("edge_details",
		mcp.WithDescription("Show an edge with its endpoints, counters, volume and health."),
		mcp.WithString("source_id",
			mcp.Description("UUID of the calling node"),
			mcp.Required(),
		),
		mcp.WithString("destination_id",
			mcp.Description("UUID of the called node"),
			mcp.Required(),
		),
		projectArg(),
	)
}

func edgeDetailsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src := req.GetString("source_id", "")
		dst := req.GetString("destination_id", "")
		if src == "" || dst == "" {
			return toolError(fmt.Errorf("source_id and destination_id are required"))
		}
		return details(ctx, deps, req, domain.SelectEdge(src, dst))
	}
}

func details(ctx context.Context, deps Deps, req mcp.CallToolRequest, sel domain.Selection) (*mcp.CallToolResult, error) {
	cmd := commands.NewDetailsCommand(deps.Source, deps.query(req), sel, deps.Thresholds)
	cmd.Now = deps.now
	res, err := cmd.Execute(ctx)
	if err != nil {
		return toolError(err)
	}
	if !res.Found {
		return mcp.NewToolResultText(res.Message), nil
	}
	if res.View.Node != nil {
		return mcp.NewToolResultText(formatNode(res.View.Node)), nil
	}
	return mcp.NewToolResultText(formatEdge(res.View.Edge)), nil
}

func formatNode(d *domain.NodeDetails) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", d.Node.Name, d.Node.Type)
	fmt.Fprintf(&sb, "id: %s\n", d.Node.ID)
	if d.Node.Description != "" {
		fmt.Fprintf(&sb, "description: %s\n", d.Node.Description)
	}
	fmt.Fprintf(&sb, "health: %s\nactivity: %s\n", d.Health, d.Activity)
	if d.LastActivity != "" {
		fmt.Fprintf(&sb, "last activity: %s\n", d.LastActivity)
	}
	fmt.Fprintf(&sb, "calls: ok=%d expected_error=%d unexpected_error=%d\n", d.Node.OK, d.Node.ExpectedError, d.Node.UnexpectedError)
	if d.Parent != nil {
		fmt.Fprintf(&sb, "parent: %s  %s\n", d.Parent.ID, d.Parent.Name)
	}
	for _, c := range d.Children {
		fmt.Fprintf(&sb, "child: %s  %s\n", c.ID, c.Name)
	}
	for _, e := range d.Incoming {
		fmt.Fprintf(&sb, "in:  %s  volume=%d\n", e.FromNodeID, e.Volume())
	}
	for _, e := range d.Outgoing {
		fmt.Fprintf(&sb, "out: %s  volume=%d\n", e.ToNodeID, e.Volume())
	}
	return sb.String()
}

func formatEdge(d *domain.EdgeDetails) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s -> %s\n", d.Source.Name, d.Destination.Name)
	fmt.Fprintf(&sb, "health: %s\nvolume: %d\n", d.Health, d.Volume)
	fmt.Fprintf(&sb, "calls: ok=%d expected_error=%d unexpected_error=%d\n", d.Edge.OK, d.Edge.ExpectedError, d.Edge.UnexpectedError)
	if d.Edge.Description != "" {
		fmt.Fprintf(&sb, "description: %s\n", d.Edge.Description)
	}
	return sb.String()
}

// --- classify_health ---

func classifyTool() mcp.Tool {
	return mcp.NewTool("classify_health",
		mcp.WithDescription("Classify call counters as healthy or unhealthy using the default thresholds (expected errors 0.98, unexpected errors 0.9999)."),
		mcp.WithNumber("ok", mcp.Description("Successful calls"), mcp.Required()),
		mcp.WithNumber("expected_error", mcp.Description("Calls that failed with an expected error"), mcp.Required()),
		mcp.WithNumber("unexpected_error", mcp.Description("Calls that failed with an unexpected error"), mcp.Required()),
	)
}

func classifyHandler() server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ok := req.GetInt("ok", -1)
		expected := req.GetInt("expected_error", -1)
		unexpected := req.GetInt("unexpected_error", -1)
		if ok < 0 || expected < 0 || unexpected < 0 {
			return toolError(fmt.Errorf("ok, expected_error and unexpected_error must be non-negative"))
		}
		return mcp.NewToolResultText(string(domain.ClassifyEdgeHealth(ok, expected, unexpected))), nil
	}
}

// --- helpers ---

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
