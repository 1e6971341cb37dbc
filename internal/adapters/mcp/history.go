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
)

// RegisterHistoryTools adds the tools that read recorded snapshots.
func RegisterHistoryTools(s *server.MCPServer, deps Deps) {
	s.AddTool(listSnapshotsTool(), listSnapshotsHandler(deps))
	s.AddTool(diffTool(), diffHandler(deps))
	s.AddTool(edgeHistoryTool(), edgeHistoryHandler(deps))
}

// --- list_snapshots ---

func listSnapshotsTool() mcp.Tool {
	return mcp.NewTool("list_snapshots",
		mcp.WithDescription("List recorded snapshots, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of snapshots (default 20)")),
		projectArg(),
	)
}

func listSnapshotsHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := deps.Store.List(ctx, deps.query(req).ProjectID, req.GetInt("limit", 20))
		if err != nil {
			return toolError(err)
		}
		if len(infos) == 0 {
			return mcp.NewToolResultText("No snapshots."), nil
		}
		var sb strings.Builder
		for _, info := range infos {
			fmt.Fprintf(&sb, "%d  %s  nodes=%d edges=%d volume=%d\n",
				info.ID, info.RecordedAt.Format(time.RFC3339), info.Nodes, info.Edges, info.Volume)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- diff_snapshots ---

func diffTool() mcp.Tool {
	return mcp.NewTool("diff_snapshots",
		mcp.WithDescription("Show the structural changes between two recorded snapshots: nodes and edges added or removed and nodes that moved to another parent."),
		mcp.WithNumber("from", mcp.Description("Older snapshot id"), mcp.Required()),
		mcp.WithNumber("to", mcp.Description("Newer snapshot id"), mcp.Required()),
	)
}

func diffHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fromID, toID := int64(req.GetInt("from", 0)), int64(req.GetInt("to", 0))
		if fromID <= 0 || toID <= 0 {
			return toolError(fmt.Errorf("from and to are required"))
		}
		from, err := deps.Store.Load(ctx, fromID)
		if err != nil {
			return toolError(err)
		}
		to, err := deps.Store.Load(ctx, toID)
		if err != nil {
			return toolError(err)
		}

		result, err := commands.NewDiffCommand(from, to, deps.Thresholds, deps.now()).Execute()
		if err != nil {
			return toolError(err)
		}

		var sb strings.Builder
		sb.WriteString(result.Message)
		sb.WriteByte('\n')
		st := result.Staging
		for _, id := range st.Add.Nodes {
			fmt.Fprintf(&sb, "+ node %s\n", id)
		}
		for _, id := range st.Remove.Nodes {
			fmt.Fprintf(&sb, "- node %s\n", id)
		}
		for _, id := range st.Reparent {
			fmt.Fprintf(&sb, "~ node %s\n", id)
		}
		for _, k := range st.Add.Edges {
			fmt.Fprintf(&sb, "+ edge %s\n", k)
		}
		for _, k := range st.Remove.Edges {
			fmt.Fprintf(&sb, "- edge %s\n", k)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- edge_history ---

func edgeHistoryTool() mcp.Tool {
	return mcp.NewTool("edge_history",
		mcp.WithDescription("Show the counters and health of one edge across recorded snapshots, newest first."),
		mcp.WithString("source_id", mcp.Description("UUID of the calling node"), mcp.Required()),
		mcp.WithString("destination_id", mcp.Description("UUID of the called node"), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of samples (default 20)")),
		projectArg(),
	)
}

func edgeHistoryHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := domain.EdgeKey{Source: req.GetString("source_id", ""), Target: req.GetString("destination_id", "")}
		if key.Source == "" || key.Target == "" {
			return toolError(fmt.Errorf("source_id and destination_id are required"))
		}
		samples, err := deps.Store.EdgeHistory(ctx, deps.query(req).ProjectID, key, req.GetInt("limit", 20))
		if err != nil {
			return toolError(err)
		}
		if len(samples) == 0 {
			return mcp.NewToolResultText("No samples."), nil
		}

		var sb strings.Builder
		for _, s := range samples {
			fmt.Fprintf(&sb, "%d  %s  ok=%d expected_error=%d unexpected_error=%d  %s\n",
				s.SnapshotID, s.RecordedAt.Format(time.RFC3339), s.OK, s.ExpectedError, s.UnexpectedError,
				deps.Thresholds.Classify(s.Counters))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
