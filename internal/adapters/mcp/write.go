package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"servicegraph/internal/application/commands"
)

// Pruner deletes old snapshots. The SQLite store implements it.
type Pruner interface {
	Prune(ctx context.Context, projectID int, before time.Time) (int64, error)
}

// RegisterWriteTools adds the snapshot recording tools to the MCP server.
// prune_snapshots is only offered when the store can prune.
func RegisterWriteTools(s *server.MCPServer, deps Deps) {
	s.AddTool(recordTool(), recordHandler(deps))
	if p, ok := deps.Store.(Pruner); ok {
		s.AddTool(pruneTool(), pruneHandler(deps, p))
	}
}

// --- record_snapshot ---

func recordTool() mcp.Tool {
	return mcp.NewTool("record_snapshot",
		mcp.WithDescription("Fetch the current service graph and store it in the snapshot database."),
		projectArg(),
	)
}

func recordHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cmd := commands.NewRecordCommand(deps.Source, deps.Store, deps.query(req), deps.now())
		result, err := cmd.Execute(ctx)
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(result.Message), nil
	}
}

// --- prune_snapshots ---

func pruneTool() mcp.Tool {
	return mcp.NewTool("prune_snapshots",
		mcp.WithDescription("Delete recorded snapshots older than a duration."),
		mcp.WithString("older_than",
			mcp.Description("Go duration, e.g. 24h or 30m"),
			mcp.Required(),
		),
		projectArg(),
	)
}

func pruneHandler(deps Deps, p Pruner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		age, err := time.ParseDuration(req.GetString("older_than", ""))
		if err != nil || age <= 0 {
			return toolError(fmt.Errorf("older_than must be a positive duration"))
		}
		q := deps.query(req)
		n, err := p.Prune(ctx, q.ProjectID, deps.now().Add(-age))
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("pruned %d snapshots", n)), nil
	}
}
