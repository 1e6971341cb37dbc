package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "servicegraph/internal/adapters/mcp"
	"servicegraph/internal/bootstrap"
	"servicegraph/internal/config"
	"servicegraph/internal/logging"
)

func main() {
	configFlag := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("servicegraph-mcp: %v", err)
	}

	// stdout carries the protocol
	logger, closeLog, err := bootstrap.Logger(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("servicegraph-mcp: %v", err)
	}
	defer closeLog()
	ctx := logging.WithLogger(context.Background(), logger)

	// History tools need the store even when the live source is not recorded.
	cfg.Store.Record = true
	source, err := bootstrap.OpenSource(ctx, cfg)
	if err != nil {
		log.Fatalf("servicegraph-mcp: %v", err)
	}
	defer source.Close()

	mcpServer := server.NewMCPServer(
		"servicegraph-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	deps := mcpadapter.Deps{
		Source:     source,
		Store:      source.Store,
		ProjectID:  cfg.Source.ProjectID,
		Thresholds: cfg.Health.Thresholds,
	}
	mcpadapter.RegisterReadTools(mcpServer, deps)
	mcpadapter.RegisterWriteTools(mcpServer, deps)
	mcpadapter.RegisterHistoryTools(mcpServer, deps)

	logger.Info("serving mcp on stdio", "source", cfg.Source.Kind)
	if err := server.ServeStdio(mcpServer); err != nil {
		log.Fatalf("servicegraph-mcp: %v", err)
	}
}
