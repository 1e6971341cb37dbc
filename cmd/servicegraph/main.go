package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"servicegraph/internal/adapters/editor"
	"servicegraph/internal/adapters/tui"
	"servicegraph/internal/application"
	"servicegraph/internal/bootstrap"
	"servicegraph/internal/config"
	"servicegraph/internal/logging"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI, so logs only go to a file.
	logger, closeLog, err := bootstrap.Logger(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	source, err := bootstrap.OpenSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	opts := bootstrap.ReconcileOptions(cfg, nil)
	r := reconcile.New(opts)
	sel := selection.NewStore(opts.Thresholds, opts.ActivityWindow)
	filters := application.NewFilterState(cfg.Source.ProjectID)

	app := tui.NewApp(ctx, source, r, sel, filters, tui.Options{
		GraphInterval:     cfg.Poll.Graph.Duration,
		HistogramInterval: cfg.Poll.Histogram.Duration,
		Recorder:          source.Recorder(cfg),
		Editor:            editor.NewOpener(cfg.Editor.DumpDir),
	})
	if err := app.Mount(); err != nil {
		return err
	}
	defer app.Close()

	logger.Info("starting viewer", "source", cfg.Source.Kind, "project", cfg.Source.ProjectID)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
