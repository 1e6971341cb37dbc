package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"servicegraph/internal/bootstrap"
	"servicegraph/internal/config"
	"servicegraph/internal/logging"
	"servicegraph/internal/reconcile"
)

var (
	configPath string
	sourceKind string
	sourceURL  string
	sourceFile string
	projectID  int

	cfg       *config.Config
	logger    *slog.Logger
	closeLogs func() error
)

var rootCmd = &cobra.Command{
	Use:   "servicegraph-cli",
	Short: "Inspect and record service dependency graphs",
	Long: `servicegraph-cli reads service dependency graphs from a backend, a JSON
fixture, or the local snapshot database.

It can print and diff snapshots, report unhealthy calls, record history,
follow a live graph, and serve a fixture as a backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, closeLogs, err = bootstrap.Logger(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLogs != nil {
			return closeLogs()
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, Bad.Sprint("error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to the config file (default "+config.Path()+")")
	flags.StringVar(&sourceKind, "source", "", "data source: http, file or replay")
	flags.StringVar(&sourceURL, "url", "", "backend base URL for the http source")
	flags.StringVarP(&sourceFile, "file", "f", "", "payload file for the file source")
	flags.IntVarP(&projectID, "project", "p", 0, "project ID")
}

// applyFlags lets explicit flags win over the config file and environment
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source.Kind = sourceKind
	}
	if flags.Changed("url") {
		cfg.Source.URL = sourceURL
	}
	if flags.Changed("file") {
		cfg.Source.File = sourceFile
		if !flags.Changed("source") {
			cfg.Source.Kind = "file"
		}
	}
	if flags.Changed("project") {
		cfg.Source.ProjectID = projectID
	}
}

// openSource opens the configured data source. Callers close it.
func openSource(cmd *cobra.Command) (*bootstrap.Source, error) {
	return bootstrap.OpenSource(cmd.Context(), cfg)
}

func reconcileOptions(metrics *reconcile.Metrics) reconcile.Options {
	return bootstrap.ReconcileOptions(cfg, metrics)
}
