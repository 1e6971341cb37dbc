package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"servicegraph/internal/adapters/httpapi"
	"servicegraph/internal/reconcile"
)

var (
	serveAddr      string
	serveReconcile bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured source as a graph backend",
	Long: `Expose the configured data source over the backend query API, so the
viewer can run against a fixture file or recorded snapshots.

Routes: GET /health, POST /query, POST /histogram, GET /metrics.
With --reconcile, the graph is also reconciled in the background and the
reconciler metrics are served on /metrics.

Examples:
  servicegraph-cli serve --file fixture.json
  servicegraph-cli serve --source replay --addr :9090 --reconcile`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Serve.Addr = serveAddr
		}
		if cfg.Source.Kind == "http" {
			return fmt.Errorf("serve needs a file or replay source")
		}

		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		filters, err := (&queryFlags{window: "all"}).filters(cfg.Source.ProjectID, time.Now())
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		api := httpapi.New(source, reg, logger)

		srv := &http.Server{
			Addr:              cfg.Serve.Addr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			logger.Info("serving graph backend", "addr", cfg.Serve.Addr, "source", cfg.Source.Kind)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if serveReconcile {
			metrics := reconcile.NewMetrics(reg)
			g.Go(func() error {
				return runWatch(ctx, cmd.ErrOrStderr(), source, nil, filters, metrics)
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveReconcile, "reconcile", false, "reconcile the served graph and export its metrics")
	rootCmd.AddCommand(serveCmd)
}
