package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/application"
	"servicegraph/internal/application/commands"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

var watchFilters queryFlags

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live graph and print every change",
	Long: `Poll the data source and reconcile every snapshot into an off-screen
canvas, printing what changed. Stop with Ctrl+C.

Examples:
  servicegraph-cli watch
  servicegraph-cli watch --file fixture.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := watchFilters.filters(cfg.Source.ProjectID, time.Now())
		if err != nil {
			return err
		}
		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		return runWatch(cmd.Context(), cmd.OutOrStdout(), source, source.Recorder(cfg), filters, nil)
	},
}

// runWatch polls until ctx is done, printing each cycle to w
func runWatch(ctx context.Context, w io.Writer, source ports.DataSource, recorder ports.SnapshotStore, filters *application.FilterState, metrics *reconcile.Metrics) error {
	opts := reconcileOptions(metrics)
	r := reconcile.New(opts)
	sel := selection.NewStore(opts.Thresholds, opts.ActivityWindow)

	watch := commands.NewWatchCommand(source, r, canvas.Factory(nil), sel, recorder, filters)
	watch.GraphInterval = cfg.Poll.Graph.Duration
	watch.HistogramInterval = cfg.Poll.Histogram.Duration
	watch.OnEvent = func(ev commands.WatchEvent) {
		printWatchEvent(w, ev)
	}
	return watch.Execute(ctx)
}

func printWatchEvent(w io.Writer, ev commands.WatchEvent) {
	stamp := Subtle.Sprint(time.Now().Format("15:04:05"))
	switch {
	case ev.Err != nil:
		fmt.Fprintf(w, "%s %s\n", stamp, Bad.Sprint(ev.Err.Error()))
	case ev.Refresh != nil:
		msg := ev.Refresh.Message
		if ev.Refresh.Cycle != nil && !ev.Refresh.Cycle.NoOp() {
			msg = Warn.Sprint(msg)
		}
		fmt.Fprintf(w, "%s %s\n", stamp, msg)
	case ev.Histogram != nil && len(ev.Histogram.Buckets) > 0:
		last := ev.Histogram.Buckets[len(ev.Histogram.Buckets)-1]
		fmt.Fprintf(w, "%s %s\n", stamp, Subtle.Sprintf("traffic %d (peak %d)", last.N, ev.Histogram.Max()))
	}
}

func init() {
	watchFilters.register(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
