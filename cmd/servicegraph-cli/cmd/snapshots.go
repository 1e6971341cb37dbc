package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"servicegraph/internal/bootstrap"
	"servicegraph/internal/domain"
)

var (
	snapshotsLimit int
	historyLimit   int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List recorded snapshots",
	Long: `List snapshots recorded in the local database, newest first.

Examples:
  servicegraph-cli snapshots
  servicegraph-cli snapshots --limit 5
  servicegraph-cli snapshots history <source-id>-><destination-id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bootstrap.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		infos, err := store.List(cmd.Context(), cfg.Source.ProjectID, snapshotsLimit)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), Subtle.Sprint("no snapshots recorded"))
			return nil
		}

		var rows [][]string
		for _, s := range infos {
			rows = append(rows, []string{
				fmt.Sprint(s.ID),
				s.RecordedAt.Local().Format("2006-01-02 15:04:05"),
				fmt.Sprint(s.Nodes),
				fmt.Sprint(s.Edges),
				fmt.Sprint(s.Volume),
			})
		}
		table(cmd.OutOrStdout(), []string{"ID", "RECORDED", "NODES", "EDGES", "CALLS"}, rows)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <source-id->destination-id>",
	Short: "Show the traffic of one edge across snapshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := domain.ParseEdgeKey(args[0])
		if err != nil {
			return err
		}
		store, err := bootstrap.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		samples, err := store.EdgeHistory(cmd.Context(), cfg.Source.ProjectID, key, historyLimit)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), Subtle.Sprint("edge not found in any snapshot"))
			return nil
		}

		var rows [][]string
		for _, s := range samples {
			h := cfg.Health.Thresholds.Classify(s.Counters)
			rows = append(rows, []string{
				fmt.Sprint(s.SnapshotID),
				s.RecordedAt.Local().Format("2006-01-02 15:04:05"),
				counters(s.Counters),
				healthIcon(h),
			})
		}
		table(cmd.OutOrStdout(), []string{"ID", "RECORDED", "OK/EXP/UNEXP", "HEALTH"}, rows)
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().IntVarP(&snapshotsLimit, "limit", "n", 20, "maximum number of snapshots, 0 for all")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of samples, 0 for all")
	snapshotsCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
