package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/application/commands"
	"servicegraph/internal/bootstrap"
)

var (
	recordFilters queryFlags
	recordRetain  time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Fetch the current graph and store it",
	Long: `Fetch one snapshot and append it to the local snapshot database.
With --retain, snapshots older than the given age are pruned afterwards.

Examples:
  servicegraph-cli record
  servicegraph-cli record --retain 168h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()
		filters, err := recordFilters.filters(cfg.Source.ProjectID, now)
		if err != nil {
			return err
		}

		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		store := source.Store
		if store == nil {
			if store, err = bootstrap.OpenStore(cfg); err != nil {
				return err
			}
			defer store.Close()
		}

		result, err := commands.NewRecordCommand(source, store, filters.Query(), now).Execute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), Good.Sprint("✓ ")+result.Message)

		if recordRetain > 0 {
			n, err := store.Prune(ctx, cfg.Source.ProjectID, now.Add(-recordRetain))
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), Subtle.Sprintf("pruned %d snapshots older than %s", n, recordRetain))
			}
		}
		return nil
	},
}

func init() {
	recordFilters.register(recordCmd)
	recordCmd.Flags().DurationVar(&recordRetain, "retain", 0, "prune snapshots older than this age")
	rootCmd.AddCommand(recordCmd)
}
