package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/application/commands"
)

var (
	healthFilters queryFlags
	healthFail    bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "List unhealthy nodes and edges",
	Long: `Fetch one snapshot and list every node and edge whose error ratio is
below the configured thresholds.

Examples:
  servicegraph-cli health
  servicegraph-cli health --fail   # exit 1 when anything is unhealthy`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := healthFilters.filters(cfg.Source.ProjectID, time.Now())
		if err != nil {
			return err
		}
		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		healthCmd := commands.NewHealthCommand(source, filters.Query(), cfg.Health.Thresholds)
		healthCmd.Options.ActivityWindow = cfg.Health.ActivityWindow.Duration
		result, err := healthCmd.Execute(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		unhealthy := len(result.UnhealthyNodes) + len(result.UnhealthyEdges)
		if unhealthy == 0 {
			fmt.Fprintln(out, Good.Sprint("✓ ")+result.Message)
			return nil
		}
		fmt.Fprintln(out, Warn.Sprint("⚠ ")+result.Message)

		var rows [][]string
		for _, e := range result.UnhealthyNodes {
			rows = append(rows, []string{"node", e.Label, counters(e.Counters)})
		}
		for _, e := range result.UnhealthyEdges {
			rows = append(rows, []string{"edge", e.Label, counters(e.Counters)})
		}
		fmt.Fprintln(out)
		table(out, []string{"KIND", "NAME", "OK/EXP/UNEXP"}, rows)

		if healthFail {
			return fmt.Errorf("%d unhealthy", unhealthy)
		}
		return nil
	},
}

func init() {
	healthFilters.register(healthCmd)
	healthCmd.Flags().BoolVar(&healthFail, "fail", false, "exit with an error when anything is unhealthy")
	rootCmd.AddCommand(healthCmd)
}
