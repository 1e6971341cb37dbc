package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/application/commands"
	"servicegraph/internal/domain"
	"servicegraph/internal/transform"
)

var (
	fetchFilters queryFlags
	fetchJSON    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the current graph and print it",
	Long: `Fetch one snapshot and print services with their transactions, followed
by the edges between them.

Examples:
  servicegraph-cli fetch
  servicegraph-cli fetch --status unexpected_error --window 1h
  servicegraph-cli fetch --json > snapshot.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		now := time.Now()
		filters, err := fetchFilters.filters(cfg.Source.ProjectID, now)
		if err != nil {
			return err
		}

		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		payload, err := commands.FetchGraph(ctx, source, filters.Query())
		if err != nil {
			return err
		}

		if fetchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		}

		opts := transform.Options{Thresholds: cfg.Health.Thresholds, ActivityWindow: cfg.Health.ActivityWindow.Duration, Now: now}
		printGraph(cmd.OutOrStdout(), transform.Payload(payload, opts))
		return nil
	},
}

// printGraph writes the node tree and the edge list of g
func printGraph(w io.Writer, g *domain.RenderGraph) {
	var roots []string
	for _, id := range g.NodeIDs() {
		if g.Nodes[id].ParentID == "" {
			roots = append(roots, id)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool { return g.Nodes[roots[i]].Name < g.Nodes[roots[j]].Name })

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n := g.Nodes[id]
		if n.Ghost {
			return
		}
		name := n.Name
		if n.Type == domain.NodeTypeService {
			name = Brand.Sprint(name)
		}
		if n.Activity == domain.Inactive {
			name += Subtle.Sprint(" (inactive)")
		}
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), healthIcon(n.Health), name)
		for _, c := range g.Children(id) {
			walk(c, depth+1)
		}
	}
	for _, id := range roots {
		walk(id, 0)
	}

	if len(g.Edges) == 0 {
		return
	}
	fmt.Fprintln(w)
	var rows [][]string
	for _, k := range g.EdgeKeys() {
		e := g.Edges[k]
		rows = append(rows, []string{
			g.Nodes[k.Source].Name,
			g.Nodes[k.Target].Name,
			fmt.Sprint(e.Volume),
			counters(e.Source.Counters),
			string(e.Health),
		})
	}
	table(w, []string{"FROM", "TO", "CALLS", "OK/EXP/UNEXP", "HEALTH"}, rows)
}

func init() {
	fetchFilters.register(fetchCmd)
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the raw payload")
	rootCmd.AddCommand(fetchCmd)
}
