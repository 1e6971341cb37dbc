package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/adapters/sqlite"
	"servicegraph/internal/application/commands"
	"servicegraph/internal/bootstrap"
	"servicegraph/internal/domain"
)

var diffCmd = &cobra.Command{
	Use:   "diff <from> <to>",
	Short: "Show what changes between two snapshots",
	Long: `Compare two snapshots and print the nodes and edges a viewer would add,
remove or move. Each argument is a recorded snapshot ID or a payload file.

Examples:
  servicegraph-cli diff 41 42
  servicegraph-cli diff before.json after.json
  servicegraph-cli diff 41 now.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var store *sqlite.Store
		load := func(arg string) (*domain.Payload, error) {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return readPayloadFile(arg)
			}
			if store == nil {
				if store, err = bootstrap.OpenStore(cfg); err != nil {
					return nil, err
				}
			}
			return store.Load(ctx, id)
		}
		defer func() {
			if store != nil {
				store.Close()
			}
		}()

		from, err := load(args[0])
		if err != nil {
			return fmt.Errorf("from: %w", err)
		}
		to, err := load(args[1])
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}

		result, err := commands.NewDiffCommand(from, to, cfg.Health.Thresholds, time.Now()).Execute()
		if err != nil {
			return err
		}
		printStaging(cmd.OutOrStdout(), result)
		return nil
	},
}

func readPayloadFile(path string) (*domain.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p domain.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &p, nil
}

func printStaging(w io.Writer, result *commands.DiffResult) {
	fmt.Fprintln(w, result.Message)
	st := result.Staging
	name := func(g *domain.RenderGraph, id string) string {
		if g != nil {
			if n, ok := g.Nodes[id]; ok && n.Name != "" {
				return n.Name
			}
		}
		return id
	}
	edge := func(g *domain.RenderGraph, k domain.EdgeKey) string {
		return name(g, k.Source) + " → " + name(g, k.Target)
	}

	ghost := func(g *domain.RenderGraph, id string) bool {
		return g != nil && g.Nodes[id].Ghost
	}

	for _, id := range st.Add.Nodes {
		if !ghost(st.Next, id) {
			Good.Fprintf(w, "+ node %s\n", name(st.Next, id))
		}
	}
	for _, id := range st.Remove.Nodes {
		if !ghost(st.Previous, id) {
			Bad.Fprintf(w, "- node %s\n", name(st.Previous, id))
		}
	}
	for _, id := range st.Reparent {
		Warn.Fprintf(w, "~ node %s\n", name(st.Next, id))
	}
	for _, k := range st.Add.Edges {
		Good.Fprintf(w, "+ edge %s\n", edge(st.Next, k))
	}
	for _, k := range st.Remove.Edges {
		Bad.Fprintf(w, "- edge %s\n", edge(st.Previous, k))
	}
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
