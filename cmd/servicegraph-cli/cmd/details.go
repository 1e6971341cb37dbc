package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"servicegraph/internal/application/commands"
	"servicegraph/internal/domain"
)

var detailsCmd = &cobra.Command{
	Use:   "details <node-id | source-id->destination-id>",
	Short: "Show one node or edge",
	Long: `Resolve a node or an edge against the current snapshot and print its
health, activity and traffic.

Examples:
  servicegraph-cli details 6f1c0b1e-8d2a-4c55-9a57-0d9a3b3f2a10
  servicegraph-cli details 6f1c...2a10->9b7e...41cd`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := domain.SelectNode(args[0])
		if strings.Contains(args[0], "->") {
			key, err := domain.ParseEdgeKey(args[0])
			if err != nil {
				return err
			}
			sel = domain.SelectEdge(key.Source, key.Target)
		}

		source, err := openSource(cmd)
		if err != nil {
			return err
		}
		defer source.Close()

		detailsCmd := commands.NewDetailsCommand(source, domain.Query{ProjectID: cfg.Source.ProjectID}, sel, cfg.Health.Thresholds)
		detailsCmd.Window = cfg.Health.ActivityWindow.Duration
		result, err := detailsCmd.Execute(cmd.Context())
		if err != nil {
			return err
		}
		if !result.Found {
			return errors.New(result.Message)
		}

		out := cmd.OutOrStdout()
		if result.View.Node != nil {
			printNode(out, result.View.Node)
		} else {
			printEdge(out, result.View.Edge)
		}
		return nil
	},
}

func printNode(w io.Writer, d *domain.NodeDetails) {
	fmt.Fprintf(w, "%s %s %s\n", healthIcon(d.Health), Brand.Sprint(d.Node.Name), Subtle.Sprintf("(%s)", d.Node.Type))
	fmt.Fprintf(w, "  id:       %s\n", d.Node.ID)
	if d.Node.Description != "" {
		fmt.Fprintf(w, "  about:    %s\n", d.Node.Description)
	}
	activity := string(d.Activity)
	if d.LastActivity != "" {
		activity += " since " + d.LastActivity
	}
	fmt.Fprintf(w, "  activity: %s\n", activity)
	fmt.Fprintf(w, "  calls:    %s\n", counters(d.Node.Counters))
	if d.Parent != nil {
		fmt.Fprintf(w, "  service:  %s\n", d.Parent.Name)
	}
	for _, c := range d.Children {
		fmt.Fprintf(w, "  - %s\n", c.Name)
	}
	fmt.Fprintf(w, "  edges:    %d in, %d out\n", len(d.Incoming), len(d.Outgoing))
}

func printEdge(w io.Writer, d *domain.EdgeDetails) {
	fmt.Fprintf(w, "%s %s → %s\n", healthIcon(d.Health), Brand.Sprint(d.Source.Name), Brand.Sprint(d.Destination.Name))
	if d.Edge.Description != "" {
		fmt.Fprintf(w, "  about:  %s\n", d.Edge.Description)
	}
	fmt.Fprintf(w, "  volume: %d\n", d.Volume)
	fmt.Fprintf(w, "  calls:  %s\n", counters(d.Edge.Counters))
}

func init() {
	rootCmd.AddCommand(detailsCmd)
}
