package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
)

// queryFlags are the filter predicates shared by the commands that fetch a graph
type queryFlags struct {
	from      []string
	to        []string
	statuses  []string
	window    string
	start     string
	end       string
	minVolume int
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.from, "from", nil, "only edges from these node types (service, transaction)")
	cmd.Flags().StringSliceVar(&f.to, "to", nil, "only edges to these node types (service, transaction)")
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "only edges with these calls (ok, expected_error, unexpected_error)")
	cmd.Flags().StringVar(&f.window, "window", "all", "time window (all, 15m, 1h, 6h, 24h)")
	cmd.Flags().StringVar(&f.start, "start", "", "fixed range start (RFC3339), replaces --window")
	cmd.Flags().StringVar(&f.end, "end", "", "fixed range end (RFC3339), defaults to now")
	cmd.Flags().IntVar(&f.minVolume, "min-volume", 0, "hide edges with fewer calls")
}

// filters builds the filter state for a project from the flags
func (f *queryFlags) filters(projectID int, now time.Time) (*application.FilterState, error) {
	state := application.NewFilterState(projectID)
	for _, t := range f.from {
		state.ToggleFromType(domain.NodeType(t))
	}
	for _, t := range f.to {
		state.ToggleToType(domain.NodeType(t))
	}
	for _, s := range f.statuses {
		state.ToggleEdgeStatus(domain.EdgeStatus(s))
	}

	if f.start != "" || f.end != "" {
		if err := f.applyRange(state, now); err != nil {
			return nil, err
		}
	} else {
		w, err := domain.ParseTimeWindow(f.window)
		if err != nil {
			return nil, err
		}
		state.SetWindow(w, now)
	}

	if _, err := state.SetMinVolume(f.minVolume); err != nil {
		return nil, err
	}
	if err := application.ValidateQuery(state.Query()); err != nil {
		return nil, fmt.Errorf("invalid filters: %w", err)
	}
	return state, nil
}

func (f *queryFlags) applyRange(state *application.FilterState, now time.Time) error {
	if f.window != "" && f.window != "all" {
		return fmt.Errorf("--start and --end cannot be combined with --window %s", f.window)
	}
	if f.start == "" {
		return fmt.Errorf("--end needs --start")
	}
	start, err := time.Parse(time.RFC3339, f.start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end := now
	if f.end != "" {
		if end, err = time.Parse(time.RFC3339, f.end); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
	}
	if _, err := state.SetRange(start, end); err != nil {
		return fmt.Errorf("invalid filters: %w", err)
	}
	return nil
}
