package commands

import (
	"context"
	"fmt"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
	"servicegraph/internal/selection"
)

// DetailsResult contains a resolved selection
type DetailsResult struct {
	View    domain.DetailsView
	Found   bool
	Message string
}

// DetailsCommand fetches the latest snapshot and resolves a selection against it
type DetailsCommand struct {
	source     ports.DataSource
	Query      domain.Query
	Selection  domain.Selection
	Thresholds domain.Thresholds
	Window     time.Duration
	Now        func() time.Time
}

// NewDetailsCommand creates a new DetailsCommand
func NewDetailsCommand(source ports.DataSource, q domain.Query, sel domain.Selection, thresholds domain.Thresholds) *DetailsCommand {
	return &DetailsCommand{
		source:     source,
		Query:      q,
		Selection:  sel,
		Thresholds: thresholds,
		Window:     domain.DefaultActivityWindow,
		Now:        time.Now,
	}
}

// Validate checks that something is selected
func (c *DetailsCommand) Validate() error {
	switch c.Selection.Kind {
	case domain.SelectionNode:
		if c.Selection.NodeID == "" {
			return &application.ValidationError{Field: "nodeID", Message: "node ID is required"}
		}
	case domain.SelectionEdge:
		if c.Selection.Edge.Source == "" || c.Selection.Edge.Target == "" {
			return &application.ValidationError{Field: "edge", Message: "source and destination IDs are required"}
		}
	default:
		return &application.ValidationError{Field: "selection", Message: "select a node or an edge"}
	}
	return application.ValidateQuery(c.Query)
}

// Execute resolves the selection. An entity that is not in the snapshot
// yields Found == false rather than an error.
func (c *DetailsCommand) Execute(ctx context.Context) (*DetailsResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	payload, err := FetchGraph(ctx, c.source, c.Query)
	if err != nil {
		return nil, err
	}

	view, ok := selection.Resolve(c.Selection, payload, c.Thresholds, c.Window, c.Now())
	if !ok {
		return &DetailsResult{Message: fmt.Sprintf("%s not found", c.Selection.Kind)}, nil
	}

	res := &DetailsResult{View: view, Found: true}
	if view.Node != nil {
		res.Message = fmt.Sprintf("node %s (%s)", view.Node.Node.Name, view.Node.Health)
	} else {
		res.Message = fmt.Sprintf("edge %s -> %s (%s)", view.Edge.Source.Name, view.Edge.Destination.Name, view.Edge.Health)
	}
	return res, nil
}
