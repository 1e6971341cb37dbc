package commands

import (
	"fmt"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/transform"
)

// DiffResult contains the staging between two snapshots
type DiffResult struct {
	Staging reconcile.Staging
	Message string
}

// DiffCommand computes what a reconciler would do going from one snapshot to another
type DiffCommand struct {
	From    *domain.Payload
	To      *domain.Payload
	Options transform.Options
}

// NewDiffCommand creates a new DiffCommand
func NewDiffCommand(from, to *domain.Payload, thresholds domain.Thresholds, now time.Time) *DiffCommand {
	return &DiffCommand{
		From: from,
		To:   to,
		Options: transform.Options{
			Thresholds:     thresholds,
			ActivityWindow: domain.DefaultActivityWindow,
			Now:            now,
		},
	}
}

// Validate checks that both snapshots are present
func (c *DiffCommand) Validate() error {
	if c.From == nil {
		return &application.ValidationError{Field: "from", Message: "previous snapshot is required"}
	}
	if c.To == nil {
		return &application.ValidationError{Field: "to", Message: "next snapshot is required"}
	}
	return nil
}

// Execute plans the transition. An invalid snapshot is reported as an InvariantError.
func (c *DiffCommand) Execute() (*DiffResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	from := transform.Payload(c.From, c.Options)
	if err := reconcile.Validate(from); err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}
	to := transform.Payload(c.To, c.Options)

	staging, _, err := reconcile.Plan(reconcile.CommittedFrom(from), to)
	if err != nil {
		return nil, fmt.Errorf("next snapshot: %w", err)
	}

	msg := "no structural changes"
	if !staging.Empty() {
		msg = fmt.Sprintf("+%d/-%d nodes, +%d/-%d edges, %d reparented",
			len(staging.Add.Nodes), len(staging.Remove.Nodes),
			len(staging.Add.Edges), len(staging.Remove.Edges), len(staging.Reparent))
	}
	return &DiffResult{Staging: staging, Message: msg}, nil
}
