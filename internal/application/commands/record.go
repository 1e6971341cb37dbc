package commands

import (
	"context"
	"fmt"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// RecordResult contains the id of a stored snapshot
type RecordResult struct {
	SnapshotID int64
	Nodes      int
	Edges      int
	Message    string
}

// RecordCommand fetches one snapshot and stores it
type RecordCommand struct {
	source ports.DataSource
	store  ports.SnapshotStore
	Query  domain.Query
	At     time.Time
}

// NewRecordCommand creates a new RecordCommand
func NewRecordCommand(source ports.DataSource, store ports.SnapshotStore, q domain.Query, at time.Time) *RecordCommand {
	return &RecordCommand{source: source, store: store, Query: q, At: at}
}

// Validate checks the query
func (c *RecordCommand) Validate() error {
	return application.ValidateQuery(c.Query)
}

// Execute fetches and records the snapshot
func (c *RecordCommand) Execute(ctx context.Context) (*RecordResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	payload, err := FetchGraph(ctx, c.source, c.Query)
	if err != nil {
		return nil, err
	}
	id, err := c.store.Record(ctx, c.Query.ProjectID, payload, c.At)
	if err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}
	return &RecordResult{
		SnapshotID: id,
		Nodes:      len(payload.Graph.Nodes),
		Edges:      len(payload.Graph.Edges),
		Message:    fmt.Sprintf("recorded snapshot %d (%d nodes, %d edges)", id, len(payload.Graph.Nodes), len(payload.Graph.Edges)),
	}, nil
}
