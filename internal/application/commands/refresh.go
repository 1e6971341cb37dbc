package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

// Reconciler applies snapshots to a mounted renderer
type Reconciler interface {
	Reconcile(ctx context.Context, p *domain.Payload) (*reconcile.Result, error)
}

// RefreshResult contains the outcome of one fetch and reconcile cycle
type RefreshResult struct {
	Payload    *domain.Payload
	Cycle      *reconcile.Result
	SnapshotID int64
	FetchedAt  time.Time
	Message    string
}

// RefreshCommand fetches the graph for a query and reconciles it
type RefreshCommand struct {
	source     ports.DataSource
	reconciler Reconciler
	selection  *selection.Store
	recorder   ports.SnapshotStore
	Query      domain.Query
	Now        func() time.Time
}

// NewRefreshCommand creates a new RefreshCommand. selection and recorder may be nil.
func NewRefreshCommand(source ports.DataSource, reconciler Reconciler, sel *selection.Store, recorder ports.SnapshotStore, q domain.Query) *RefreshCommand {
	return &RefreshCommand{
		source:     source,
		reconciler: reconciler,
		selection:  sel,
		recorder:   recorder,
		Query:      q,
		Now:        time.Now,
	}
}

// Validate checks the query
func (c *RefreshCommand) Validate() error {
	return application.ValidateQuery(c.Query)
}

// Execute runs one cycle. A data source failure is returned as a SourceError
// before anything is reconciled. A reconcile failure still returns the
// result so callers can keep the fresh payload.
func (c *RefreshCommand) Execute(ctx context.Context) (*RefreshResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log := logging.FromContext(ctx)

	payload, err := FetchGraph(ctx, c.source, c.Query)
	if err != nil {
		return nil, err
	}

	res := &RefreshResult{Payload: payload, FetchedAt: c.Now()}
	if c.selection != nil {
		c.selection.Update(payload)
	}

	if c.recorder != nil {
		id, err := c.recorder.Record(ctx, c.Query.ProjectID, payload, res.FetchedAt)
		if err != nil {
			log.Warn("failed to record snapshot", "error", err)
		}
		res.SnapshotID = id
	}

	cycle, err := c.reconciler.Reconcile(ctx, payload)
	res.Cycle = cycle
	if err != nil {
		res.Message = fmt.Sprintf("reconcile skipped: %v", err)
		return res, err
	}

	res.Message = summarize(payload, cycle)
	return res, nil
}

func summarize(p *domain.Payload, cycle *reconcile.Result) string {
	if cycle.NoOp() {
		return fmt.Sprintf("%d nodes, %d edges, unchanged", len(p.Graph.Nodes), len(p.Graph.Edges))
	}
	ops := cycle.Operations
	return fmt.Sprintf("%d nodes, %d edges (+%d/-%d nodes, +%d/-%d edges)",
		len(p.Graph.Nodes), len(p.Graph.Edges),
		ops.AddedNodes, ops.RemovedNodes, ops.AddedEdges, ops.RemovedEdges)
}

// FetchGraph fetches a payload and normalizes failures into SourceErrors
func FetchGraph(ctx context.Context, source ports.DataSource, q domain.Query) (*domain.Payload, error) {
	payload, err := source.FetchGraph(ctx, q)
	if err != nil {
		return nil, asSourceError("fetch graph", err)
	}
	if payload == nil {
		return nil, &application.SourceError{Op: "fetch graph", Retryable: true, Err: errors.New("empty response")}
	}
	return payload, nil
}

// FetchHistogram fetches the traffic histogram for a query
func FetchHistogram(ctx context.Context, source ports.DataSource, q domain.Query) (*domain.Histogram, error) {
	if err := application.ValidateQuery(q); err != nil {
		return nil, err
	}
	h, err := source.FetchHistogram(ctx, q)
	if err != nil {
		return nil, asSourceError("fetch histogram", err)
	}
	if h == nil {
		h = &domain.Histogram{}
	}
	return h, nil
}

func asSourceError(op string, err error) error {
	var se *application.SourceError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &application.SourceError{Op: op, Retryable: true, Err: err}
}
