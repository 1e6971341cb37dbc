package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

func mountedReconciler(t *testing.T) (*reconcile.Reconciler, *canvas.Canvas) {
	t.Helper()
	var c *canvas.Canvas
	r := reconcile.New(reconcile.DefaultOptions())
	if err := r.Mount(canvas.Factory(func(created *canvas.Canvas) { c = created })); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}
	t.Cleanup(func() { _ = r.Unmount() })
	return r, c
}

func TestRefreshCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   domain.Query
		wantErr bool
		errMsg  string
	}{
		{name: "valid", query: domain.Query{ProjectID: 1}},
		{name: "missing project", query: domain.Query{}, wantErr: true, errMsg: "project ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &RefreshCommand{Query: tt.query}
			err := cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestRefreshCommand_Execute(t *testing.T) {
	r, c := mountedReconciler(t)
	source := &fakeSource{payloads: []*domain.Payload{testPayload()}}
	store := &fakeStore{}
	sel := selection.NewStore(domain.DefaultThresholds(), 0)
	sel.Select(domain.SelectNode(dbID.String()))

	res, err := NewRefreshCommand(source, r, sel, store, domain.Query{ProjectID: 1}).Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if res.Cycle.Operations.AddedNodes != 4 {
		t.Errorf("expected 4 added nodes including a ghost, got %d", res.Cycle.Operations.AddedNodes)
	}
	if c.NodeCount() != 4 || c.EdgeCount() != 1 {
		t.Errorf("renderer holds %d nodes and %d edges", c.NodeCount(), c.EdgeCount())
	}
	if res.SnapshotID != 1 || len(store.recorded) != 1 {
		t.Errorf("expected snapshot to be recorded, got id %d", res.SnapshotID)
	}
	if _, ok := sel.Details(); !ok {
		t.Error("expected selection to resolve against the new payload")
	}
	if !strings.Contains(res.Message, "+4/-0 nodes") {
		t.Errorf("unexpected message: %s", res.Message)
	}

	res, err = NewRefreshCommand(source, r, nil, nil, domain.Query{ProjectID: 1}).Execute(context.Background())
	if err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if !strings.Contains(res.Message, "unchanged") {
		t.Errorf("expected unchanged, got %s", res.Message)
	}
}

func TestRefreshCommand_SourceError(t *testing.T) {
	r, c := mountedReconciler(t)
	source := &fakeSource{err: errors.New("connection refused")}

	_, err := NewRefreshCommand(source, r, nil, nil, domain.Query{ProjectID: 1}).Execute(context.Background())

	if !application.IsRetryable(err) {
		t.Fatalf("expected retryable source error, got %v", err)
	}
	if c.NodeCount() != 0 {
		t.Error("nothing must be reconciled after a failed fetch")
	}
}

func TestRefreshCommand_InvariantError(t *testing.T) {
	r, _ := mountedReconciler(t)
	bad := testPayload()
	bad.Graph.Edges = append(bad.Graph.Edges, domain.Edge{FromNodeID: apiID, ToNodeID: [16]byte{9}})
	source := &fakeSource{payloads: []*domain.Payload{bad}}

	res, err := NewRefreshCommand(source, r, nil, nil, domain.Query{ProjectID: 1}).Execute(context.Background())

	if !errors.Is(err, reconcile.ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
	if res == nil || res.Payload == nil {
		t.Fatal("expected the fetched payload to be returned")
	}
	if application.IsRetryable(err) {
		t.Error("invariant errors are not source errors")
	}
}

func TestRefreshCommand_RecorderFailureIsNotFatal(t *testing.T) {
	r, _ := mountedReconciler(t)
	source := &fakeSource{payloads: []*domain.Payload{testPayload()}}

	res, err := NewRefreshCommand(source, r, nil, &fakeStore{fail: true}, domain.Query{ProjectID: 1}).Execute(context.Background())

	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.SnapshotID != 0 {
		t.Errorf("expected no snapshot id, got %d", res.SnapshotID)
	}
}

func TestFetchHistogram(t *testing.T) {
	source := &fakeSource{histogram: &domain.Histogram{Buckets: []domain.Bucket{{TS: "2024-05-01T11:00:00Z", N: 3}}}}

	h, err := FetchHistogram(context.Background(), source, domain.Query{ProjectID: 1})
	if err != nil {
		t.Fatalf("FetchHistogram() error: %v", err)
	}
	if h.Max() != 3 {
		t.Errorf("expected max 3, got %d", h.Max())
	}

	if _, err := FetchHistogram(context.Background(), source, domain.Query{}); !errors.Is(err, application.ErrInvalidQuery) {
		t.Errorf("expected invalid query, got %v", err)
	}
}
