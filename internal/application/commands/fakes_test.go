package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// fakeSource is a hand-written ports.DataSource
type fakeSource struct {
	mu        sync.Mutex
	payloads  []*domain.Payload
	histogram *domain.Histogram
	err       error
	calls     int
	queries   []domain.Query
}

func (f *fakeSource) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.payloads) == 0 {
		return &domain.Payload{}, nil
	}
	p := f.payloads[0]
	if len(f.payloads) > 1 {
		f.payloads = f.payloads[1:]
	}
	return p, nil
}

func (f *fakeSource) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.histogram, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is a hand-written ports.SnapshotStore that keeps snapshots in memory
type fakeStore struct {
	recorded []*domain.Payload
	fail     bool
}

var _ ports.SnapshotStore = (*fakeStore)(nil)

func (s *fakeStore) Open(path string) error { return nil }
func (s *fakeStore) Close() error           { return nil }

func (s *fakeStore) Record(ctx context.Context, projectID int, p *domain.Payload, at time.Time) (int64, error) {
	if s.fail {
		return 0, errors.New("disk full")
	}
	s.recorded = append(s.recorded, p)
	return int64(len(s.recorded)), nil
}

func (s *fakeStore) BeginTx(ctx context.Context) (ports.StoreTx, error) {
	return nil, errors.New("not supported")
}

func (s *fakeStore) List(ctx context.Context, projectID int, limit int) ([]domain.SnapshotInfo, error) {
	return nil, nil
}

func (s *fakeStore) Load(ctx context.Context, id int64) (*domain.Payload, error) {
	if id < 1 || int(id) > len(s.recorded) {
		return nil, fmt.Errorf("snapshot %d not found", id)
	}
	return s.recorded[id-1], nil
}

func (s *fakeStore) Latest(ctx context.Context, projectID int) (*domain.Payload, error) {
	return s.Load(ctx, int64(len(s.recorded)))
}

func (s *fakeStore) EdgeHistory(ctx context.Context, projectID int, key domain.EdgeKey, limit int) ([]domain.EdgeSample, error) {
	return nil, nil
}

func (s *fakeStore) Histogram(ctx context.Context, q domain.Query, bucket time.Duration) (*domain.Histogram, error) {
	return &domain.Histogram{}, nil
}

var (
	apiID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	getID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	dbID  = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

func testPayload() *domain.Payload {
	return &domain.Payload{Graph: domain.Graph{
		Nodes: []domain.Node{
			{ID: apiID, Type: domain.NodeTypeService, Name: "api"},
			{ID: getID, Type: domain.NodeTypeTransaction, Name: "GET /users", ParentID: &apiID},
			{ID: dbID, Type: domain.NodeTypeService, Name: "db", Counters: domain.Counters{OK: 1, UnexpectedError: 4}},
		},
		Edges: []domain.Edge{
			{FromNodeID: getID, ToNodeID: dbID, Counters: domain.Counters{OK: 10, ExpectedError: 5}},
		},
	}}
}
