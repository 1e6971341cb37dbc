package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// Replay is a ports.DataSource that plays back a project's recorded
// snapshots in order, starting over after the last one.
type Replay struct {
	store  *Store
	bucket time.Duration

	mu   sync.Mutex
	ids  []int64
	next int
}

var _ ports.DataSource = (*Replay)(nil)

// NewReplay creates a replay source over store
func NewReplay(store *Store) *Replay {
	return &Replay{store: store, bucket: time.Minute}
}

// FetchGraph returns the next recorded snapshot filtered by q. The id list
// is re-read at the start of every pass so new recordings join the loop.
func (r *Replay) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.ids) {
		ids, err := r.store.ids(ctx, q.ProjectID)
		if err != nil {
			return nil, &application.SourceError{Op: "replay", Retryable: true, Err: err}
		}
		if len(ids) == 0 {
			return nil, &application.SourceError{
				Op:  "replay",
				Err: fmt.Errorf("project %d: %w", q.ProjectID, application.ErrNotFound),
			}
		}
		r.ids, r.next = ids, 0
	}

	p, err := r.store.Load(ctx, r.ids[r.next])
	r.next++
	if err != nil {
		return nil, &application.SourceError{Op: "replay", Retryable: true, Err: err}
	}
	return q.Apply(p), nil
}

// FetchHistogram returns recorded traffic per minute
func (r *Replay) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	h, err := r.store.Histogram(ctx, q, r.bucket)
	if err != nil {
		return nil, &application.SourceError{Op: "replay histogram", Retryable: true, Err: err}
	}
	return h, nil
}
