package ports

import (
	"context"
	"time"

	"servicegraph/internal/domain"
)

// SnapshotStore records fetched snapshots for later inspection and replay
type SnapshotStore interface {
	// Lifecycle
	Open(path string) error
	Close() error

	// Writes
	Record(ctx context.Context, projectID int, p *domain.Payload, at time.Time) (int64, error)
	BeginTx(ctx context.Context) (StoreTx, error)

	// Queries
	List(ctx context.Context, projectID int, limit int) ([]domain.SnapshotInfo, error)
	Load(ctx context.Context, id int64) (*domain.Payload, error)
	Latest(ctx context.Context, projectID int) (*domain.Payload, error)
	EdgeHistory(ctx context.Context, projectID int, key domain.EdgeKey, limit int) ([]domain.EdgeSample, error)
	Histogram(ctx context.Context, q domain.Query, bucket time.Duration) (*domain.Histogram, error)
}

// StoreTx represents a transaction for atomic snapshot writes
type StoreTx interface {
	InsertSnapshot(projectID int, at time.Time, raw []byte) (int64, error)
	InsertNode(snapshotID int64, n domain.Node, lastActivity string) error
	InsertEdge(snapshotID int64, e domain.Edge) error
	DeleteBefore(projectID int, before time.Time) (int64, error)

	Commit() error
	Rollback() error
}
