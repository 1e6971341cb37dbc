package ports

import (
	"context"

	"servicegraph/internal/domain"
)

// DataSource produces graph snapshots and traffic histograms for a query
type DataSource interface {
	FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error)
	FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error)
}
