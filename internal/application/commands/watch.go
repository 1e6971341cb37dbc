package commands

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

// Default poll intervals
const (
	DefaultGraphInterval     = time.Second
	DefaultHistogramInterval = 5 * time.Second
)

// WatchEvent is reported after every graph or histogram poll
type WatchEvent struct {
	Refresh   *RefreshResult
	Histogram *domain.Histogram
	Err       error
}

// WatchCommand polls the data source on two timers and reconciles every
// graph snapshot. Reconciliation is serialized across both loops and the
// renderer is unmounted on every exit path.
type WatchCommand struct {
	source            ports.DataSource
	reconciler        *reconcile.Reconciler
	factory           ports.RendererFactory
	selection         *selection.Store
	recorder          ports.SnapshotStore
	filters           *application.FilterState
	GraphInterval     time.Duration
	HistogramInterval time.Duration
	OnEvent           func(WatchEvent)

	mu    sync.Mutex
	retry chan struct{}
}

// NewWatchCommand creates a new WatchCommand
func NewWatchCommand(source ports.DataSource, r *reconcile.Reconciler, factory ports.RendererFactory, sel *selection.Store, recorder ports.SnapshotStore, filters *application.FilterState) *WatchCommand {
	return &WatchCommand{
		source:            source,
		reconciler:        r,
		factory:           factory,
		selection:         sel,
		recorder:          recorder,
		filters:           filters,
		GraphInterval:     DefaultGraphInterval,
		HistogramInterval: DefaultHistogramInterval,
		retry:             make(chan struct{}, 1),
	}
}

// Validate checks the configuration
func (c *WatchCommand) Validate() error {
	if c.GraphInterval <= 0 {
		return &application.ValidationError{Field: "graphInterval", Message: "graph interval must be positive"}
	}
	if c.HistogramInterval <= 0 {
		return &application.ValidationError{Field: "histogramInterval", Message: "histogram interval must be positive"}
	}
	return application.ValidateQuery(c.filters.Query())
}

// Retry requests an immediate graph fetch
func (c *WatchCommand) Retry() {
	select {
	case c.retry <- struct{}{}:
	default:
	}
}

// Execute mounts the renderer and polls until ctx is done. Source and
// reconcile failures are reported through OnEvent and never stop the loop.
func (c *WatchCommand) Execute(ctx context.Context) (err error) {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.reconciler.Mount(c.factory); err != nil {
		return err
	}
	defer func() {
		if uerr := c.reconciler.Unmount(); uerr != nil && err == nil {
			err = uerr
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.pollGraph(ctx) })
	g.Go(func() error { return c.pollHistogram(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (c *WatchCommand) pollGraph(ctx context.Context) error {
	ticker := time.NewTicker(c.GraphInterval)
	defer ticker.Stop()

	c.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-c.retry:
		}
		c.refresh(ctx)
	}
}

func (c *WatchCommand) pollHistogram(ctx context.Context) error {
	ticker := time.NewTicker(c.HistogramInterval)
	defer ticker.Stop()

	for {
		h, err := FetchHistogram(ctx, c.source, c.filters.Query())
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.emit(WatchEvent{Histogram: h, Err: err})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refresh runs one cycle. The lock keeps cycles from overlapping.
func (c *WatchCommand) refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.filters.Refresh(time.Now())
	res, err := NewRefreshCommand(c.source, c.reconciler, c.selection, c.recorder, q).Execute(ctx)
	if ctx.Err() != nil {
		return
	}

	log := logging.FromContext(ctx)
	switch {
	case err == nil:
		log.Debug("refreshed", "summary", res.Message)
	case errors.Is(err, reconcile.ErrInvariant):
		// already logged by the reconciler; the next tick starts fresh
	case application.IsRetryable(err):
		log.Warn("fetch failed", "error", err)
	default:
		log.Error("refresh failed", "error", err)
	}
	c.emit(WatchEvent{Refresh: res, Err: err})
}

func (c *WatchCommand) emit(ev WatchEvent) {
	if c.OnEvent != nil {
		c.OnEvent(ev)
	}
}
