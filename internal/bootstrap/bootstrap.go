// Package bootstrap assembles the adapters named by a configuration. The
// three binaries share it so they agree on sources, storage and logging.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"servicegraph/internal/adapters/filesource"
	"servicegraph/internal/adapters/httpsource"
	"servicegraph/internal/adapters/sqlite"
	"servicegraph/internal/config"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
)

// Logger builds the configured logger. Output goes to the log file when one
// is set, otherwise to fallback. The returned close func is never nil.
func Logger(cfg config.LogConfig, fallback io.Writer) (*slog.Logger, func() error, error) {
	if cfg.File == "" {
		return logging.New(cfg.Level, cfg.Format, fallback), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logging.New(cfg.Level, cfg.Format, f), f.Close, nil
}

// OpenStore opens the snapshot database at the configured path
func OpenStore(cfg *config.Config) (*sqlite.Store, error) {
	store := sqlite.NewStore()
	if err := store.Open(cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return store, nil
}

// Source is a data source together with the func that releases it
type Source struct {
	ports.DataSource
	Store *sqlite.Store
	close func() error
}

// Close releases whatever the source holds open
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSource builds the data source selected by cfg.Source.Kind. A file
// source is watched until ctx is done. A replay source opens the store.
// When recording is enabled the store is opened for every kind.
func OpenSource(ctx context.Context, cfg *config.Config) (*Source, error) {
	var (
		store *sqlite.Store
		err   error
	)
	if cfg.Source.Kind == "replay" || cfg.Store.Record {
		store, err = OpenStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	closeStore := func() error {
		if store == nil {
			return nil
		}
		return store.Close()
	}

	log := logging.FromContext(ctx)
	switch cfg.Source.Kind {
	case "http":
		client := httpsource.New(cfg.Source.URL).WithTimeout(cfg.Source.Timeout.Duration)
		return &Source{DataSource: client, Store: store, close: closeStore}, nil

	case "file":
		if cfg.Source.File == "" {
			_ = closeStore()
			return nil, fmt.Errorf("file source needs a path")
		}
		fs := filesource.New(cfg.Source.File)
		fs.OnReload(func(err error) {
			if err != nil {
				log.Warn("payload reload failed", "file", cfg.Source.File, "error", err)
				return
			}
			log.Info("payload reloaded", "file", cfg.Source.File)
		})
		if err := fs.Start(ctx); err != nil {
			_ = closeStore()
			return nil, err
		}
		return &Source{DataSource: fs, Store: store, close: func() error {
			fs.Stop()
			return closeStore()
		}}, nil

	case "replay":
		return &Source{DataSource: sqlite.NewReplay(store), Store: store, close: closeStore}, nil

	default:
		_ = closeStore()
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Recorder returns the store to record into, or nil when recording is off.
// A replay source is never recorded back into its own store.
func (s *Source) Recorder(cfg *config.Config) ports.SnapshotStore {
	if !cfg.Store.Record || s.Store == nil || cfg.Source.Kind == "replay" {
		return nil
	}
	return s.Store
}

// ReconcileOptions maps the render and health settings onto reconciler options
func ReconcileOptions(cfg *config.Config, metrics *reconcile.Metrics) reconcile.Options {
	opts := reconcile.DefaultOptions()
	opts.Thresholds = cfg.Health.Thresholds
	opts.ActivityWindow = cfg.Health.ActivityWindow.Duration
	opts.MinWidth = cfg.Render.MinWidth
	opts.MaxWidth = cfg.Render.MaxWidth
	opts.Layout = ports.LayoutConfig{
		Name:    cfg.Render.Layout,
		Spacing: cfg.Render.Spacing,
		Animate: cfg.Render.Animate,
	}
	opts.Metrics = metrics
	return opts
}
