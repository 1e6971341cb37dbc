// Package filesource serves graph snapshots from a JSON file on disk and
// reloads it whenever the file changes.
package filesource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/logging"
	"servicegraph/internal/ports"
)

// DefaultDebounce coalesces the burst of events editors emit on save
const DefaultDebounce = 100 * time.Millisecond

// Source is a ports.DataSource backed by one payload file
type Source struct {
	path     string
	debounce time.Duration
	bucket   time.Duration

	mu      sync.RWMutex
	payload *domain.Payload
	loadErr error
	loaded  time.Time

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	onReload func(error)
}

var _ ports.DataSource = (*Source)(nil)

// New creates a source for path and loads it once. A file that fails to
// load is not fatal: fetches report the error until the file is fixed.
func New(path string) *Source {
	s := &Source{
		path:     path,
		debounce: DefaultDebounce,
		bucket:   time.Minute,
		done:     make(chan struct{}),
	}
	s.reload()
	return s
}

// OnReload registers a callback invoked after every reload
func (s *Source) OnReload(fn func(error)) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Start watches the file's directory until ctx is done or Stop is called.
// The directory is watched so atomic rename-on-save is picked up.
func (s *Source) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	s.watcher = w

	go s.processEvents(ctx)
	return nil
}

// Stop ends watching
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

// Loaded returns when the file was last read successfully
func (s *Source) Loaded() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// FetchGraph returns the current payload filtered by q
func (s *Source) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loadErr != nil {
		return nil, &application.SourceError{Op: "read file", Retryable: true, Err: s.loadErr}
	}
	return q.Apply(s.payload), nil
}

// FetchHistogram buckets the filtered payload's activity per minute
func (s *Source) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	p, err := s.FetchGraph(ctx, q)
	if err != nil {
		return nil, err
	}
	return p.ActivityHistogram(s.bucket), nil
}

func (s *Source) reload() error {
	p, err := readPayload(s.path)

	s.mu.Lock()
	if err == nil {
		s.payload = p
		s.loaded = time.Now()
	}
	s.loadErr = err
	fn := s.onReload
	s.mu.Unlock()

	if fn != nil {
		fn(err)
	}
	return err
}

func readPayload(path string) (*domain.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p domain.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &p, nil
}

func (s *Source) processEvents(ctx context.Context) {
	log := logging.FromContext(ctx)
	name := filepath.Clean(s.path)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if err := s.reload(); err != nil {
				log.Warn("payload reload failed", "path", s.path, "error", err)
			} else {
				log.Debug("payload reloaded", "path", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("file watcher error", "error", err)
		}
	}
}
