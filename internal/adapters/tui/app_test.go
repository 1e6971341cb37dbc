package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/adapters/tui/views"
	"servicegraph/internal/application"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

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
			{ID: dbID, Type: domain.NodeTypeService, Name: "db"},
		},
		Edges: []domain.Edge{
			{FromNodeID: getID, ToNodeID: dbID, Counters: domain.Counters{OK: 10}},
		},
	}}
}

type stubSource struct {
	mu      sync.Mutex
	err     error
	queries []domain.Query
}

func (s *stubSource) FetchGraph(ctx context.Context, q domain.Query) (*domain.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return testPayload(), nil
}

func (s *stubSource) FetchHistogram(ctx context.Context, q domain.Query) (*domain.Histogram, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Histogram{Buckets: []domain.Bucket{{TS: "2026-01-01T00:00:00Z", N: 3}}}, nil
}

func newTestApp(t *testing.T, source *stubSource) (*App, *[]string) {
	t.Helper()
	var copied []string
	opts := reconcile.DefaultOptions()
	r := reconcile.New(opts)
	sel := selection.NewStore(opts.Thresholds, opts.ActivityWindow)
	app := NewApp(context.Background(), source, r, sel, application.NewFilterState(1), Options{
		GraphInterval:     time.Hour,
		HistogramInterval: time.Hour,
		Clipboard: func(s string) error {
			copied = append(copied, s)
			return nil
		},
	})
	if err := app.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app, &copied
}

// refresh runs one graph fetch synchronously and feeds the result back
func refresh(t *testing.T, app *App) {
	t.Helper()
	cmd := app.fetchGraph()
	if cmd == nil {
		t.Fatal("fetchGraph() returned nil")
	}
	app.Update(cmd())
}

// drain runs cmd, or each command of a batch, and feeds the results back.
// Commands produced in turn are dropped.
func drain(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				app.Update(c())
			}
		}
		return
	}
	app.Update(msg)
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApp_RefreshReconcilesPayload(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})
	refresh(t, app)

	if app.payload == nil {
		t.Fatal("payload not stored")
	}
	if app.fetching {
		t.Error("fetching flag still set")
	}
	if got := len(app.graph.Entries()); got != 4 {
		t.Errorf("graph entries = %d, want 4", got)
	}
	if msg, isErr := app.Message(); isErr || !strings.Contains(msg, "3 nodes") {
		t.Errorf("message = %q (error %v)", msg, isErr)
	}
	if app.canvas.NodeCount() != 4 {
		t.Errorf("canvas nodes = %d, want 4 including the ghost", app.canvas.NodeCount())
	}
}

func TestApp_FetchWhileFetchingIsDeferred(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})

	first := app.fetchGraph()
	if second := app.fetchGraph(); second != nil {
		t.Fatal("expected no second fetch while one is in flight")
	}
	if !app.pending {
		t.Fatal("expected a pending fetch")
	}

	_, cmd := app.Update(first())
	if cmd == nil {
		t.Fatal("expected the pending fetch to start")
	}
	if app.pending || !app.fetching {
		t.Errorf("pending = %v, fetching = %v", app.pending, app.fetching)
	}
}

func TestApp_StaleTicksIgnored(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})
	refresh(t, app)

	if _, cmd := app.Update(graphTickMsg{gen: app.graphGen - 1}); cmd != nil {
		t.Error("stale graph tick should be ignored")
	}
	if _, cmd := app.Update(histTickMsg{gen: app.histGen - 1}); cmd != nil {
		t.Error("stale histogram tick should be ignored")
	}
	if _, cmd := app.Update(graphTickMsg{gen: app.graphGen}); cmd == nil {
		t.Error("current graph tick should fetch")
	}
}

func TestApp_FilterKeys(t *testing.T) {
	tests := []struct {
		key   string
		check func(domain.Query) bool
	}{
		{"1", func(q domain.Query) bool { return slices.Contains(q.FromTypes, domain.NodeTypeService) }},
		{"2", func(q domain.Query) bool { return slices.Contains(q.FromTypes, domain.NodeTypeTransaction) }},
		{"3", func(q domain.Query) bool { return slices.Contains(q.ToTypes, domain.NodeTypeService) }},
		{"4", func(q domain.Query) bool { return slices.Contains(q.ToTypes, domain.NodeTypeTransaction) }},
		{"5", func(q domain.Query) bool { return slices.Contains(q.EdgeStatuses, domain.EdgeStatusOK) }},
		{"6", func(q domain.Query) bool { return slices.Contains(q.EdgeStatuses, domain.EdgeStatusExpectedError) }},
		{"7", func(q domain.Query) bool { return slices.Contains(q.EdgeStatuses, domain.EdgeStatusUnexpectedError) }},
		{"t", func(q domain.Query) bool { return q.StartDate != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			app, _ := newTestApp(t, &stubSource{})
			gen := app.graphGen

			_, cmd := app.Update(keyMsg(tt.key))
			if cmd == nil {
				t.Fatal("expected an immediate refetch")
			}
			if !tt.check(app.filters.Query()) {
				t.Errorf("query not updated: %+v", app.filters.Query())
			}
			if app.graphGen == gen {
				t.Error("pending ticks were not invalidated")
			}
		})
	}
}

func TestApp_VolumePrompt(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})

	app.Update(keyMsg("v"))
	if app.State() != ViewVolume {
		t.Fatalf("state = %v, want volume prompt", app.State())
	}

	_, cmd := app.Update(views.VolumeSubmittedMsg{Value: 25})
	if cmd == nil {
		t.Fatal("expected a refetch")
	}
	if app.State() != ViewGraph {
		t.Errorf("state = %v, want graph", app.State())
	}
	if got := app.filters.Query().MinVolume; got != 25 {
		t.Errorf("MinVolume = %d, want 25", got)
	}
}

func TestApp_HelpToggle(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})
	app.Update(keyMsg("?"))
	if app.State() != ViewHelp {
		t.Fatalf("state = %v, want help", app.State())
	}
	app.Update(views.CloseHelpMsg{})
	if app.State() != ViewGraph {
		t.Errorf("state = %v, want graph", app.State())
	}
}

func TestApp_TapAndCopy(t *testing.T) {
	app, copied := newTestApp(t, &stubSource{})
	refresh(t, app)

	app.Update(keyMsg("c"))
	if _, isErr := app.Message(); !isErr {
		t.Error("copy with no selection should report an error")
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := app.selection.Selection(); got.Kind != domain.SelectionNode {
		t.Fatalf("selection = %+v, want a node", got)
	}
	app.Update(keyMsg("c"))
	if len(*copied) != 1 || (*copied)[0] != app.selection.Selection().NodeID {
		t.Errorf("copied = %v", *copied)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !app.selection.Selection().IsZero() {
		t.Error("escape should clear the selection")
	}
}

func TestApp_SourceErrorKeepsPolling(t *testing.T) {
	source := &stubSource{err: &application.SourceError{Op: "fetch graph", Retryable: true, Err: errors.New("connection refused")}}
	app, _ := newTestApp(t, source)

	cmd := app.fetchGraph()
	_, next := app.Update(cmd())

	msg, isErr := app.Message()
	if !isErr || !strings.Contains(msg, "r to retry") {
		t.Errorf("message = %q (error %v)", msg, isErr)
	}
	if next == nil {
		t.Error("expected the next poll to be scheduled")
	}
	if app.payload != nil {
		t.Error("failed fetch must not replace the payload")
	}
}

func TestApp_CloseUnmounts(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})
	if err := app.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if app.reconciler.State() != reconcile.StateUnmounted {
		t.Errorf("state = %v, want unmounted", app.reconciler.State())
	}
	if !app.canvas.Destroyed() {
		t.Error("canvas not destroyed")
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// tapless is a canvas that cannot deliver taps
type tapless struct{ *canvas.Canvas }

func (tapless) OnTap(func(ports.TapEvent)) { panic("no input device") }

func TestApp_MountReleasesCanvasWhenTapsFail(t *testing.T) {
	opts := reconcile.DefaultOptions()
	r := reconcile.New(opts)
	app := NewApp(context.Background(), &stubSource{}, r, selection.NewStore(opts.Thresholds, opts.ActivityWindow), application.NewFilterState(1), Options{})
	app.newCanvas = func(created func(*canvas.Canvas)) ports.RendererFactory {
		return func() (ports.Renderer, error) {
			c := canvas.New()
			created(c)
			return tapless{c}, nil
		}
	}

	if err := app.Mount(); err == nil {
		t.Fatal("expected Mount() to fail")
	}
	if r.State() != reconcile.StateUnmounted {
		t.Errorf("state = %v, want unmounted", r.State())
	}
	if app.canvas == nil || !app.canvas.Destroyed() {
		t.Error("canvas not destroyed")
	}
}

func histogramMsgFor(buckets ...domain.Bucket) histogramMsg {
	return histogramMsg{h: &domain.Histogram{Buckets: buckets}}
}

func TestApp_RangePicker(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})

	app.Update(keyMsg("b"))
	if app.State() != ViewGraph {
		t.Fatal("picker should not open without a histogram")
	}
	if _, isErr := app.Message(); !isErr {
		t.Error("expected an error message")
	}

	app.Update(histogramMsgFor(
		domain.Bucket{TS: "2026-01-01T10:00:00Z", N: 1},
		domain.Bucket{TS: "2026-01-01T10:01:00Z", N: 5},
		domain.Bucket{TS: "2026-01-01T10:02:00Z", N: 2},
	))
	app.Update(keyMsg("b"))
	if app.State() != ViewRange {
		t.Fatalf("state = %v, want range picker", app.State())
	}

	app.Update(tea.KeyMsg{Type: tea.KeyLeft})
	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app.Update(tea.KeyMsg{Type: tea.KeyRight})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a range to be selected")
	}
	_, cmd = app.Update(cmd())
	if cmd == nil {
		t.Fatal("expected a refetch")
	}

	if app.State() != ViewGraph || !app.filters.Ranged() {
		t.Fatalf("state = %v, ranged = %v", app.State(), app.filters.Ranged())
	}
	q := app.filters.Query()
	wantStart := time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC)
	if q.StartDate == nil || !q.StartDate.Equal(wantStart) || q.EndDate == nil || !q.EndDate.Equal(wantStart.Add(2*time.Minute)) {
		t.Errorf("bounds = %v %v", q.StartDate, q.EndDate)
	}

	drain(app, cmd)
	if app.fetching {
		t.Fatal("refetch did not complete")
	}
	source := app.source.(*stubSource)
	last := source.queries[len(source.queries)-1]
	if last.EndDate == nil || !last.StartDate.Equal(wantStart) {
		t.Errorf("source query = %+v, want the picked range", last)
	}

	app.Update(keyMsg("b"))
	_, cmd = app.Update(keyMsg("x"))
	app.Update(cmd())
	if app.filters.Ranged() || app.filters.Query().StartDate != nil {
		t.Error("reset should clear the range")
	}
}

func TestApp_View(t *testing.T) {
	app, _ := newTestApp(t, &stubSource{})
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	refresh(t, app)
	app.Update(app.fetchHistogram()())

	out := app.View()
	for _, want := range []string{"servicegraph", "api", "GET /users", "db", "Select a node"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
