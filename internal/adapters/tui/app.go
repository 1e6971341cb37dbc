package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/adapters/editor"
	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/adapters/tui/views"
	"servicegraph/internal/application"
	"servicegraph/internal/application/commands"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
	"servicegraph/internal/reconcile"
	"servicegraph/internal/selection"
)

// ViewState represents the current view
type ViewState int

const (
	ViewGraph ViewState = iota
	ViewVolume
	ViewRange
	ViewHelp
)

const layoutFrame = 50 * time.Millisecond

// Options configure polling and the optional collaborators of the App
type Options struct {
	GraphInterval     time.Duration
	HistogramInterval time.Duration
	Recorder          ports.SnapshotStore
	Editor            *editor.Opener
	Clipboard         func(string) error
	Now               func() time.Time
}

// App is the main TUI application model
type App struct {
	ctx        context.Context
	source     ports.DataSource
	reconciler *reconcile.Reconciler
	canvas     *canvas.Canvas
	newCanvas  func(created func(*canvas.Canvas)) ports.RendererFactory
	selection  *selection.Store
	filters    *application.FilterState
	opts       Options

	state   ViewState
	graph   *views.GraphModel
	help    *views.HelpModel
	volume  *views.VolumeModel
	picker  *views.RangeModel
	spinner spinner.Model

	payload     *domain.Payload
	histogram   *domain.Histogram
	lastRefresh time.Time
	fetching    bool
	pending     bool
	graphGen    int
	histGen     int

	message string
	isError bool

	width  int
	height int
}

// NewApp creates a new TUI application. Mount must be called before the program starts.
func NewApp(ctx context.Context, source ports.DataSource, r *reconcile.Reconciler, sel *selection.Store, filters *application.FilterState, opts Options) *App {
	if opts.GraphInterval <= 0 {
		opts.GraphInterval = commands.DefaultGraphInterval
	}
	if opts.HistogramInterval <= 0 {
		opts.HistogramInterval = commands.DefaultHistogramInterval
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Sparkline

	return &App{
		ctx:        ctx,
		source:     source,
		reconciler: r,
		newCanvas:  canvas.Factory,
		selection:  sel,
		filters:    filters,
		opts:       opts,
		state:      ViewGraph,
		graph:      views.NewGraphModel(),
		help:       views.NewHelpModel(),
		spinner:    sp,
	}
}

// Mount attaches a fresh canvas to the reconciler and routes taps to the
// selection. The canvas is released again if taps cannot be routed.
func (a *App) Mount() error {
	if err := a.reconciler.Mount(a.newCanvas(func(c *canvas.Canvas) { a.canvas = c })); err != nil {
		return fmt.Errorf("failed to mount canvas: %w", err)
	}
	if err := a.reconciler.OnTap(a.selection.HandleTap); err != nil {
		_ = a.reconciler.Unmount()
		return err
	}
	a.graph.SetSurface(a.canvas)
	return nil
}

// Close unmounts the canvas. It is safe to call more than once.
func (a *App) Close() error {
	return a.reconciler.Unmount()
}

// Init starts both polling loops
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.fetchGraph(), a.fetchHistogram(), a.spinner.Tick)
}

type refreshedMsg struct {
	res *commands.RefreshResult
	err error
}

type histogramMsg struct {
	h   *domain.Histogram
	err error
}

type graphTickMsg struct{ gen int }

type histTickMsg struct{ gen int }

type layoutFrameMsg struct{}

type editorFinishedMsg struct{ err error }

// Update handles messages for the application
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.graph.SetSize(a.graphWidth(), a.bodyHeight())
		a.help.SetSize(msg.Width, msg.Height)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case refreshedMsg:
		return a, a.handleRefresh(msg)

	case histogramMsg:
		if msg.err != nil {
			a.setError("histogram", msg.err)
		} else {
			a.histogram = msg.h
		}
		return a, a.scheduleHistogram()

	case graphTickMsg:
		if msg.gen != a.graphGen {
			return a, nil
		}
		return a, a.fetchGraph()

	case histTickMsg:
		if msg.gen != a.histGen {
			return a, nil
		}
		return a, a.fetchHistogram()

	case layoutFrameMsg:
		a.graph.Refresh()
		return a, a.layoutFrame()

	case editorFinishedMsg:
		if msg.err != nil {
			a.setError("editor", msg.err)
		}
		return a, nil

	case views.TapMsg:
		return a, nil

	case views.CloseHelpMsg:
		a.state = ViewGraph
		return a, nil

	case views.VolumeCancelledMsg:
		a.state = ViewGraph
		a.volume = nil
		return a, nil

	case views.VolumeSubmittedMsg:
		a.state = ViewGraph
		a.volume = nil
		if _, err := a.filters.SetMinVolume(msg.Value); err != nil {
			a.setError("filter", err)
			return a, nil
		}
		return a, a.refetch()

	case views.RangeCancelledMsg:
		a.state = ViewGraph
		a.picker = nil
		return a, nil

	case views.RangeResetMsg:
		a.state = ViewGraph
		a.picker = nil
		a.filters.ResetWindow(a.opts.Now())
		return a, a.refetch()

	case views.RangeSelectedMsg:
		a.state = ViewGraph
		a.picker = nil
		if _, err := a.filters.SetRange(msg.Start, msg.End); err != nil {
			a.setError("filter", err)
			return a, nil
		}
		return a, a.refetch()

	case tea.KeyMsg:
		if a.state == ViewGraph {
			if cmd, handled := a.handleKey(msg); handled {
				return a, cmd
			}
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case ViewGraph:
		_, cmd = a.graph.Update(msg)
	case ViewVolume:
		if a.volume != nil {
			_, cmd = a.volume.Update(msg)
		}
	case ViewRange:
		if a.picker != nil {
			_, cmd = a.picker.Update(msg)
		}
	case ViewHelp:
		_, cmd = a.help.Update(msg)
	}
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	keys := views.GraphKeys
	now := a.opts.Now()

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, keys.Help):
		a.state = ViewHelp
		return nil, true

	case key.Matches(msg, keys.FromService):
		a.filters.ToggleFromType(domain.NodeTypeService)
	case key.Matches(msg, keys.FromTransaction):
		a.filters.ToggleFromType(domain.NodeTypeTransaction)
	case key.Matches(msg, keys.ToService):
		a.filters.ToggleToType(domain.NodeTypeService)
	case key.Matches(msg, keys.ToTransaction):
		a.filters.ToggleToType(domain.NodeTypeTransaction)
	case key.Matches(msg, keys.StatusOK):
		a.filters.ToggleEdgeStatus(domain.EdgeStatusOK)
	case key.Matches(msg, keys.StatusExpected):
		a.filters.ToggleEdgeStatus(domain.EdgeStatusExpectedError)
	case key.Matches(msg, keys.StatusUnexpect):
		a.filters.ToggleEdgeStatus(domain.EdgeStatusUnexpectedError)
	case key.Matches(msg, keys.Window):
		a.filters.CycleWindow(now)

	case key.Matches(msg, keys.Retry):
		a.message = "retrying..."
		a.isError = false

	case key.Matches(msg, keys.Range):
		if a.histogram == nil || len(a.histogram.Buckets) == 0 {
			a.message = "no traffic histogram yet"
			a.isError = true
			return nil, true
		}
		a.picker = views.NewRangeModel(a.histogram)
		a.state = ViewRange
		return nil, true

	case key.Matches(msg, keys.Volume):
		a.volume = views.NewVolumeModel(a.filters.Query().MinVolume)
		a.state = ViewVolume
		return a.volume.Init(), true

	case key.Matches(msg, keys.Copy):
		a.copySelection()
		return nil, true

	case key.Matches(msg, keys.Open):
		return a.openPayload(now), true

	default:
		return nil, false
	}
	return a.refetch(), true
}

// refetch fetches graph and histogram now and restarts both timers
func (a *App) refetch() tea.Cmd {
	a.graphGen++
	a.histGen++
	return tea.Batch(a.fetchGraph(), a.fetchHistogram())
}

// fetchGraph starts one refresh cycle unless one is in flight, in which
// case another runs as soon as it completes
func (a *App) fetchGraph() tea.Cmd {
	if a.fetching {
		a.pending = true
		return nil
	}
	a.fetching = true

	q := a.filters.Refresh(a.opts.Now())
	cmd := commands.NewRefreshCommand(a.source, a.reconciler, a.selection, a.opts.Recorder, q)
	cmd.Now = a.opts.Now
	ctx := a.ctx
	return func() tea.Msg {
		res, err := cmd.Execute(ctx)
		return refreshedMsg{res: res, err: err}
	}
}

// fetchHistogram loads traffic over the whole history so a picked range
// can be widened again
func (a *App) fetchHistogram() tea.Cmd {
	q := a.filters.Query().WithoutTimeBounds()
	source, ctx := a.source, a.ctx
	return func() tea.Msg {
		h, err := commands.FetchHistogram(ctx, source, q)
		return histogramMsg{h: h, err: err}
	}
}

func (a *App) handleRefresh(msg refreshedMsg) tea.Cmd {
	a.fetching = false
	if msg.res != nil {
		a.payload = msg.res.Payload
		a.lastRefresh = msg.res.FetchedAt
	}
	a.graph.Refresh()

	switch {
	case msg.err != nil:
		a.setError("refresh", msg.err)
	case msg.res != nil:
		a.message = msg.res.Message
		a.isError = false
	}

	cmds := []tea.Cmd{a.layoutFrame()}
	if a.pending {
		a.pending = false
		cmds = append(cmds, a.fetchGraph())
	} else {
		cmds = append(cmds, a.scheduleGraph())
	}
	return tea.Batch(cmds...)
}

func (a *App) scheduleGraph() tea.Cmd {
	a.graphGen++
	gen := a.graphGen
	return tea.Tick(a.opts.GraphInterval, func(time.Time) tea.Msg { return graphTickMsg{gen: gen} })
}

func (a *App) scheduleHistogram() tea.Cmd {
	a.histGen++
	gen := a.histGen
	return tea.Tick(a.opts.HistogramInterval, func(time.Time) tea.Msg { return histTickMsg{gen: gen} })
}

// layoutFrame redraws while an animated layout is settling
func (a *App) layoutFrame() tea.Cmd {
	if a.canvas == nil || !a.canvas.LayoutRunning() {
		return nil
	}
	return tea.Tick(layoutFrame, func(time.Time) tea.Msg { return layoutFrameMsg{} })
}

func (a *App) copySelection() {
	sel := a.selection.Selection()
	var id string
	switch sel.Kind {
	case domain.SelectionNode:
		id = sel.NodeID
	case domain.SelectionEdge:
		id = sel.Edge.String()
	default:
		a.message = "nothing selected"
		a.isError = true
		return
	}
	if err := a.opts.Clipboard(id); err != nil {
		a.setError("copy", err)
		return
	}
	a.message = "copied " + id
	a.isError = false
}

func (a *App) openPayload(now time.Time) tea.Cmd {
	if a.opts.Editor == nil || a.payload == nil {
		return nil
	}
	cmd, err := a.opts.Editor.InspectCommand(a.payload, now)
	if err != nil {
		return func() tea.Msg { return editorFinishedMsg{err: err} }
	}
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return editorFinishedMsg{err: err}
	})
}

func (a *App) setError(op string, err error) {
	a.isError = true
	switch {
	case errors.Is(err, reconcile.ErrInvariant):
		a.message = "graph resynced after a failed update"
	case application.IsRetryable(err):
		a.message = fmt.Sprintf("%s failed: %v (r to retry)", op, err)
	default:
		a.message = fmt.Sprintf("%s failed: %v", op, err)
	}
}

// Message returns the status line text and whether it is an error
func (a *App) Message() (string, bool) {
	return a.message, a.isError
}

// State returns the active view
func (a *App) State() ViewState {
	return a.state
}

func (a *App) graphWidth() int {
	if a.width < 80 {
		return a.width
	}
	return a.width * 3 / 5
}

func (a *App) bodyHeight() int {
	return max(3, a.height-8)
}

// View renders the current view
func (a *App) View() string {
	switch a.state {
	case ViewHelp:
		return a.help.View()
	case ViewVolume:
		if a.volume != nil {
			return styles.App.Render(a.volume.View())
		}
	case ViewRange:
		if a.picker != nil {
			return styles.App.Render(a.picker.View())
		}
	}

	header := styles.Title.Render("servicegraph") + " " + a.status()
	bar := views.RenderFilterBar(a.filters.Query(), a.filters.Window(), a.histogram, a.width)

	body := a.graph.View()
	if a.width >= 80 {
		view, ok := a.selection.Details()
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, views.RenderDetails(view, ok, a.width-a.graphWidth()))
	}

	keys := views.GraphKeys
	help := views.RenderHelpLine(keys.Tap, keys.Clear, keys.Window, keys.Range, keys.Volume, keys.Retry, keys.Help, keys.Quit)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		bar,
		body,
		views.RenderMessage(a.message, a.isError),
		help,
	)
}

func (a *App) status() string {
	state := a.reconciler.State().String()
	if a.fetching {
		state = a.spinner.View() + " " + state
	}
	s := state
	if a.payload != nil {
		s += fmt.Sprintf(" · %d nodes · %d edges", len(a.payload.Graph.Nodes), len(a.payload.Graph.Edges))
	}
	if !a.lastRefresh.IsZero() {
		s += " · " + a.lastRefresh.Format("15:04:05")
	}
	return styles.StatusBar.Render(s)
}
