package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"servicegraph/internal/adapters/canvas"
	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/domain"
	"servicegraph/internal/ports"
)

// Surface is what the graph view draws from and taps into
type Surface interface {
	Rows() []canvas.Row
	EdgeRows() []canvas.EdgeRow
	Tap(h ports.Handle)
}

// Entry is one selectable line: a node or an edge
type Entry struct {
	Node *canvas.Row
	Edge *canvas.EdgeRow
}

// Handle returns the renderer handle of the entry
func (e Entry) Handle() ports.Handle {
	if e.Node != nil {
		return e.Node.Handle
	}
	return e.Edge.Handle
}

// ID returns the node id or edge key of the entry
func (e Entry) ID() string {
	if e.Node != nil {
		return e.Node.Node.ID
	}
	return e.Edge.Edge.Key.String()
}

// GraphModel lists the rendered graph as a navigable tree of services and
// transactions followed by the edges between them
type GraphModel struct {
	surface Surface
	entries []Entry
	nodes   int
	cursor  int
	offset  int
	width   int
	height  int
}

// NewGraphModel creates a new graph view
func NewGraphModel() *GraphModel {
	return &GraphModel{}
}

// SetSurface attaches the renderer to draw from
func (m *GraphModel) SetSurface(s Surface) {
	m.surface = s
	m.Refresh()
}

// SetSize updates the view dimensions
func (m *GraphModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.scroll()
}

// Refresh re-reads the surface, keeping the cursor on the same element
func (m *GraphModel) Refresh() {
	var current ports.Handle
	if e, ok := m.Selected(); ok {
		current = e.Handle()
	}

	m.entries = m.entries[:0]
	m.nodes = 0
	if m.surface == nil {
		return
	}
	for _, r := range m.surface.Rows() {
		m.entries = append(m.entries, Entry{Node: &r})
		m.nodes++
	}
	for _, r := range m.surface.EdgeRows() {
		m.entries = append(m.entries, Entry{Edge: &r})
	}

	if current != ports.NoHandle {
		for i, e := range m.entries {
			if e.Handle() == current {
				m.cursor = i
				break
			}
		}
	}
	m.cursor = max(0, min(m.cursor, len(m.entries)-1))
	m.scroll()
}

// Entries returns the current lines
func (m *GraphModel) Entries() []Entry {
	return m.entries
}

// Cursor returns the cursor position
func (m *GraphModel) Cursor() int {
	return m.cursor
}

// Selected returns the entry under the cursor
func (m *GraphModel) Selected() (Entry, bool) {
	if m.cursor >= 0 && m.cursor < len(m.entries) {
		return m.entries[m.cursor], true
	}
	return Entry{}, false
}

// TapMsg reports that an element was tapped
type TapMsg struct{}

// Init initializes the graph view
func (m *GraphModel) Init() tea.Cmd {
	return nil
}

// Update handles navigation and tapping
func (m *GraphModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, GraphKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, GraphKeys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case key.Matches(km, GraphKeys.Top):
		m.cursor = 0
	case key.Matches(km, GraphKeys.Bottom):
		m.cursor = max(0, len(m.entries)-1)
	case key.Matches(km, GraphKeys.Tap):
		if e, ok := m.Selected(); ok && m.surface != nil {
			m.surface.Tap(e.Handle())
			return m, func() tea.Msg { return TapMsg{} }
		}
	case key.Matches(km, GraphKeys.Clear):
		if m.surface != nil {
			m.surface.Tap(ports.NoHandle)
			return m, func() tea.Msg { return TapMsg{} }
		}
	}
	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window
func (m *GraphModel) scroll() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	m.offset = max(0, min(m.offset, len(m.entries)-visible))
}

func (m *GraphModel) visibleRows() int {
	if m.height <= 0 {
		return max(1, len(m.entries))
	}
	return max(1, m.height)
}

// View renders the visible part of the graph
func (m *GraphModel) View() string {
	if len(m.entries) == 0 {
		return styles.MutedText.Render("No nodes.")
	}

	var b strings.Builder
	end := min(m.offset+m.visibleRows(), len(m.entries))
	for i := m.offset; i < end; i++ {
		if i == m.nodes && i > 0 {
			b.WriteString(styles.TreeBranch.Render(strings.Repeat("─", max(8, m.width/2))))
			b.WriteString("\n")
		}
		b.WriteString(m.renderEntry(m.entries[i], i == m.cursor))
		b.WriteString("\n")
	}
	if len(m.entries) > end || m.offset > 0 {
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("%d-%d of %d", m.offset+1, end, len(m.entries))))
	}
	return b.String()
}

func (m *GraphModel) renderEntry(e Entry, selected bool) string {
	if e.Node != nil {
		return renderNode(*e.Node, selected, m.width)
	}
	return renderEdge(*e.Edge, selected, m.width)
}

func renderNode(r canvas.Row, selected bool, width int) string {
	indent := strings.Repeat("  ", r.Depth)
	prefix := styles.TreeLeaf
	if r.Container {
		prefix = styles.TreeContainer
	}

	health := r.Style[domain.StyleHealth]
	activity := r.Style[domain.StyleActivity]
	text := r.Node.Name
	if health == string(domain.Unhealthy) {
		text += " ✗"
	}
	if width > 0 {
		text = Truncate(text, width-len(indent)-2)
	}

	style := styles.HealthStyle(string(r.Node.Type), health, activity)
	if selected {
		style = styles.NodeSelected
	}
	return indent + styles.TreeBranch.Render(prefix) + style.Render(text)
}

func renderEdge(r canvas.EdgeRow, selected bool, width int) string {
	bar := WidthBar(r.Style[domain.StyleWidth])
	text := fmt.Sprintf("%s → %s  %d", r.Source.Name, r.Target.Name, r.Edge.Volume)
	if width > 0 {
		text = Truncate(text, width-len([]rune(bar))-1)
	}

	style := styles.EdgeStyle(r.Style[domain.StyleHealth])
	if selected {
		return styles.NodeSelected.Render(text) + " " + style.Render(bar)
	}
	return text + " " + style.Render(bar)
}
