package views

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"servicegraph/internal/adapters/tui/styles"
	"servicegraph/internal/domain"
)

// RangeKeyMap defines key bindings for the time range picker
type RangeKeyMap struct {
	Left   key.Binding
	Right  key.Binding
	Mark   key.Binding
	Reset  key.Binding
	Cancel key.Binding
}

var RangeKeys = RangeKeyMap{
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "earlier"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "later"),
	),
	Mark: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "mark start/end"),
	),
	Reset: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "reset"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

// RangeSelectedMsg carries the span of the marked buckets
type RangeSelectedMsg struct {
	Start time.Time
	End   time.Time
}

// RangeResetMsg clears any time bound
type RangeResetMsg struct{}

// RangeCancelledMsg closes the picker without changes
type RangeCancelledMsg struct{}

// RangeModel lets the user mark a run of histogram buckets
type RangeModel struct {
	hist   *domain.Histogram
	cursor int
	anchor int
	err    string
}

// NewRangeModel creates a picker with the cursor on the latest bucket
func NewRangeModel(h *domain.Histogram) *RangeModel {
	cursor := 0
	if h != nil && len(h.Buckets) > 0 {
		cursor = len(h.Buckets) - 1
	}
	return &RangeModel{hist: h, cursor: cursor, anchor: -1}
}

// Init does nothing
func (m *RangeModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the picker
func (m *RangeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, RangeKeys.Cancel):
		return m, func() tea.Msg { return RangeCancelledMsg{} }
	case key.Matches(keyMsg, RangeKeys.Reset):
		return m, func() tea.Msg { return RangeResetMsg{} }
	case key.Matches(keyMsg, RangeKeys.Left):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, RangeKeys.Right):
		if m.hist != nil && m.cursor < len(m.hist.Buckets)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, RangeKeys.Mark):
		if m.anchor < 0 {
			m.anchor = m.cursor
			return m, nil
		}
		start, end, err := m.hist.BucketRange(m.anchor, m.cursor)
		if err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, func() tea.Msg { return RangeSelectedMsg{Start: start, End: end} }
	}
	return m, nil
}

// Cursor returns the bucket under the cursor
func (m *RangeModel) Cursor() int {
	return m.cursor
}

// Anchor returns the marked start bucket, or -1
func (m *RangeModel) Anchor() int {
	return m.anchor
}

// View renders the sparkline with the marked span underneath
func (m *RangeModel) View() string {
	var b strings.Builder
	b.WriteString(styles.InputLabel.Render("Time range"))
	b.WriteString("\n")

	if m.hist == nil || len(m.hist.Buckets) == 0 {
		b.WriteString(RenderMessage("no traffic recorded yet", true))
		b.WriteString("\n")
		b.WriteString(RenderHelpLine(RangeKeys.Reset, RangeKeys.Cancel))
		return b.String()
	}

	b.WriteString(styles.Sparkline.Render(Sparkline(m.hist, len(m.hist.Buckets))))
	b.WriteString("\n")
	b.WriteString(m.marker())
	b.WriteString("\n")

	from, to := m.cursor, m.cursor
	if m.anchor >= 0 {
		from, to = min(m.anchor, m.cursor), max(m.anchor, m.cursor)
	}
	b.WriteString(styles.MutedText.Render(m.hist.Buckets[from].TS + " .. " + m.hist.Buckets[to].TS))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(RenderMessage(m.err, true))
		b.WriteString("\n")
	}
	b.WriteString(RenderHelpLine(RangeKeys.Left, RangeKeys.Right, RangeKeys.Mark, RangeKeys.Reset, RangeKeys.Cancel))
	return b.String()
}

func (m *RangeModel) marker() string {
	line := []rune(strings.Repeat(" ", len(m.hist.Buckets)))
	if m.anchor >= 0 {
		for i := min(m.anchor, m.cursor); i <= max(m.anchor, m.cursor); i++ {
			line[i] = '─'
		}
	}
	line[m.cursor] = '^'
	return styles.FilterOn.Render(string(line))
}
