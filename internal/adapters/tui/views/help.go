package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"servicegraph/internal/adapters/tui/styles"
)

// HelpKeyMap defines key bindings for the help view
type HelpKeyMap struct {
	Close key.Binding
}

var HelpKeys = HelpKeyMap{
	Close: key.NewBinding(
		key.WithKeys("esc", "q", "?"),
		key.WithHelp("esc/q/?", "close"),
	),
}

// CloseHelpMsg returns to the graph view
type CloseHelpMsg struct{}

// HelpModel is the model for the help view
type HelpModel struct {
	width  int
	height int
}

// NewHelpModel creates a new help view model
func NewHelpModel() *HelpModel {
	return &HelpModel{}
}

// Init initializes the help view
func (m *HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view
func (m *HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, HelpKeys.Close) {
			return m, func() tea.Msg {
				return CloseHelpMsg{}
			}
		}
	}

	return m, nil
}

// View renders the help view
func (m *HelpModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Service Graph Help"))
	b.WriteString("\n\n")

	b.WriteString(styles.InputLabel.Render("Navigation"))
	b.WriteString("\n")
	b.WriteString(helpLine("j / k / ↑ / ↓", "Move up/down"))
	b.WriteString(helpLine("g / G", "Jump to top/bottom"))
	b.WriteString(helpLine("Enter / Space", "Select node or edge"))
	b.WriteString(helpLine("Esc", "Clear selection"))
	b.WriteString("\n")

	b.WriteString(styles.InputLabel.Render("Filters"))
	b.WriteString("\n")
	b.WriteString(helpLine("1 / 2", "Source is a service / transaction"))
	b.WriteString(helpLine("3 / 4", "Target is a service / transaction"))
	b.WriteString(helpLine("5 / 6 / 7", "Edges with ok / expected / unexpected calls"))
	b.WriteString(helpLine("t", "Cycle time window, resets a picked range"))
	b.WriteString(helpLine("b", "Pick a range on the traffic sparkline"))
	b.WriteString(helpLine("v", "Set minimum volume"))
	b.WriteString("\n")

	b.WriteString(styles.InputLabel.Render("Actions"))
	b.WriteString("\n")
	b.WriteString(helpLine("r", "Retry now"))
	b.WriteString(helpLine("c", "Copy selected id"))
	b.WriteString(helpLine("o", "Open snapshot in editor"))
	b.WriteString("\n")

	b.WriteString(styles.InputLabel.Render("General"))
	b.WriteString("\n")
	b.WriteString(helpLine("?", "Toggle help"))
	b.WriteString(helpLine("q / Ctrl+C", "Quit"))
	b.WriteString("\n")

	b.WriteString(styles.InputLabel.Render("Legend"))
	b.WriteString("\n")
	b.WriteString("  " + styles.NodeService.Render("service") + "  " + styles.NodeTransaction.Render("transaction") + "\n")
	b.WriteString("  " + styles.NodeUnhealthy.Render("unhealthy") + "  " + styles.NodeInactive.Render("inactive for over an hour") + "\n")
	b.WriteString("  " + styles.EdgeOK.Render(WidthBar("3")) + " healthy edge, thicker is busier\n")
	b.WriteString("  " + styles.EdgeBad.Render(WidthBar("3")) + " unhealthy edge\n\n")

	b.WriteString(styles.HelpDesc.Render("Press "))
	b.WriteString(styles.HelpKey.Render("esc"))
	b.WriteString(styles.HelpDesc.Render(" or "))
	b.WriteString(styles.HelpKey.Render("?"))
	b.WriteString(styles.HelpDesc.Render(" to close"))

	return styles.App.Render(b.String())
}

func helpLine(key, desc string) string {
	return "  " + styles.HelpKey.Render(padRight(key, 20)) + styles.HelpDesc.Render(desc) + "\n"
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

// SetSize updates the view dimensions
func (m *HelpModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
