package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#1864AB") // Service border blue
	Secondary = lipgloss.Color("#33FF00") // Selection green
	Muted     = lipgloss.Color("#6B7280") // Gray
	Warning   = lipgloss.Color("#F59E0B") // Amber
	Error     = lipgloss.Color("#FF0000") // Red
	White     = lipgloss.Color("#FFFFFF")
	Black     = lipgloss.Color("#000000")

	// Graph colors
	ServiceBG     = lipgloss.Color("#D0EBFF")
	Inactive      = lipgloss.Color("#CED4DA")
	EdgeHealthy   = lipgloss.Color("#BDD3D4")
	EdgeUnhealthy = lipgloss.Color("#FFBDB4")

	// Base styles
	App = lipgloss.NewStyle().
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	// Node styles
	NodeService = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	NodeTransaction = lipgloss.NewStyle()

	NodeUnhealthy = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	NodeInactive = lipgloss.NewStyle().
			Foreground(Inactive).
			Italic(true)

	NodeSelected = lipgloss.NewStyle().
			Background(Secondary).
			Foreground(Black).
			Bold(true)

	// Edge styles
	EdgeOK = lipgloss.NewStyle().
		Foreground(EdgeHealthy)

	EdgeBad = lipgloss.NewStyle().
		Foreground(EdgeUnhealthy).
		Bold(true)

	// Tree indicators
	TreeBranch    = lipgloss.NewStyle().Foreground(Muted)
	TreeContainer = "▼ "
	TreeLeaf      = "  "

	// Panels
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(0, 1)

	PanelFocused = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)

	// Status bar
	StatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(White).
			Padding(0, 1)

	FilterOn = lipgloss.NewStyle().
			Background(Primary).
			Foreground(White).
			Padding(0, 1)

	FilterOff = lipgloss.NewStyle().
			Foreground(Muted).
			Padding(0, 1)

	// Input styles
	InputLabel = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	InputField = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)

	// Help styles
	HelpKey = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	HelpDesc = lipgloss.NewStyle().
			Foreground(Muted)

	HelpSeparator = lipgloss.NewStyle().
			Foreground(Muted).
			SetString(" • ")

	// Message styles
	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Sparkline = lipgloss.NewStyle().
			Foreground(Primary)

	// Muted text style (for using Muted color as a style)
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)
)

// HealthStyle returns the text style for a node's health and activity style values
func HealthStyle(nodeType, health, activity string) lipgloss.Style {
	switch {
	case health == "unhealthy":
		return NodeUnhealthy
	case activity == "inactive":
		return NodeInactive
	case nodeType == "service":
		return NodeService
	default:
		return NodeTransaction
	}
}

// EdgeStyle returns the style for an edge's health style value
func EdgeStyle(health string) lipgloss.Style {
	if health == "unhealthy" {
		return EdgeBad
	}
	return EdgeOK
}
