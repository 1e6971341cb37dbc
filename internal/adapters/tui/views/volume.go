package views

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"servicegraph/internal/adapters/tui/styles"
)

// VolumeKeyMap defines key bindings for the minimum volume prompt
type VolumeKeyMap struct {
	Submit key.Binding
	Cancel key.Binding
}

var VolumeKeys = VolumeKeyMap{
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
}

var errInvalidVolume = errors.New("volume must be a whole number of at least 0")

// VolumeSubmittedMsg carries a validated minimum volume
type VolumeSubmittedMsg struct {
	Value int
}

// VolumeCancelledMsg closes the prompt without changes
type VolumeCancelledMsg struct{}

// VolumeModel prompts for the minimum edge volume
type VolumeModel struct {
	input textinput.Model
	err   string
	width int
}

// NewVolumeModel creates a prompt prefilled with the current value
func NewVolumeModel(current int) *VolumeModel {
	input := textinput.New()
	input.Placeholder = "0"
	input.CharLimit = 9
	if current > 0 {
		input.SetValue(strconv.Itoa(current))
	}
	input.Focus()
	return &VolumeModel{input: input}
}

// Init returns the blink command for the input
func (m *VolumeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the prompt
func (m *VolumeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, VolumeKeys.Cancel):
			return m, func() tea.Msg { return VolumeCancelledMsg{} }
		case key.Matches(msg, VolumeKeys.Submit):
			v, err := ParseVolume(m.input.Value())
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.err = ""
			return m, func() tea.Msg { return VolumeSubmittedMsg{Value: v} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ParseVolume parses a non-negative volume. Blank input clears the floor.
func ParseVolume(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, errInvalidVolume
	}
	return v, nil
}

// Err returns the last validation message
func (m *VolumeModel) Err() string {
	return m.err
}

// View renders the prompt
func (m *VolumeModel) View() string {
	var b strings.Builder
	b.WriteString(styles.InputLabel.Render("Minimum edge volume"))
	b.WriteString("\n")
	b.WriteString(styles.InputField.Render(m.input.View()))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(RenderMessage(m.err, true))
		b.WriteString("\n")
	}
	b.WriteString(RenderHelpLine(VolumeKeys.Submit, VolumeKeys.Cancel))
	return b.String()
}
