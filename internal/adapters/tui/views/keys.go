package views

import "github.com/charmbracelet/bubbles/key"

// GraphKeyMap defines key bindings for the graph view
type GraphKeyMap struct {
	Up              key.Binding
	Down            key.Binding
	Top             key.Binding
	Bottom          key.Binding
	Tap             key.Binding
	Clear           key.Binding
	FromService     key.Binding
	FromTransaction key.Binding
	ToService       key.Binding
	ToTransaction   key.Binding
	StatusOK        key.Binding
	StatusExpected  key.Binding
	StatusUnexpect  key.Binding
	Window          key.Binding
	Range           key.Binding
	Volume          key.Binding
	Retry           key.Binding
	Copy            key.Binding
	Open            key.Binding
	Help            key.Binding
	Quit            key.Binding
}

var GraphKeys = GraphKeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Tap: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "details"),
	),
	Clear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear"),
	),
	FromService: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "from service"),
	),
	FromTransaction: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "from transaction"),
	),
	ToService: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "to service"),
	),
	ToTransaction: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "to transaction"),
	),
	StatusOK: key.NewBinding(
		key.WithKeys("5"),
		key.WithHelp("5", "ok"),
	),
	StatusExpected: key.NewBinding(
		key.WithKeys("6"),
		key.WithHelp("6", "expected error"),
	),
	StatusUnexpect: key.NewBinding(
		key.WithKeys("7"),
		key.WithHelp("7", "unexpected error"),
	),
	Window: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "time window"),
	),
	Range: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "pick range"),
	),
	Volume: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "min volume"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy id"),
	),
	Open: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "open payload"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
