package review

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the review shortcuts.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Verify  key.Binding
	Correct key.Binding
	Skip    key.Binding
	Scope   key.Binding
	Submit  key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Verify: key.NewBinding(
			key.WithKeys("v", "y"),
			key.WithHelp("v/y", "verify"),
		),
		Correct: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "correct"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s", " "),
			key.WithHelp("s/Space", "skip"),
		),
		Scope: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "cycle scope"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "save"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
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
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Verify, k.Correct, k.Skip, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Skip},
		{k.Verify, k.Correct},
		{k.Scope, k.Submit, k.Cancel},
		{k.Help, k.Quit},
	}
}
