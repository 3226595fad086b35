package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the pager key bindings with built-in help text.
type KeyMap struct {
	// Global
	ForceQuit   key.Binding
	TogglePanel key.Binding

	// Search panel
	LeaveSearch key.Binding

	// Matches panel
	Quit       key.Binding
	Help       key.Binding
	NextMatch  key.Binding
	PrevMatch  key.Binding
	ScrollDown key.Binding
	ScrollUp   key.Binding
	ScrollR    key.Binding
	ScrollL    key.Binding
	Follow     key.Binding
	Clear      key.Binding
	Search     key.Binding
	Top        key.Binding
	Bottom     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		TogglePanel: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "search/matches"),
		),

		LeaveSearch: key.NewBinding(
			key.WithKeys("esc", "enter"),
			key.WithHelp("esc", "to matches"),
		),

		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev match"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("d", "pgdown"),
			key.WithHelp("d", "scroll down"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("u", "pgup"),
			key.WithHelp("u", "scroll up"),
		),
		ScrollR: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "scroll right"),
		),
		ScrollL: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "scroll left"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear query"),
		),
		Search: key.NewBinding(
			key.WithKeys("i", "/"),
			key.WithHelp("i", "edit query"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// statusBindings are the bindings summarized in the status line.
func (k KeyMap) statusBindings() []key.Binding {
	return []key.Binding{k.TogglePanel, k.NextMatch, k.PrevMatch, k.Follow, k.Clear, k.Help, k.Quit}
}

// helpGroups returns the bindings listed on the help page, by section.
func (k KeyMap) helpGroups() []helpGroup {
	return []helpGroup{
		{"GLOBAL", []key.Binding{k.TogglePanel, k.ForceQuit}},
		{"SEARCH", []key.Binding{k.LeaveSearch}},
		{"MATCHES", []key.Binding{
			k.NextMatch, k.PrevMatch, k.ScrollDown, k.ScrollUp, k.ScrollR, k.ScrollL,
			k.Top, k.Bottom, k.Follow, k.Clear, k.Search, k.Help, k.Quit,
		}},
	}
}

type helpGroup struct {
	title    string
	bindings []key.Binding
}
