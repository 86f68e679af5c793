package dashboard

import "github.com/charmbracelet/bubbles/key"

// keyMap defines keyboard shortcuts
type keyMap struct {
	Check    key.Binding
	Start    key.Binding
	Complete key.Binding
	Open     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp implements help.KeyMap for inline help
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Check, k.Start, k.Complete, k.Open, k.Quit}
}

// FullHelp implements help.KeyMap for the help overlay
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Check, k.Open},
		{k.Start, k.Complete},
		{k.Help, k.Quit},
	}
}

func newKeyMap(flow bool) keyMap {
	k := keyMap{
		Check: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "check now"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start update"),
		),
		Complete: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "complete install"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open store"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
	// The in-app flow only exists on Android.
	k.Start.SetEnabled(flow)
	k.Complete.SetEnabled(flow)
	return k
}
