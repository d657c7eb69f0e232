package menuview

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the bindings of the menu screen.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Toggle     key.Binding
	Back       key.Binding
	Dismiss    key.Binding
	Offline    key.Binding
	Refresh    key.Binding
	Push       key.Binding
	ToggleHelp key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns vim-style bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Toggle:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "open or toggle")),
		Back:       key.NewBinding(key.WithKeys("esc", "h"), key.WithHelp("esc", "back to menu")),
		Dismiss:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss error")),
		Offline:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "go offline/online")),
		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refetch")),
		Push:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "push writes")),
		ToggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) bindings() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Back, k.Dismiss, k.Offline, k.Refresh, k.Push, k.ToggleHelp, k.Quit}
}
