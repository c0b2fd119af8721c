package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the player TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	toggle   key.Binding
	next     key.Binding
	previous key.Binding
	seekBack key.Binding
	seekFwd  key.Binding
	volUp    key.Binding
	volDown  key.Binding
	more     key.Binding
	retry    key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		previous: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		seekBack: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "seek -10s")),
		seekFwd:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "seek +10s")),
		volUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		more:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry fetch")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.enter, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter},
		{k.toggle, k.next, k.previous},
		{k.seekBack, k.seekFwd, k.volUp, k.volDown},
		{k.more, k.retry, k.quit},
	}
}
