package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Back    key.Binding
	Flip    key.Binding
	Next    key.Binding
	Choose  key.Binding
	Refresh key.Binding
	Retry   key.Binding
	Confirm key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Flip:    key.NewBinding(key.WithKeys("f", " ", "space"), key.WithHelp("f/space", "flip")),
		Next:    key.NewBinding(key.WithKeys("n", "enter", "right", "l"), key.WithHelp("n/enter", "next")),
		Choose:  key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6"), key.WithHelp("1-6", "answer")),
		Refresh: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh vocabulary")),
		Retry:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "retry download")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}
