package app

import "github.com/charmbracelet/bubbles/key"

// keyMap lists every binding handled in handleKey.
type keyMap struct {
	Play        key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	NextTheme   key.Binding
	Mute        key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Focus       key.Binding
	FocusBack   key.Binding
	Up          key.Binding
	Down        key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Seek        key.Binding
	Follow      key.Binding
	AddNote     key.Binding
	DeleteNote  key.Binding
	Copy        key.Binding
	Retry       key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		SeekBack:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "back")),
		SeekForward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "fwd")),
		NextTheme:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next theme")),
		Mute:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		VolumeUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "vol up")),
		VolumeDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "vol down")),
		Focus:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		FocusBack:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "focus back")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:      key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Seek:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "jump")),
		Follow:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		AddNote:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "note")),
		DeleteNote:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete note")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy")),
		Retry:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.SeekBack, k.SeekForward, k.NextTheme, k.Focus, k.Seek, k.AddNote, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.SeekBack, k.SeekForward, k.NextTheme, k.Mute, k.VolumeUp, k.VolumeDown},
		{k.Focus, k.FocusBack, k.Up, k.Down, k.PageUp, k.PageDown, k.Seek, k.Follow},
		{k.AddNote, k.DeleteNote, k.Copy, k.Retry, k.Help, k.Quit},
	}
}
