// Package keys defines the key maps of the session TUI.
package keys

import "github.com/charmbracelet/bubbles/key"

// bind creates a binding shown as label in the help view. Without keys the
// label is the key.
func bind(label, desc string, keys ...string) key.Binding {
	if len(keys) == 0 {
		keys = []string{label}
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// CommonKeys are available in every mode of a TUI command.
type CommonKeys struct {
	Quit       key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding
}

func NewCommonKeys() CommonKeys {
	return CommonKeys{
		Quit:       bind("q", "quit", "q", "Q", "ctrl+c"),
		Help:       bind("?", "toggle help"),
		InsertMode: bind("w/i", "write", "w", "i"),
		Escape:     bind("esc", "normal mode"),
	}
}

// TerminalKeys adds display and scrolling keys for views showing the data log.
type TerminalKeys struct {
	CommonKeys
	Clear       key.Binding
	ToggleHex   key.Binding
	ToggleASCII key.Binding
	Up          key.Binding
	Down        key.Binding
	GotoTop     key.Binding
	GotoBottom  key.Binding
}

func NewTerminalKeys() TerminalKeys {
	return TerminalKeys{
		CommonKeys:  NewCommonKeys(),
		Clear:       bind("c", "clear log"),
		ToggleHex:   bind("x", "toggle hex"),
		ToggleASCII: bind("a", "toggle ascii"),
		Up:          bind("↑/k", "scroll up", "up", "k"),
		Down:        bind("↓/j", "scroll down", "down", "j"),
		GotoTop:     bind("home", "top"),
		GotoBottom:  bind("end/G", "bottom", "end", "G"),
	}
}

func (k TerminalKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.Clear, k.Quit}
}

func (k TerminalKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.InsertMode, k.Escape, k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.Help, k.Quit},
	}
}
