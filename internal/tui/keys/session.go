package keys

import "github.com/charmbracelet/bubbles/key"

// SessionKeys maps the session menu onto single keys in normal mode, plus the
// editing keys of insert mode.
type SessionKeys struct {
	TerminalKeys
	AssertLines    key.Binding
	ClearLines     key.Binding
	GetLines       key.Binding
	WaitLines      key.Binding
	Break          key.Binding
	Pattern        key.Binding
	ToggleReceive  key.Binding
	SendFile       key.Binding
	Capture        key.Binding
	Enter          key.Binding
	ToggleSendMode key.Binding
	HistoryUp      key.Binding
	HistoryDown    key.Binding
}

func NewSessionKeys() SessionKeys {
	return SessionKeys{
		TerminalKeys:   NewTerminalKeys(),
		AssertLines:    bind("s", "set DTR+RTS"),
		ClearLines:     bind("z", "clear DTR+RTS"),
		GetLines:       bind("g", "get lines"),
		WaitLines:      bind("h", "wait line change"),
		Break:          bind("b", "send break"),
		Pattern:        bind("p", "write 0x00-0xff"),
		ToggleReceive:  bind("r", "pause/resume rx"),
		SendFile:       bind("f", "send file"),
		Capture:        bind("F", "start/stop capture"),
		Enter:          bind("enter", "send"),
		ToggleSendMode: bind("tab", "ascii/hex"),
		HistoryUp:      bind("↑", "previous", "up"),
		HistoryDown:    bind("↓", "next", "down"),
	}
}

func (k SessionKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.InsertMode, k.AssertLines, k.ClearLines, k.GetLines, k.Break, k.Quit}
}

func (k SessionKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.AssertLines, k.ClearLines, k.GetLines, k.WaitLines},
		{k.InsertMode, k.Pattern, k.Break, k.SendFile, k.Capture},
		{k.ToggleReceive, k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.Up, k.Down, k.GotoTop, k.GotoBottom},
		{k.Enter, k.ToggleSendMode, k.Escape, k.Help, k.Quit},
	}
}
