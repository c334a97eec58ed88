package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// MaxEntries bounds the scrollback; the oldest entries are dropped first.
const MaxEntries = 5000

// Terminal is the scrolling session log.
type Terminal struct {
	viewport  viewport.Model
	formatter *DataFormatter
	entries   []DataReceivedMsg
	lines     []string
	follow    bool
}

func NewTerminal(width, height int) *Terminal {
	return &Terminal{
		viewport:  viewport.New(width, height),
		formatter: NewDataFormatter(true, true),
		follow:    true,
	}
}

func (t *Terminal) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	t.viewport.Width = width
	t.viewport.Height = height
}

// AddMessage appends an entry and keeps the view pinned to the bottom unless
// the user scrolled away from it.
func (t *Terminal) AddMessage(msg DataReceivedMsg) {
	t.entries = append(t.entries, msg)
	t.lines = append(t.lines, t.formatter.FormatMessage(msg))
	if len(t.entries) > MaxEntries {
		drop := len(t.entries) - MaxEntries
		t.entries = t.entries[drop:]
		t.lines = t.lines[drop:]
	}
	t.render()
}

// SetStatus updates the status of the TX entry with the given ID.
func (t *Terminal) SetStatus(id int, status TxStatus) bool {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == EntryTX && t.entries[i].ID == id {
			t.entries[i].Status = status
			t.lines[i] = t.formatter.FormatMessage(t.entries[i])
			t.render()
			return true
		}
	}
	return false
}

func (t *Terminal) Entries() []DataReceivedMsg {
	return t.entries
}

func (t *Terminal) Clear() {
	t.entries = nil
	t.lines = nil
	t.follow = true
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.refresh()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
	t.refresh()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

// ScrollBy moves the view n lines, negative is up.
func (t *Terminal) ScrollBy(n int) {
	t.viewport.SetYOffset(t.viewport.YOffset + n)
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) GotoTop() {
	t.viewport.GotoTop()
	t.follow = t.viewport.AtBottom()
}

func (t *Terminal) GotoBottom() {
	t.viewport.GotoBottom()
	t.follow = true
}

func (t *Terminal) refresh() {
	t.lines = t.formatter.FormatMessages(t.entries)
	t.render()
}

func (t *Terminal) render() {
	t.viewport.SetContent(strings.Join(t.lines, "\n"))
	if t.follow {
		t.viewport.GotoBottom()
	}
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Keys are handled by the session model; only resizes reach the viewport.
	switch msg.(type) {
	case tea.WindowSizeMsg:
		return t.viewport.Update(msg)
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
