package components

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/allbin/go-uart/internal/tui/colors"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const historySize = 100

type SendingMode int

const (
	SendingModeASCII SendingMode = iota
	SendingModeHex
)

func (s SendingMode) String() string {
	if s == SendingModeHex {
		return "HEX"
	}
	return "ASCII"
}

// InputKind is what the text typed into the input line is used for.
type InputKind int

const (
	InputWrite InputKind = iota
	InputSendFile
	InputCaptureFile
)

func (k InputKind) String() string {
	switch k {
	case InputSendFile:
		return "SEND FILE"
	case InputCaptureFile:
		return "CAPTURE"
	default:
		return "WRITE"
	}
}

type Input struct {
	textInput     textinput.Model
	kind          InputKind
	sendingMode   SendingMode
	history       []string
	historyIndex  int
	currentInput  string // saved while browsing history
	terminalWidth int
}

func NewInput() *Input {
	ti := textinput.New()
	ti.CharLimit = 512
	ti.Prompt = ""

	i := &Input{
		textInput:    ti,
		historyIndex: -1,
	}
	i.updatePlaceholder()
	return i
}

func (i *Input) SetWidth(width int) {
	i.terminalWidth = width
	// border(2) + padding(2) + prompt(1) + space(1)
	usable := width - 6
	if usable < 20 {
		usable = 20
	}
	i.textInput.Width = usable
}

func (i *Input) Focus() {
	i.textInput.Focus()
}

func (i *Input) Blur() {
	i.textInput.Blur()
}

func (i *Input) Value() string {
	return i.textInput.Value()
}

func (i *Input) SetValue(value string) {
	i.textInput.SetValue(value)
}

func (i *Input) Kind() InputKind {
	return i.kind
}

// SetKind switches what the input line is for. File names never go to the
// write history.
func (i *Input) SetKind(kind InputKind) {
	if kind != i.kind {
		i.textInput.SetValue("")
	}
	i.kind = kind
	i.updatePlaceholder()
}

func (i *Input) ToggleSendingMode() {
	if i.sendingMode == SendingModeASCII {
		i.sendingMode = SendingModeHex
	} else {
		i.sendingMode = SendingModeASCII
	}
	i.updatePlaceholder()
}

func (i *Input) GetSendingMode() SendingMode {
	return i.sendingMode
}

func (i *Input) updatePlaceholder() {
	switch {
	case i.kind == InputSendFile:
		i.textInput.Placeholder = "File to send, Enter to start..."
	case i.kind == InputCaptureFile:
		i.textInput.Placeholder = "File to save received data to..."
	case i.sendingMode == SendingModeHex:
		i.textInput.Placeholder = "Enter hex (e.g. 48656C6C6F or 48 65 6C 6C 6F)..."
	default:
		i.textInput.Placeholder = "Type message and press Enter to send..."
	}
}

// Payload converts the current value to the bytes to transmit. ASCII input is
// sent as typed followed by a newline.
func (i *Input) Payload() ([]byte, error) {
	value := i.textInput.Value()
	if i.sendingMode == SendingModeHex {
		return ParseHex(value)
	}
	return []byte(value + "\n"), nil
}

// ParseHex converts hex text to bytes. Pairs may be run together
// ("48656C6C6F") or separated by spaces, and may carry a 0x prefix.
func ParseHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	for n, f := range fields {
		fields[n] = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
	}
	clean := strings.Join(fields, "")
	if clean == "" {
		return nil, errors.New("empty input")
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(clean))
	}

	out := make([]byte, 0, len(clean)/2)
	for n := 0; n < len(clean); n += 2 {
		b, err := strconv.ParseUint(clean[n:n+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", clean[n:n+2])
		}
		out = append(out, byte(b))
	}
	return out, nil
}

func (i *Input) Update(msg tea.Msg) (*Input, tea.Cmd) {
	var cmd tea.Cmd
	i.textInput, cmd = i.textInput.Update(msg)
	return i, cmd
}

// Hint is the status bar text for the active input.
func (i *Input) Hint() string {
	if i.kind != InputWrite {
		return fmt.Sprintf("[%s]", i.kind)
	}
	return fmt.Sprintf("[%s] Tab to toggle", i.sendingMode)
}

func (i *Input) ViewWithMode(isInsertMode bool) string {
	symbol, color := ">", colors.Green
	switch {
	case i.kind != InputWrite:
		symbol, color = "@", colors.Mauve
	case i.sendingMode == SendingModeHex:
		symbol, color = "#", colors.Yellow
	}
	prompt := lipgloss.NewStyle().Foreground(color).Bold(true).Render(symbol)

	var content string
	if isInsertMode {
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", i.textInput.View())
	} else {
		hint := lipgloss.NewStyle().
			Foreground(colors.Overlay0).
			Render("Press 'w' to write, '?' for all keys")
		content = lipgloss.JoinHorizontal(lipgloss.Left, prompt, " ", hint)
	}

	// RoundedBorder and horizontal padding take four columns.
	width := i.terminalWidth - 4
	if width < 10 {
		width = 10
	}
	style := styles.InputStyle.
		Width(width).
		AlignHorizontal(lipgloss.Left)
	if isInsertMode {
		style = style.BorderForeground(colors.Green)
	}
	return style.Render(content)
}

// AddToHistory records a sent line, skipping blanks and repeats.
func (i *Input) AddToHistory(command string) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if len(i.history) > 0 && i.history[len(i.history)-1] == command {
		return
	}

	i.history = append(i.history, command)
	if len(i.history) > historySize {
		i.history = i.history[1:]
	}
	i.historyIndex = -1
	i.currentInput = ""
}

func (i *Input) NavigateHistoryUp() {
	if len(i.history) == 0 {
		return
	}
	if i.historyIndex == -1 {
		i.currentInput = i.textInput.Value()
		i.historyIndex = len(i.history) - 1
	} else if i.historyIndex > 0 {
		i.historyIndex--
	}
	i.textInput.SetValue(i.history[i.historyIndex])
}

func (i *Input) NavigateHistoryDown() {
	if len(i.history) == 0 || i.historyIndex == -1 {
		return
	}
	if i.historyIndex < len(i.history)-1 {
		i.historyIndex++
		i.textInput.SetValue(i.history[i.historyIndex])
		return
	}
	i.historyIndex = -1
	i.textInput.SetValue(i.currentInput)
	i.currentInput = ""
}
