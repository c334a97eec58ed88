package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-uart/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

// EntryKind says what a terminal entry records.
type EntryKind int

const (
	EntryRX EntryKind = iota
	EntryTX
	EntryEvent
	EntryError
)

// TxStatus tracks a transmitted entry from queueing to completion.
type TxStatus int

const (
	TxPending TxStatus = iota
	TxWritten
	TxFailed
)

// DataReceivedMsg is one line in the session log: bytes moved in either
// direction, or a text event reported by an action.
type DataReceivedMsg struct {
	ID        int
	Timestamp time.Time
	Kind      EntryKind
	Data      []byte
	Status    TxStatus
}

// EventMsg carries one line of action output into the log.
type EventMsg struct {
	Timestamp time.Time
	Text      string
	IsError   bool
}

// Entry converts the event to a log entry.
func (e EventMsg) Entry() DataReceivedMsg {
	kind := EntryEvent
	if e.IsError {
		kind = EntryError
	}
	return DataReceivedMsg{Timestamp: e.Timestamp, Kind: kind, Data: []byte(e.Text)}
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

func (df *DataFormatter) FormatMessage(msg DataReceivedMsg) string {
	timestamp := lipgloss.NewStyle().
		Foreground(colors.Timestamp).
		Render(fmt.Sprintf("[%s]", msg.Timestamp.Format("15:04:05.000")))

	switch msg.Kind {
	case EntryEvent:
		text := lipgloss.NewStyle().Foreground(colors.Event).Render("• " + string(msg.Data))
		return fmt.Sprintf("%s %s", timestamp, text)
	case EntryError:
		text := lipgloss.NewStyle().Foreground(colors.Red).Bold(true).Render("✗ " + string(msg.Data))
		return fmt.Sprintf("%s %s", timestamp, text)
	}

	return fmt.Sprintf("%s %s: %s", timestamp, indicator(msg), df.formatPayload(msg.Data))
}

func indicator(msg DataReceivedMsg) string {
	if msg.Kind == EntryRX {
		return lipgloss.NewStyle().Foreground(colors.RX).Bold(true).Render("↙ RX")
	}

	color, text := colors.TX, "TX"
	switch msg.Status {
	case TxPending:
		color, text = colors.Yellow, "TX ○"
	case TxWritten:
		color, text = colors.Green, "TX ✓"
	case TxFailed:
		color, text = colors.Red, "TX ✗"
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render("↗ " + text)
}

func (df *DataFormatter) formatPayload(data []byte) string {
	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, fmt.Sprintf("HEX: % X", data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+Printable(data))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(data)))
	}
	return strings.Join(parts, "  ")
}

func (df *DataFormatter) FormatMessages(messages []DataReceivedMsg) []string {
	formatted := make([]string, len(messages))
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg)
	}
	return formatted
}

// Printable replaces everything outside printable ASCII with '.', so received
// bytes can never drive the terminal.
func Printable(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
