// Package styles holds the lipgloss styles shared by the TUI and the plain
// command output.
package styles

import (
	"github.com/allbin/go-uart/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
)

func bold(fg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(fg)
}

// badge is a bold label on a colored block.
func badge(bg lipgloss.TerminalColor) lipgloss.Style {
	return bold(colors.Base).Background(bg).Padding(0, 1)
}

var (
	TitleStyle = bold(colors.Mauve).Background(colors.Surface0).Padding(0, 1)

	ContentBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colors.Surface1)

	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	NormalModeStyle = badge(colors.Blue)
	InsertModeStyle = badge(colors.Green)

	ErrorStyle   = bold(colors.Red)
	InfoStyle    = bold(colors.Mauve)
	SuccessStyle = bold(colors.Green)

	// LabelStyle pads field names so values line up.
	LabelStyle = lipgloss.NewStyle().Foreground(colors.Subtext1).Width(14)
)

// StatusType is the connection state shown in the status bar.
type StatusType int

const (
	StatusConnected StatusType = iota
	StatusDisconnected
	StatusConnecting
	StatusError
)

var statusStyles = map[StatusType]lipgloss.Style{
	StatusConnected:    bold(colors.Green),
	StatusConnecting:   bold(colors.Yellow),
	StatusDisconnected: bold(colors.Red),
	StatusError:        bold(colors.Red),
}

func GetStatusStyle(status StatusType) lipgloss.Style {
	if style, ok := statusStyles[status]; ok {
		return style
	}
	return statusStyles[StatusDisconnected]
}

// LineStyle renders a modem line name lit when asserted.
func LineStyle(on bool) lipgloss.Style {
	if on {
		return bold(colors.LineOn)
	}
	return lipgloss.NewStyle().Foreground(colors.LineOff).Faint(true)
}
