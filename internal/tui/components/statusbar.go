package components

import (
	"fmt"
	"strings"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/colors"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// StatusView is what the status bar shows besides the connection state.
type StatusView struct {
	InputMode   string
	InputHint   string
	Receiving   bool
	CapturePath string
	Clock       string
}

type StatusBar struct {
	portPath string
	status   styles.StatusType
	err      error
	width    int
	config   uart.LineConfig
	lines    *uart.ModemSignals
}

func NewStatusBar(portPath string, config uart.LineConfig) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		status:   styles.StatusConnecting,
		config:   config,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetConnected(config uart.LineConfig) {
	sb.status = styles.StatusConnected
	sb.config = config
	sb.err = nil
}

func (sb *StatusBar) SetDisconnected(err error) {
	sb.status = styles.StatusDisconnected
	if err != nil {
		sb.status = styles.StatusError
	}
	sb.err = err
}

func (sb *StatusBar) Err() error {
	return sb.err
}

// SetLines records the last known modem line state; nil means unknown, as on
// devices without modem control.
func (sb *StatusBar) SetLines(lines *uart.ModemSignals) {
	sb.lines = lines
}

func (sb *StatusBar) indicator() string {
	style := styles.GetStatusStyle(sb.status)
	switch sb.status {
	case styles.StatusConnected:
		return style.Render("●")
	case styles.StatusError:
		return style.Render("✗")
	default:
		return style.Render("○")
	}
}

// LinesView renders the six modem lines, lit when asserted.
func LinesView(lines *uart.ModemSignals) string {
	if lines == nil {
		return lipgloss.NewStyle().Foreground(colors.Overlay0).Render("lines n/a")
	}
	states := []struct {
		name string
		on   bool
	}{
		{"DTR", lines.DTR}, {"RTS", lines.RTS},
		{"DSR", lines.DSR}, {"CTS", lines.CTS}, {"DCD", lines.DCD}, {"RI", lines.RI},
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = styles.LineStyle(s.on).Render(s.name)
	}
	return strings.Join(parts, " ")
}

func (sb *StatusBar) View(v StatusView) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	mode := styles.NormalModeStyle.Render(v.InputMode)
	if v.InputMode != "NORMAL" {
		mode = styles.InsertModeStyle.Render(v.InputMode)
	}

	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, sb.indicator()}
	if v.InputHint != "" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(v.InputHint))
	}
	if !v.Receiving && sb.status == styles.StatusConnected {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Yellow).
			Padding(0, 1).
			Render("RX paused"))
	}
	if v.CapturePath != "" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Capture).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("● REC %s", v.CapturePath)))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	details := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render("⚡ " + sb.config.String())
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(v.Clock)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, LinesView(sb.lines), divider, details, divider, clock)

	spacerWidth := width - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
