package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/session"
	"github.com/allbin/go-uart/internal/transfer"
	"github.com/allbin/go-uart/internal/tui/components"
	"github.com/allbin/go-uart/internal/tui/keys"
	"github.com/allbin/go-uart/internal/tui/models"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	writeTimeout = 5 * time.Second
	receivePoll  = 100 * time.Millisecond
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Interactive session on the configured device",
	Long: `Open the configured device and drive it interactively.

Keys (normal mode):
  s  set DTR and RTS          z  clear DTR and RTS
  g  report DSR/CTS/DCD/RI    h  wait for a modem line change
  b  send break               p  write the bytes 0x00-0xff
  w  write a line (Tab toggles ASCII/HEX, Enter sends)
  f  send a file              F  start or stop saving received data to a file
  r  pause or resume receive  q  quit

Received data is shown as it arrives. With --plain, or when stdin is not a
terminal, a line based menu is used instead: type the key, optionally followed
by its argument ("w hello", "f w firmware.bin", "f r capture.bin").

Examples:
  uart session -D /dev/ttyUSB0 -S 115200
  uart -D /dev/ttyS0 session --plain
  printf 's\ng\nq\n' | uart session`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	for _, c := range []*cobra.Command{rootCmd, sessionCmd} {
		c.Flags().Bool("plain", false, "use the line based menu instead of the full screen view")
	}
}

func runSession(cmd *cobra.Command, _ []string) error {
	plain, _ := cmd.Flags().GetBool("plain")
	verbose := viper.GetBool("verbose")

	if plain || !term.IsTerminal(int(os.Stdin.Fd())) {
		return runPlainSession(cmd, verbose)
	}
	return runSessionTUI(cmd.Context(), viper.GetString("device"), verbose)
}

func runPlainSession(cmd *cobra.Command, verbose bool) error {
	port, err := openPort()
	if err != nil {
		return err
	}
	defer closePort(port)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Opened %s at %s.\n", port.Path(), port.Config())

	s := session.New(port, out, session.WithVerbose(verbose), session.WithLogger(logger))
	return s.Run(cmd.Context(), cmd.InOrStdin())
}

// eventWriter turns text written by session actions into one log entry per
// line. Writes may come from several command goroutines.
type eventWriter struct {
	mu   sync.Mutex
	buf  []byte
	send func(tea.Msg)
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		w.buf = w.buf[i+1:]
		if line != "" {
			w.send(components.EventMsg{Timestamp: time.Now(), Text: line})
		}
	}
	return len(p), nil
}

type tickMsg time.Time

type txResultMsg struct {
	id  int
	err error
}

type actionDoneMsg struct {
	action  string
	refresh bool
	err     error
}

type waitDoneMsg struct {
	err error
}

// sessionModel represents the Bubble Tea model for the session command
type sessionModel struct {
	*models.SessionModel
	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.SessionKeys
	width     int
	height    int
}

func newSessionModel(ctx context.Context, device string, config uart.LineConfig) *sessionModel {
	return &sessionModel{
		SessionModel: models.NewSessionModel(ctx, device),
		terminal:     components.NewTerminal(0, 0),
		statusBar:    components.NewStatusBar(device, config),
		input:        components.NewInput(),
		help:         help.New(),
		keys:         keys.NewSessionKeys(),
	}
}

func runSessionTUI(ctx context.Context, device string, verbose bool) error {
	config, err := lineConfig(viper.GetViper())
	if err != nil {
		return err
	}

	m := newSessionModel(ctx, device, config)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	events := &eventWriter{send: p.Send}
	// stderr belongs to the alternate screen now; debug output goes to the log view.
	tuiLogger := log.NewWithOptions(events, log.Options{Prefix: "debug", Level: log.InfoLevel})
	if verbose {
		tuiLogger.SetLevel(log.DebugLevel)
	}

	go func() {
		port, err := uart.OpenWithConfig(device, config)
		if err != nil {
			p.Send(models.ConnectionStatusMsg{Error: err})
			return
		}

		s := session.New(port, events, session.WithVerbose(verbose), session.WithLogger(tuiLogger))
		if !m.Attach(port, s) {
			closePort(port)
			return
		}
		p.Send(models.ConnectionStatusMsg{Connected: true, Config: port.Config()})
		receive(m.SessionModel, port, p.Send)
	}()

	_, err = p.Run()
	m.Cleanup()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return m.statusBar.Err()
}

// receive streams everything read from port to the view, and to the capture
// file when one is open, until the session ends.
func receive(m *models.SessionModel, port uart.Port, send func(tea.Msg)) {
	ctx := m.GetContext()
	buf := make([]byte, transfer.ChunkSize)
	pause := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(receivePoll):
			return true
		}
	}

	for ctx.Err() == nil {
		if !m.IsReceiving() {
			if !pause() {
				return
			}
			continue
		}

		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, uart.ErrPortClosed) {
				return
			}
			m.SetReceiving(false)
			send(components.EventMsg{Timestamp: time.Now(), Text: fmt.Sprintf("Receive paused: %v", err), IsError: true})
			continue
		}
		if n == 0 {
			// A zero read timeout makes Read poll.
			if port.Config().ReadTimeout == 0 && !pause() {
				return
			}
			continue
		}

		data := append([]byte(nil), buf[:n]...)
		if err := m.Capture(data); err != nil {
			send(components.EventMsg{Timestamp: time.Now(), Text: fmt.Sprintf("Capture write failed: %v", err), IsError: true})
		}
		send(components.DataReceivedMsg{Timestamp: time.Now(), Kind: components.EntryRX, Data: data})
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *sessionModel) Init() tea.Cmd {
	return tick()
}

func (m *sessionModel) addEvent(text string) {
	m.terminal.AddMessage(components.EventMsg{Timestamp: time.Now(), Text: text}.Entry())
}

func (m *sessionModel) addError(text string) {
	m.terminal.AddMessage(components.EventMsg{Timestamp: time.Now(), Text: text, IsError: true}.Entry())
}

func (m *sessionModel) layout() {
	helpHeight := 0
	if m.help.ShowAll {
		helpHeight = lipgloss.Height(m.help.View(m.keys))
	}
	// content border(1) + input(3) + status bar(1)
	m.terminal.SetSize(m.width, m.height-5-helpHeight)
	m.input.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)
	m.help.Width = m.width
}

// action runs fn against the session off the UI goroutine.
func (m *sessionModel) action(name string, refresh bool, fn func(*session.Session) error) tea.Cmd {
	s := m.GetSession()
	if s == nil {
		m.addError("Port is not open.")
		return nil
	}
	return func() tea.Msg {
		return actionDoneMsg{action: name, refresh: refresh, err: fn(s)}
	}
}

func (m *sessionModel) refreshLines() tea.Cmd {
	port := m.GetPort()
	if port == nil {
		return nil
	}
	return func() tea.Msg {
		lines, err := port.GetLines()
		return models.LinesMsg{Lines: lines, Err: err}
	}
}

func (m *sessionModel) write(data []byte) tea.Cmd {
	port := m.GetPort()
	if port == nil {
		m.addError("Port is not open.")
		return nil
	}

	id := m.NextTxID()
	m.terminal.AddMessage(components.DataReceivedMsg{
		ID:        id,
		Timestamp: time.Now(),
		Kind:      components.EntryTX,
		Data:      data,
		Status:    components.TxPending,
	})

	ctx := m.GetContext()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		_, err := port.WriteContext(ctx, data)
		return txResultMsg{id: id, err: err}
	}
}

func (m *sessionModel) enterInsert(kind components.InputKind) {
	if !m.IsConnected() {
		m.addError("Port is not open.")
		return
	}
	m.input.SetKind(kind)
	m.SetInputMode(models.InputModeInsert)
	m.input.Focus()
}

func (m *sessionModel) leaveInsert() {
	m.SetInputMode(models.InputModeNormal)
	m.input.Blur()
	m.input.SetKind(components.InputWrite)
}

func (m *sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.SetReady(true)
		_, cmd := m.terminal.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tick()

	case models.ConnectionStatusMsg:
		m.SetConnected(msg.Connected)
		if msg.Error != nil {
			m.statusBar.SetDisconnected(msg.Error)
			m.addError(fmt.Sprintf("Open failed: %v", msg.Error))
			return m, nil
		}
		m.statusBar.SetConnected(msg.Config)
		m.addEvent(fmt.Sprintf("Opened %s at %s.", m.GetPortPath(), msg.Config))
		return m, m.refreshLines()

	case models.LinesMsg:
		if msg.Err != nil {
			m.statusBar.SetLines(nil)
		} else {
			lines := msg.Lines
			m.statusBar.SetLines(&lines)
		}

	case components.EventMsg:
		m.terminal.AddMessage(msg.Entry())

	case components.DataReceivedMsg:
		m.terminal.AddMessage(msg)

	case txResultMsg:
		status := components.TxWritten
		if msg.err != nil {
			status = components.TxFailed
			m.addError(fmt.Sprintf("Write failed: %v", msg.err))
		}
		m.terminal.SetStatus(msg.id, status)

	case actionDoneMsg:
		if msg.err != nil {
			m.addError(fmt.Sprintf("%s: %v", msg.action, msg.err))
		}
		if msg.refresh {
			return m, m.refreshLines()
		}

	case waitDoneMsg:
		m.EndWait()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.addError(fmt.Sprintf("wait: %v", msg.err))
		}
		return m, m.refreshLines()

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			return m.updateInsert(msg)
		}
		return m.updateNormal(msg)
	}

	return m, nil
}

func (m *sessionModel) updateInsert(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind := m.input.Kind()

	switch {
	case msg.String() == "ctrl+c":
		m.Cleanup()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.leaveInsert()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			return m, nil
		}

		switch kind {
		case components.InputWrite:
			data, err := m.input.Payload()
			if err != nil {
				m.addError(fmt.Sprintf("Invalid hex input: %v", err))
				return m, nil
			}
			m.input.AddToHistory(m.input.Value())
			m.input.SetValue("")
			return m, m.write(data)

		case components.InputSendFile:
			m.leaveInsert()
			ctx := m.GetContext()
			return m, m.action("send file", false, func(s *session.Session) error {
				return s.SendFile(ctx, value)
			})

		case components.InputCaptureFile:
			m.leaveInsert()
			if err := m.StartCapture(value); err != nil {
				m.addError(fmt.Sprintf("Capture: %v", err))
				return m, nil
			}
			m.addEvent(fmt.Sprintf("Saving received data to %s, F to stop.", value))
			return m, nil
		}

	case kind == components.InputWrite && key.Matches(msg, m.keys.HistoryUp):
		m.input.NavigateHistoryUp()
		return m, nil

	case kind == components.InputWrite && key.Matches(msg, m.keys.HistoryDown):
		m.input.NavigateHistoryDown()
		return m, nil

	case kind == components.InputWrite && key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *sessionModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Cleanup()
		return m, tea.Quit

	case key.Matches(msg, m.keys.InsertMode):
		m.enterInsert(components.InputWrite)

	case key.Matches(msg, m.keys.SendFile):
		m.enterInsert(components.InputSendFile)

	case key.Matches(msg, m.keys.Capture):
		if m.CapturePath() == "" {
			m.enterInsert(components.InputCaptureFile)
			break
		}
		path, n, err := m.StopCapture()
		if err != nil {
			m.addError(fmt.Sprintf("Capture: %v", err))
		}
		m.addEvent(fmt.Sprintf("Stopped, %d bytes saved to %s.", n, path))

	case key.Matches(msg, m.keys.AssertLines):
		return m, m.action("set lines", true, (*session.Session).AssertLines)

	case key.Matches(msg, m.keys.ClearLines):
		return m, m.action("clear lines", true, (*session.Session).ClearLines)

	case key.Matches(msg, m.keys.GetLines):
		return m, m.action("get lines", true, (*session.Session).ReportLines)

	case key.Matches(msg, m.keys.WaitLines):
		s := m.GetSession()
		if s == nil {
			m.addError("Port is not open.")
			break
		}
		if !m.BeginWait() {
			m.addEvent("Already waiting for a modem line change.")
			break
		}
		ctx := m.GetContext()
		return m, func() tea.Msg {
			return waitDoneMsg{err: s.WaitLines(ctx)}
		}

	case key.Matches(msg, m.keys.Break):
		return m, m.action("break", false, (*session.Session).Break)

	case key.Matches(msg, m.keys.Pattern):
		return m, m.action("write pattern", false, (*session.Session).WritePattern)

	case key.Matches(msg, m.keys.ToggleReceive):
		if m.ToggleReceiving() {
			m.addEvent("Receiving resumed.")
		} else {
			m.addEvent("Receiving paused.")
		}

	case key.Matches(msg, m.keys.Clear):
		m.terminal.Clear()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()

	case key.Matches(msg, m.keys.ToggleHex):
		m.terminal.ToggleHex()

	case key.Matches(msg, m.keys.ToggleASCII):
		m.terminal.ToggleASCII()

	case key.Matches(msg, m.keys.Up):
		m.terminal.ScrollBy(-1)

	case key.Matches(msg, m.keys.Down):
		m.terminal.ScrollBy(1)

	case key.Matches(msg, m.keys.GotoTop):
		m.terminal.GotoTop()

	case key.Matches(msg, m.keys.GotoBottom):
		m.terminal.GotoBottom()
	}

	return m, nil
}

func (m *sessionModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	insert := m.IsInInsertMode()
	view := components.StatusView{
		InputMode:   m.GetInputMode().String(),
		Receiving:   m.IsReceiving(),
		CapturePath: m.CapturePath(),
		Clock:       time.Now().Format("15:04:05"),
	}
	if insert {
		view.InputHint = m.input.Hint()
	}

	parts := []string{
		styles.ContentBorderStyle.Render(content),
		m.input.ViewWithMode(insert),
	}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, m.statusBar.View(view))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
