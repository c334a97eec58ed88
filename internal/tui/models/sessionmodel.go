package models

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/session"
	"go.uber.org/atomic"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// ConnectionStatusMsg reports the outcome of opening the port.
type ConnectionStatusMsg struct {
	Connected bool
	Config    uart.LineConfig
	Error     error
}

// LinesMsg carries a fresh modem line reading for the status bar.
type LinesMsg struct {
	Lines uart.ModemSignals
	Err   error
}

var ErrCaptureActive = errors.New("capture already running")

// SessionModel is the state shared between the session view and the
// goroutines that talk to the port.
type SessionModel struct {
	port     uart.Port
	session  *session.Session
	portPath string

	connected bool
	ready     bool
	inputMode InputMode
	nextTxID  int

	receiving atomic.Bool
	waiting   atomic.Bool
	captured  atomic.Int64

	captureMu   sync.Mutex
	captureFile *os.File
	capturePath string

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewSessionModel(parent context.Context, portPath string) *SessionModel {
	ctx, cancel := context.WithCancel(parent)

	m := &SessionModel{
		portPath:  portPath,
		inputMode: InputModeNormal,
		ctx:       ctx,
		cancel:    cancel,
	}
	m.receiving.Store(true)
	return m
}

func (m *SessionModel) GetPort() uart.Port {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

// Attach stores the open port and the session running actions on it. It
// refuses once Cleanup has started; the caller then owns the port.
func (m *SessionModel) Attach(port uart.Port, s *session.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return false
	}
	m.port = port
	m.session = s
	return true
}

func (m *SessionModel) GetSession() *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *SessionModel) GetPortPath() string {
	return m.portPath
}

func (m *SessionModel) IsConnected() bool {
	return m.connected
}

func (m *SessionModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *SessionModel) IsReady() bool {
	return m.ready
}

func (m *SessionModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SessionModel) GetInputMode() InputMode {
	return m.inputMode
}

func (m *SessionModel) SetInputMode(mode InputMode) {
	m.inputMode = mode
}

func (m *SessionModel) IsInInsertMode() bool {
	return m.inputMode == InputModeInsert
}

// NextTxID numbers transmitted entries so their status can be updated later.
func (m *SessionModel) NextTxID() int {
	m.nextTxID++
	return m.nextTxID
}

func (m *SessionModel) IsReceiving() bool {
	return m.receiving.Load()
}

// ToggleReceiving pauses or resumes the background reader and returns the
// new state.
func (m *SessionModel) ToggleReceiving() bool {
	return !m.receiving.Toggle()
}

func (m *SessionModel) SetReceiving(on bool) {
	m.receiving.Store(on)
}

// BeginWait claims the single outstanding line wait; false if one is running.
func (m *SessionModel) BeginWait() bool {
	return m.waiting.CompareAndSwap(false, true)
}

func (m *SessionModel) EndWait() {
	m.waiting.Store(false)
}

// StartCapture appends everything received from now on to path.
func (m *SessionModel) StartCapture(path string) error {
	m.captureMu.Lock()
	defer m.captureMu.Unlock()
	if m.captureFile != nil {
		return ErrCaptureActive
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	m.captureFile = f
	m.capturePath = path
	m.captured.Store(0)
	return nil
}

// Capture writes data to the capture file, if one is open.
func (m *SessionModel) Capture(data []byte) error {
	m.captureMu.Lock()
	defer m.captureMu.Unlock()
	if m.captureFile == nil {
		return nil
	}
	n, err := m.captureFile.Write(data)
	m.captured.Add(int64(n))
	return err
}

// StopCapture syncs and closes the capture file and reports what it holds
// from this run.
func (m *SessionModel) StopCapture() (path string, written int64, err error) {
	m.captureMu.Lock()
	defer m.captureMu.Unlock()
	if m.captureFile == nil {
		return "", 0, nil
	}

	f := m.captureFile
	path = m.capturePath
	m.captureFile = nil
	m.capturePath = ""

	err = f.Sync()
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return path, m.captured.Load(), err
}

func (m *SessionModel) CapturePath() string {
	m.captureMu.Lock()
	defer m.captureMu.Unlock()
	return m.capturePath
}

func (m *SessionModel) GetContext() context.Context {
	return m.ctx
}

// Cleanup stops background work, closes any capture file and the port.
func (m *SessionModel) Cleanup() {
	m.cancel()
	m.StopCapture()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
}
