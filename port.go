package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Port represents an open serial device
type Port interface {
	io.ReadWriteCloser
	ReadContext(ctx context.Context, buf []byte) (int, error)
	WriteContext(ctx context.Context, data []byte) (int, error)

	// Line configuration
	Path() string
	Config() LineConfig
	Configure(config LineConfig) error
	SetBaudRate(rate int) error
	Settings() (LineConfig, error)
	Flush() error
	Drain() error
	SendBreak() error

	// Modem signal control and monitoring
	SetLines(dtr, rts bool) error
	SetDTR(state bool) error
	SetRTS(state bool) error
	GetLines() (ModemSignals, error)
	WaitForChange(ctx context.Context) (ModemSignals, SignalMask, error)
	WaitForSignalChange(mask SignalMask, timeout time.Duration) (ModemSignals, SignalMask, error)
	WaitForSignalChangeContext(ctx context.Context, mask SignalMask) (ModemSignals, SignalMask, error)
	WatchSignals(mask SignalMask) (*SignalWatcher, error)
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	path   string
	config LineConfig
	strict bool
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// Open opens device and applies DefaultConfig with opts on top.
func Open(device string, opts ...Option) (Port, error) {
	config, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(device, config)
}

// OpenWithConfig opens device and applies config. The device is closed again
// if the configuration cannot be applied.
func OpenWithConfig(device string, config LineConfig) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p, err := openDevice(device)
	if err != nil {
		return nil, err
	}

	if err := p.Configure(config); err != nil {
		unix.Close(p.fd)
		return nil, err
	}

	return p, nil
}

// OpenDevice opens device without touching its line settings.
//
// The open is non-blocking so it cannot hang waiting for carrier; blocking
// mode is restored right after, leaving reads governed by VMIN/VTIME.
func OpenDevice(device string) (Port, error) {
	p, err := openDevice(device)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func openDevice(device string) (*port, error) {
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %w: %s: %w", ErrDeviceOpenFailed, ErrDeviceNotFound, device, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpenFailed, device, err)
	}

	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %w", ErrModeChangeFailed, device, err)
	}

	if !term.IsTerminal(fd) {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s", ErrNotATerminalDevice, device)
	}

	return &port{fd: fd, path: device, strict: true}, nil
}

func (p *port) Path() string {
	return p.path
}

// Config returns the settings the driver reported after the last Configure
// or SetBaudRate. Fields the driver could not honor hold what it kept, so
// they can differ from the requested LineConfig.
func (p *port) Config() LineConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Configure validates config and applies all of it in a single TCSETS2, after
// discarding whatever is queued in the driver. A validation failure leaves
// the device untouched.
func (p *port) Configure(config LineConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	current, err := getTermios2(p.fd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBaudQueryFailed, err)
	}

	staged := encodeTermios(*current, config)

	if err := flushQueues(p.fd); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	}

	if err := setTermios2(p.fd, &staged); err != nil {
		return fmt.Errorf("%w: %w", ErrBaudApplyFailed, err)
	}

	applied, err := p.verifySpeed(config.BaudRate, config.StrictBaud)
	if err != nil {
		return err
	}

	p.config = decodeTermios(*applied)
	p.config.StrictBaud = config.StrictBaud
	p.strict = config.StrictBaud
	return nil
}

// SetBaudRate changes only the speed, through the explicit speed fields, so
// rates outside the standard table work when the driver supports them.
func (p *port) SetBaudRate(rate int) error {
	if err := validateBaudRate(rate); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}

	t, err := getTermios2(p.fd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBaudQueryFailed, err)
	}

	termiosSetSpeed(t, rate)

	if err := setTermios2(p.fd, t); err != nil {
		return fmt.Errorf("%w: %w", ErrBaudApplyFailed, err)
	}

	applied, err := p.verifySpeed(rate, p.strict)
	if err != nil {
		return err
	}

	p.config = decodeTermios(*applied)
	p.config.StrictBaud = p.strict
	return nil
}

// verifySpeed reads the settings back and returns them; caller holds p.mu.
func (p *port) verifySpeed(rate int, strict bool) (*unix.Termios, error) {
	got, err := getTermios2(p.fd)
	if err != nil {
		return nil, fmt.Errorf("%w: read-back: %w", ErrBaudQueryFailed, err)
	}
	if !strict {
		return got, nil
	}
	want := uint32(rate)
	if got.Ospeed != want || (got.Ispeed != 0 && got.Ispeed != want) {
		return nil, fmt.Errorf("%w: requested %d, device reports in=%d out=%d",
			ErrBaudMismatch, rate, got.Ispeed, got.Ospeed)
	}
	return got, nil
}

// Settings decodes the line settings currently held by the driver.
func (p *port) Settings() (LineConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return LineConfig{}, ErrPortClosed
	}

	t, err := getTermios2(p.fd)
	if err != nil {
		return LineConfig{}, fmt.Errorf("%w: %w", ErrBaudQueryFailed, err)
	}

	config := decodeTermios(*t)
	config.StrictBaud = p.strict
	return config, nil
}

// Close closes the serial port
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true

	if err := unix.Close(p.fd); err != nil {
		return fmt.Errorf("%w: %w", ErrCloseFailed, err)
	}
	return nil
}

// Read returns as soon as data is available or the read timeout expires.
// A timeout with nothing received yields 0, nil.
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		n, err := unix.Read(p.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrReadFailed, err)
		}
		return n, nil
	}
}

// Write performs a single write; the count may be short.
func (p *port) Write(data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		n, err := unix.Write(p.fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return n, nil
	}
}

// ReadContext reads data with context timeout support
func (p *port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type readResult struct {
		n   int
		err error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		n, err := p.Read(buf)
		resultCh <- readResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WriteContext writes data with context timeout support
func (p *port) WriteContext(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := p.Write(data)
		resultCh <- writeResult{n: n, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.n, result.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Flush discards unread input and unsent output
func (p *port) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	if err := flushQueues(p.fd); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	}
	return nil
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// SendBreak holds the line at zero for the driver default of 0.25-0.5s.
// Devices without asynchronous framing ignore it.
func (p *port) SendBreak() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	if err := unix.IoctlSetInt(p.fd, unix.TCSBRK, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrBreakFailed, err)
	}
	return nil
}
