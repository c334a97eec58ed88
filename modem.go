package uart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ModemSignals represents modem control signal states
type ModemSignals struct {
	// Outputs, driven by this side
	DTR bool
	RTS bool

	// Inputs, driven by the remote end
	DSR bool
	CTS bool
	DCD bool // Data Carrier Detect
	RI  bool // Ring Indicator
}

func (s ModemSignals) String() string {
	return fmt.Sprintf("DTR=%d RTS=%d DSR=%d CTS=%d DCD=%d RI=%d",
		b2i(s.DTR), b2i(s.RTS), b2i(s.DSR), b2i(s.CTS), b2i(s.DCD), b2i(s.RI))
}

// ActiveInputs lists the asserted input lines in DSR, CTS, DCD, RI order.
func (s ModemSignals) ActiveInputs() []string {
	var active []string
	if s.DSR {
		active = append(active, "DSR")
	}
	if s.CTS {
		active = append(active, "CTS")
	}
	if s.DCD {
		active = append(active, "DCD")
	}
	if s.RI {
		active = append(active, "RI")
	}
	return active
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SignalMask identifies which input signals to monitor
type SignalMask int

const (
	SignalCTS SignalMask = 1 << iota
	SignalDSR
	SignalRI
	SignalDCD

	SignalAll = SignalCTS | SignalDSR | SignalRI | SignalDCD
)

func (m SignalMask) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	for _, s := range []struct {
		bit  SignalMask
		name string
	}{
		{SignalCTS, "CTS"},
		{SignalDSR, "DSR"},
		{SignalRI, "RI"},
		{SignalDCD, "DCD"},
	} {
		if m&s.bit != 0 {
			names = append(names, s.name)
		}
	}
	return strings.Join(names, "|")
}

// ParseSignalMask turns a comma separated list such as "cts,dsr" into a mask.
// "all" selects every input line.
func ParseSignalMask(s string) (SignalMask, error) {
	var mask SignalMask
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "cts":
			mask |= SignalCTS
		case "dsr":
			mask |= SignalDSR
		case "ri", "rng":
			mask |= SignalRI
		case "dcd", "cd", "car":
			mask |= SignalDCD
		case "all":
			mask |= SignalAll
		case "":
		default:
			return 0, fmt.Errorf("%w: unknown signal %q", ErrInvalidSignalMask, name)
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("%w: no signals selected", ErrInvalidSignalMask)
	}
	return mask, nil
}

// detectSignalChanges compares old and new signal states to determine what changed
func detectSignalChanges(oldStatus, newStatus int) SignalMask {
	var changed SignalMask
	if (oldStatus&unix.TIOCM_CTS != 0) != (newStatus&unix.TIOCM_CTS != 0) {
		changed |= SignalCTS
	}
	if (oldStatus&unix.TIOCM_DSR != 0) != (newStatus&unix.TIOCM_DSR != 0) {
		changed |= SignalDSR
	}
	if (oldStatus&unix.TIOCM_RI != 0) != (newStatus&unix.TIOCM_RI != 0) {
		changed |= SignalRI
	}
	if (oldStatus&unix.TIOCM_CAR != 0) != (newStatus&unix.TIOCM_CAR != 0) {
		changed |= SignalDCD
	}
	return changed
}

func signalsFromStatus(status int) ModemSignals {
	return ModemSignals{
		DTR: status&unix.TIOCM_DTR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		CTS: status&unix.TIOCM_CTS != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RI:  status&unix.TIOCM_RI != 0,
	}
}

// withOutputLines replaces the DTR and RTS bits of status, keeping the rest.
func withOutputLines(status int, dtr, rts bool) int {
	status &^= unix.TIOCM_DTR | unix.TIOCM_RTS
	if dtr {
		status |= unix.TIOCM_DTR
	}
	if rts {
		status |= unix.TIOCM_RTS
	}
	return status
}

// lineCounts are the driver's per-line transition counters.
type lineCounts struct {
	cts, dsr, rng, dcd int32
}

func (c lineCounts) changedSince(prev lineCounts) SignalMask {
	var changed SignalMask
	if c.cts != prev.cts {
		changed |= SignalCTS
	}
	if c.dsr != prev.dsr {
		changed |= SignalDSR
	}
	if c.rng != prev.rng {
		changed |= SignalRI
	}
	if c.dcd != prev.dcd {
		changed |= SignalDCD
	}
	return changed
}

// serialICounter is struct serial_icounter_struct, filled by TIOCGICOUNT.
type serialICounter struct {
	CTS, DSR, RNG, DCD          int32
	RX, TX                      int32
	Frame, Overrun, Parity, Brk int32
	BufOverrun                  int32
	Reserved                    [9]int32
}

// lineSource samples the modem lines. counts fails on drivers that keep no
// transition counters.
type lineSource interface {
	status() (int, error)
	counts() (lineCounts, error)
}

// portLines samples through the port, so nothing touches the fd number once
// the port is closed.
type portLines struct{ p *port }

func (l portLines) status() (int, error) {
	l.p.mu.RLock()
	defer l.p.mu.RUnlock()

	if l.p.closed {
		return 0, ErrPortClosed
	}
	status, err := unix.IoctlGetInt(l.p.fd, unix.TIOCMGET)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrModemStatusReadFailed, err)
	}
	return status, nil
}

func (l portLines) counts() (lineCounts, error) {
	l.p.mu.RLock()
	defer l.p.mu.RUnlock()

	if l.p.closed {
		return lineCounts{}, ErrPortClosed
	}
	var ic serialICounter
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(l.p.fd), unix.TIOCGICOUNT, uintptr(unsafe.Pointer(&ic)))
	if errno != 0 {
		return lineCounts{}, fmt.Errorf("%w: %w", ErrModemWaitFailed, errno)
	}
	return lineCounts{cts: ic.CTS, dsr: ic.DSR, rng: ic.RNG, dcd: ic.DCD}, nil
}

// linePollInterval is how often a SignalWatcher samples the lines.
var linePollInterval = 10 * time.Millisecond

// SignalWatcher reports modem line changes relative to a snapshot taken when
// it was created. Every Wait continues from where the previous one returned,
// so toggles between calls are reported by the next one. A SignalWatcher is
// not safe for concurrent use.
type SignalWatcher struct {
	lines   lineSource
	mask    SignalMask
	status  int
	counted bool
	last    lineCounts
}

func newSignalWatcher(lines lineSource, mask SignalMask) (*SignalWatcher, error) {
	if mask == 0 || mask&^SignalAll != 0 {
		return nil, ErrInvalidSignalMask
	}

	status, err := lines.status()
	if err != nil {
		return nil, err
	}

	w := &SignalWatcher{lines: lines, mask: mask, status: status}
	if c, err := lines.counts(); err == nil {
		w.counted, w.last = true, c
	}
	return w, nil
}

// Wait blocks until a watched line toggles or ctx ends. Where the driver
// keeps transition counters, pulses shorter than the poll interval are
// seen too; elsewhere lines are compared by level.
func (w *SignalWatcher) Wait(ctx context.Context) (ModemSignals, SignalMask, error) {
	ticker := time.NewTicker(linePollInterval)
	defer ticker.Stop()

	for {
		signals, changed, err := w.poll()
		if err != nil {
			return ModemSignals{}, 0, err
		}
		if changed != 0 {
			return signals, changed, nil
		}

		select {
		case <-ctx.Done():
			return ModemSignals{}, 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *SignalWatcher) poll() (ModemSignals, SignalMask, error) {
	status, err := w.lines.status()
	if err != nil {
		return ModemSignals{}, 0, err
	}

	changed := detectSignalChanges(w.status, status)
	if w.counted {
		c, err := w.lines.counts()
		if err != nil {
			return ModemSignals{}, 0, err
		}
		changed |= c.changedSince(w.last)
		w.last = c
	}
	w.status = status
	return signalsFromStatus(status), changed & w.mask, nil
}

// SetLines drives DTR and RTS together with one TIOCMSET, leaving the other
// control bits as the driver reports them.
func (p *port) SetLines(dtr, rts bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	status, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrModemControlFailed, err)
	}

	if err := unix.IoctlSetPointerInt(p.fd, unix.TIOCMSET, withOutputLines(status, dtr, rts)); err != nil {
		return fmt.Errorf("%w: %w", ErrModemControlFailed, err)
	}
	return nil
}

// SetDTR sets the DTR (Data Terminal Ready) signal state
func (p *port) SetDTR(state bool) error {
	return p.setLine(unix.TIOCM_DTR, state)
}

// SetRTS sets the RTS (Request To Send) signal state
func (p *port) SetRTS(state bool) error {
	return p.setLine(unix.TIOCM_RTS, state)
}

func (p *port) setLine(bit int, state bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}

	req := uint(unix.TIOCMBIC)
	if state {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(p.fd, req, bit); err != nil {
		return fmt.Errorf("%w: %w", ErrModemControlFailed, err)
	}
	return nil
}

// GetLines returns the current state of all modem control signals
func (p *port) GetLines() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}

	status, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		return ModemSignals{}, fmt.Errorf("%w: %w", ErrModemStatusReadFailed, err)
	}
	return signalsFromStatus(status), nil
}

// WaitForChange blocks until any of DSR, CTS, DCD or RI toggles.
func (p *port) WaitForChange(ctx context.Context) (ModemSignals, SignalMask, error) {
	return p.WaitForSignalChangeContext(ctx, SignalAll)
}

// WaitForSignalChange blocks until any monitored signal changes state
// or timeout elapses (ErrSignalTimeout).
func (p *port) WaitForSignalChange(mask SignalMask, timeout time.Duration) (ModemSignals, SignalMask, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	signals, changed, err := p.WaitForSignalChangeContext(ctx, mask)
	if errors.Is(err, context.DeadlineExceeded) {
		return ModemSignals{}, 0, ErrSignalTimeout
	}
	return signals, changed, err
}

// WaitForSignalChangeContext is WaitForSignalChange bounded by ctx instead of a timeout.
func (p *port) WaitForSignalChangeContext(ctx context.Context, mask SignalMask) (ModemSignals, SignalMask, error) {
	w, err := p.WatchSignals(mask)
	if err != nil {
		return ModemSignals{}, 0, err
	}
	return w.Wait(ctx)
}

// WatchSignals snapshots the lines in mask. Use it instead of repeated
// WaitForSignalChange calls when no toggle between waits may be lost.
func (p *port) WatchSignals(mask SignalMask) (*SignalWatcher, error) {
	return newSignalWatcher(portLines{p}, mask)
}
