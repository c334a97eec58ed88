// Package session implements the interactive actions offered on an open port
// and a line-based menu loop driving them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/transfer"
	"github.com/charmbracelet/log"
)

// Device is the part of uart.Port a session uses.
type Device interface {
	io.ReadWriter
	SetLines(dtr, rts bool) error
	GetLines() (uart.ModemSignals, error)
	WaitForChange(ctx context.Context) (uart.ModemSignals, uart.SignalMask, error)
	SendBreak() error
}

// Session performs one action per call and reports the outcome on out.
type Session struct {
	dev     Device
	out     io.Writer
	verbose bool
	logger  *log.Logger
}

// Option configures a Session
type Option func(*Session)

// WithVerbose enables hex dumps of received data.
func WithVerbose(verbose bool) Option {
	return func(s *Session) {
		s.verbose = verbose
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func New(dev Device, out io.Writer, opts ...Option) *Session {
	s := &Session{
		dev:    dev,
		out:    out,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssertLines raises both DTR and RTS.
func (s *Session) AssertLines() error {
	return s.setLines(true, true)
}

// ClearLines drops both DTR and RTS.
func (s *Session) ClearLines() error {
	return s.setLines(false, false)
}

func (s *Session) setLines(dtr, rts bool) error {
	s.logger.Debug("setting modem lines", "dtr", dtr, "rts", rts)
	if err := s.dev.SetLines(dtr, rts); err != nil {
		return err
	}
	state := "cleared"
	if dtr {
		state = "set"
	}
	fmt.Fprintf(s.out, "DTR and RTS %s.\n", state)
	return nil
}

// ReportLines prints one line per asserted input.
func (s *Session) ReportLines() error {
	signals, err := s.dev.GetLines()
	if err != nil {
		return err
	}
	s.logger.Debug("modem status", "signals", signals.String())
	s.printActive(signals)
	return nil
}

func (s *Session) printActive(signals uart.ModemSignals) {
	active := signals.ActiveInputs()
	if len(active) == 0 {
		fmt.Fprintln(s.out, "No input lines active.")
		return
	}
	for _, name := range active {
		fmt.Fprintf(s.out, "%s Active!\n", name)
	}
}

// WaitLines blocks until DSR, CTS, DCD or RI changes, then reports which.
func (s *Session) WaitLines(ctx context.Context) error {
	fmt.Fprintln(s.out, "Waiting for a modem line change...")
	signals, changed, err := s.dev.WaitForChange(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Changed: %s\n", changed)
	s.printActive(signals)
	return nil
}

// Break transmits a break condition.
func (s *Session) Break() error {
	if err := s.dev.SendBreak(); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Break sent.")
	return nil
}

// WriteString writes text once; a short write is reported as such.
func (s *Session) WriteString(text string) error {
	return s.write([]byte(text))
}

// WritePattern writes the 256 byte values 0x00 through 0xff in order.
func (s *Session) WritePattern() error {
	pattern := make([]byte, 256)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	return s.write(pattern)
}

func (s *Session) write(data []byte) error {
	n, err := s.dev.Write(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Wrote %d of %d bytes.\n", n, len(data))
	return nil
}

// ReadOnce performs a single read. Nothing arriving within the read timeout
// is reported as 0 bytes.
func (s *Session) ReadOnce() error {
	buf := make([]byte, transfer.ChunkSize)
	n, err := s.dev.Read(buf)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Read %d bytes.\n", n)
	if s.verbose {
		Dump(s.out, buf[:n])
	}
	return nil
}

// SendFile streams the named file to the device.
func (s *Session) SendFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s.logger.Debug("sending file", "path", path)
	total, err := transfer.Send(ctx, s.dev, f, func(chunk int, total int64) {
		fmt.Fprintf(s.out, "Write total %d bytes, %d this time.\n", total, chunk)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "File has been sent, %d bytes.\n", total)
	return nil
}

// ReceiveFile saves everything read from the device into path until ctx ends.
// The file is synced and closed on every return path.
func (s *Session) ReceiveFile(ctx context.Context, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if syncErr := f.Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var dst io.Writer = f
	if s.verbose {
		dst = io.MultiWriter(f, dumpWriter{s.out})
	}

	s.logger.Debug("receiving to file", "path", path)
	total, err := transfer.Receive(ctx, dst, s.dev, func(chunk int, total int64) {
		fmt.Fprintf(s.out, "Read total %d bytes, %d this time.\n", total, chunk)
	})
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(s.out, "Stopped, %d bytes saved to %s.\n", total, path)
		return nil
	}
	return err
}

// Dump prints data as space separated 0x-prefixed hex between rules of asterisks.
func Dump(w io.Writer, data []byte) {
	var b strings.Builder
	b.WriteString("*************************\n")
	for _, c := range data {
		fmt.Fprintf(&b, " 0x%.2x", c)
	}
	b.WriteString("\n*************************\n")
	io.WriteString(w, b.String())
}

type dumpWriter struct{ w io.Writer }

func (d dumpWriter) Write(p []byte) (int, error) {
	Dump(d.w, p)
	return len(p), nil
}
