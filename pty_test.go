//go:build linux

package uart

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// newPty opens a pseudo-terminal pair through /dev/ptmx and returns the
// master fd and the slave path. Bytes written to the master arrive at the
// slave and the reverse.
func newPty(t *testing.T) (int, string) {
	t.Helper()

	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("/dev/ptmx unavailable: %v", err)
	}
	t.Cleanup(func() { unix.Close(master) })

	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		t.Fatalf("unlocking pty: %v", err)
	}
	n, err := unix.IoctlGetUint32(master, unix.TIOCGPTN)
	if err != nil {
		t.Fatalf("reading pty number: %v", err)
	}
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

// readMaster collects want bytes from the master side.
func readMaster(t *testing.T, master, want int, deadline time.Duration) []byte {
	t.Helper()

	var got []byte
	buf := make([]byte, 64)
	stop := time.Now().Add(deadline)
	for len(got) < want && time.Now().Before(stop) {
		fds := []unix.PollFd{{Fd: int32(master), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, 100); err != nil && !errors.Is(err, unix.EINTR) {
			t.Fatalf("poll: %v", err)
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		n, err := unix.Read(master, buf)
		if err != nil {
			t.Fatalf("reading master: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	return got
}

// startSocat runs socat until the test ends. socat reports readiness on
// stderr when started with -D.
func startSocat(t *testing.T, args ...string) {
	t.Helper()

	if _, err := exec.LookPath("socat"); err != nil {
		t.Skip("socat not found in path")
	}

	cmd := exec.Command("socat", append([]string{"-D"}, args...)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cmd.Process.Signal(os.Interrupt)
		cmd.Wait()
	})

	buf := make([]byte, 1024)
	if _, err := stderr.Read(buf); err != nil {
		t.Fatal(err)
	}
}

func openPty(t *testing.T, path string, opts ...Option) Port {
	t.Helper()

	p, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func readFull(t *testing.T, p Port, want int, deadline time.Duration) []byte {
	t.Helper()

	var got []byte
	buf := make([]byte, 64)
	stop := time.Now().Add(deadline)
	for len(got) < want && time.Now().Before(stop) {
		n, err := p.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}
	return got
}

func TestPtyLoopback(t *testing.T) {
	master, path := newPty(t)
	p := openPty(t, path, WithBaudRate(115200))

	t.Run("master to port", func(t *testing.T) {
		msg := []byte("hello")
		if _, err := unix.Write(master, msg); err != nil {
			t.Fatalf("writing master: %v", err)
		}
		if got := readFull(t, p, len(msg), 3*time.Second); !bytes.Equal(got, msg) {
			t.Errorf("received %q, want %q", got, msg)
		}
	})

	t.Run("port to master", func(t *testing.T) {
		msg := []byte{0x02, 'A', 'T', 0x00, 0xff, 0x03}
		n, err := p.Write(msg)
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != len(msg) {
			t.Fatalf("Write() = %d, want %d", n, len(msg))
		}
		if got := readMaster(t, master, len(msg), 3*time.Second); !bytes.Equal(got, msg) {
			t.Errorf("master received %q, want %q", got, msg)
		}
	})
}

// Two ports linked by socat instead of a single master/slave pair.
func TestSocatLinkedPorts(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "port1")
	pathB := filepath.Join(dir, "port2")
	startSocat(t,
		fmt.Sprintf("pty,raw,echo=0,link=%s", pathA),
		fmt.Sprintf("pty,raw,echo=0,link=%s", pathB),
	)

	a := openPty(t, pathA, WithBaudRate(115200))
	b := openPty(t, pathB, WithBaudRate(115200))

	msg := []byte("hello\n")
	if _, err := a.Write(msg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := readFull(t, b, len(msg), 3*time.Second); !bytes.Equal(got, msg) {
		t.Errorf("received %q, want %q", got, msg)
	}
}

func TestPtyCustomBaudRate(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path, WithBaudRate(123456))

	settings, err := p.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings.BaudRate != 123456 {
		t.Errorf("BaudRate = %d, want 123456", settings.BaudRate)
	}

	if err := p.SetBaudRate(250000); err != nil {
		t.Fatalf("SetBaudRate(250000) error = %v", err)
	}
	settings, err = p.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings.BaudRate != 250000 {
		t.Errorf("BaudRate = %d, want 250000", settings.BaudRate)
	}
	if p.Config().BaudRate != 250000 {
		t.Errorf("Config().BaudRate = %d, want 250000", p.Config().BaudRate)
	}
}

// Config reports what the driver kept, which for framing a pty may ignore
// can differ from the request.
func TestPtyConfigMatchesDriver(t *testing.T) {
	_, path := newPty(t)

	tests := []struct {
		name string
		opts []Option
	}{
		{"5O2", []Option{WithDataBits(5), WithParity(ParityOdd), WithStopBits(2)}},
		{"7E1 rtscts", []Option{WithDataBits(7), WithParity(ParityEven), WithHardwareFlowControl(true)}},
		{"8N1 custom rate", []Option{WithBaudRate(123456), WithReadTimeout(250 * time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := openPty(t, path, tt.opts...)

			held, err := p.Settings()
			if err != nil {
				t.Fatalf("Settings() error = %v", err)
			}
			if got := p.Config(); got != held {
				t.Errorf("Config() = %+v, driver holds %+v", got, held)
			}
		})
	}
}

func TestPtyConfigureIdempotent(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path)

	config, err := NewConfig(WithBaudRate(57600), WithReadTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Configure(config); err != nil {
		t.Fatalf("first Configure() error = %v", err)
	}
	first, err := p.Settings()
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Configure(config); err != nil {
		t.Fatalf("second Configure() error = %v", err)
	}
	second, err := p.Settings()
	if err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("settings changed on re-apply: %+v -> %+v", first, second)
	}
	if second.ReadTimeout != 500*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 500ms", second.ReadTimeout)
	}
}

// A rejected config must leave the previous settings in place.
func TestPtyRejectedConfigKeepsSettings(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path, WithBaudRate(38400))

	before, err := p.Settings()
	if err != nil {
		t.Fatal(err)
	}

	bad := p.Config()
	bad.BaudRate = 115200
	bad.DataBits = 9
	if err := p.Configure(bad); !errors.Is(err, ErrUnsupportedDataBits) {
		t.Fatalf("Configure() error = %v, want ErrUnsupportedDataBits", err)
	}

	after, err := p.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Errorf("settings changed after rejected config: %+v -> %+v", before, after)
	}
}

func TestPtyReadTimeout(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path, WithReadTimeout(200*time.Millisecond))

	start := time.Now()
	n, err := p.Read(make([]byte, 16))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Read() = %d bytes, want 0", n)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Read() took %v with a 200ms timeout", elapsed)
	}
}

func TestPtyBreakAndDrain(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path)

	if err := p.SendBreak(); err != nil {
		t.Errorf("SendBreak() error = %v", err)
	}
	if err := p.Drain(); err != nil {
		t.Errorf("Drain() error = %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
}

// Pseudo-terminals have no modem lines, so the ioctls fail with the right kinds.
func TestPtyModemLinesUnsupported(t *testing.T) {
	_, path := newPty(t)
	p := openPty(t, path)

	if _, err := p.GetLines(); !errors.Is(err, ErrModemStatusReadFailed) {
		t.Errorf("GetLines() error = %v, want ErrModemStatusReadFailed", err)
	}
	if err := p.SetLines(true, true); !errors.Is(err, ErrModemControlFailed) {
		t.Errorf("SetLines() error = %v, want ErrModemControlFailed", err)
	}
	if _, _, err := p.WaitForSignalChange(SignalAll, time.Second); !errors.Is(err, ErrModemStatusReadFailed) {
		t.Errorf("WaitForSignalChange() error = %v, want ErrModemStatusReadFailed", err)
	}
}

func TestPtyCloseTwice(t *testing.T) {
	_, path := newPty(t)

	p, err := OpenDevice(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Path() != path {
		t.Errorf("Path() = %s, want %s", p.Path(), path)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != ErrPortClosed {
		t.Errorf("second Close() error = %v, want ErrPortClosed", err)
	}
	if _, err := p.Write([]byte("x")); err != ErrPortClosed {
		t.Errorf("Write() after Close error = %v, want ErrPortClosed", err)
	}
}
