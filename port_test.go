package uart

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/nonexistent-uart")
	if err == nil {
		t.Fatal("Expected error when opening non-existent device")
	}
	if !errors.Is(err, ErrDeviceOpenFailed) {
		t.Errorf("Expected ErrDeviceOpenFailed, got %v", err)
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected the errno to be preserved, got %v", err)
	}
}

func TestOpenNonTerminal(t *testing.T) {
	regular := filepath.Join(t.TempDir(), "not-a-tty")
	if err := os.WriteFile(regular, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{regular, "/dev/null"} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			p, err := OpenDevice(path)
			if err == nil {
				p.Close()
				t.Fatalf("OpenDevice(%s) succeeded", path)
			}
			if !errors.Is(err, ErrNotATerminalDevice) {
				t.Errorf("OpenDevice(%s) error = %v, want ErrNotATerminalDevice", path, err)
			}
		})
	}
}

// Invalid configuration is rejected before the device path is even looked at.
func TestOpenInvalidConfig(t *testing.T) {
	_, err := Open("/dev/nonexistent-uart", WithDataBits(9))
	if !errors.Is(err, ErrUnsupportedDataBits) {
		t.Errorf("Open() error = %v, want ErrUnsupportedDataBits", err)
	}

	_, err = OpenWithConfig("/dev/nonexistent-uart", LineConfig{BaudRate: 9600, DataBits: 8, StopBits: 3})
	if !errors.Is(err, ErrUnsupportedStopBits) {
		t.Errorf("OpenWithConfig() error = %v, want ErrUnsupportedStopBits", err)
	}
}

func TestClosedPort(t *testing.T) {
	p := &port{closed: true}
	buf := make([]byte, 8)

	tests := []struct {
		name string
		call func() error
	}{
		{"Close", p.Close},
		{"Read", func() error { _, err := p.Read(buf); return err }},
		{"Write", func() error { _, err := p.Write(buf); return err }},
		{"Configure", func() error { return p.Configure(DefaultConfig()) }},
		{"SetBaudRate", func() error { return p.SetBaudRate(115200) }},
		{"Settings", func() error { _, err := p.Settings(); return err }},
		{"Flush", p.Flush},
		{"Drain", p.Drain},
		{"SendBreak", p.SendBreak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != ErrPortClosed {
				t.Errorf("%s() on closed port error = %v, want %v", tt.name, err, ErrPortClosed)
			}
		})
	}
}

// Validation runs before the closed check, so a bad config is reported as such.
func TestConfigureValidatesFirst(t *testing.T) {
	p := &port{closed: true}

	if err := p.Configure(LineConfig{BaudRate: 9600, DataBits: 9, StopBits: 1}); !errors.Is(err, ErrUnsupportedDataBits) {
		t.Errorf("Configure() error = %v, want ErrUnsupportedDataBits", err)
	}
	if err := p.SetBaudRate(0); !errors.Is(err, ErrInvalidBaudRate) {
		t.Errorf("SetBaudRate(0) error = %v, want ErrInvalidBaudRate", err)
	}
}

func TestContextExpired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
	defer cancel()
	<-ctx.Done()

	p := &port{}

	if _, err := p.ReadContext(ctx, make([]byte, 10)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadContext() error = %v, want context.DeadlineExceeded", err)
	}
	if _, err := p.WriteContext(ctx, []byte("test")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WriteContext() error = %v, want context.DeadlineExceeded", err)
	}
}
