package uart

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// cooked returns settings resembling a freshly opened tty.
func cooked() unix.Termios {
	var t unix.Termios
	t.Iflag = unix.ICRNL | unix.IXON | unix.BRKINT
	t.Oflag = unix.OPOST | unix.ONLCR
	t.Cflag = unix.B38400 | unix.CS8 | unix.CREAD | unix.HUPCL
	t.Lflag = unix.ICANON | unix.ECHO | unix.ECHOE | unix.ISIG | unix.IEXTEN
	t.Cc[unix.VMIN] = 1
	t.Ispeed = 38400
	t.Ospeed = 38400
	return t
}

func TestEncodeTermiosParityTable(t *testing.T) {
	tests := []struct {
		parity     Parity
		wantParenb bool
		wantParodd bool
		wantInpck  bool
	}{
		{ParityNone, false, false, false},
		{ParityOdd, true, true, true},
		{ParityEven, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.parity.String(), func(t *testing.T) {
			// Start from the opposite state so every bit has to be written.
			start := cooked()
			start.Cflag |= unix.PARENB | unix.PARODD
			start.Iflag |= unix.INPCK
			if tt.parity != ParityNone {
				start.Cflag &^= unix.PARENB | unix.PARODD
				start.Iflag &^= unix.INPCK
			}

			config := DefaultConfig()
			config.Parity = tt.parity
			got := encodeTermios(start, config)

			if (got.Cflag&unix.PARENB != 0) != tt.wantParenb {
				t.Errorf("PARENB = %v, want %v", got.Cflag&unix.PARENB != 0, tt.wantParenb)
			}
			if (got.Cflag&unix.PARODD != 0) != tt.wantParodd {
				t.Errorf("PARODD = %v, want %v", got.Cflag&unix.PARODD != 0, tt.wantParodd)
			}
			if (got.Iflag&unix.INPCK != 0) != tt.wantInpck {
				t.Errorf("INPCK = %v, want %v", got.Iflag&unix.INPCK != 0, tt.wantInpck)
			}
		})
	}
}

func TestEncodeTermiosCharSize(t *testing.T) {
	tests := []struct {
		bits int
		want uint32
	}{
		{5, unix.CS5},
		{6, unix.CS6},
		{7, unix.CS7},
		{8, unix.CS8},
	}

	for _, tt := range tests {
		config := DefaultConfig()
		config.DataBits = tt.bits
		got := encodeTermios(cooked(), config)
		if got.Cflag&unix.CSIZE != tt.want {
			t.Errorf("data bits %d: CSIZE = %#x, want %#x", tt.bits, got.Cflag&unix.CSIZE, tt.want)
		}
	}
}

func TestEncodeTermiosRawMode(t *testing.T) {
	got := encodeTermios(cooked(), DefaultConfig())

	if got.Lflag&(unix.ICANON|unix.ECHO|unix.ECHOE|unix.ISIG|unix.IEXTEN) != 0 {
		t.Errorf("Lflag = %#x, local processing still enabled", got.Lflag)
	}
	if got.Oflag&unix.OPOST != 0 {
		t.Error("OPOST still set")
	}
	if got.Iflag&(unix.ICRNL|unix.IXON|unix.BRKINT) != 0 {
		t.Errorf("Iflag = %#x, input translation still enabled", got.Iflag)
	}
	if got.Cflag&(unix.CREAD|unix.CLOCAL) != unix.CREAD|unix.CLOCAL {
		t.Error("CREAD|CLOCAL not set")
	}
	if got.Cflag&unix.HUPCL == 0 {
		t.Error("unrelated HUPCL bit was cleared")
	}
}

func TestEncodeTermiosSpeed(t *testing.T) {
	for _, rate := range []int{50, 9600, 115200, 123456, 250000, 3000000} {
		config := DefaultConfig()
		config.BaudRate = rate
		got := encodeTermios(cooked(), config)

		if got.Cflag&unix.CBAUD != unix.BOTHER {
			t.Errorf("rate %d: CBAUD = %#x, want BOTHER", rate, got.Cflag&unix.CBAUD)
		}
		if got.Ispeed != uint32(rate) || got.Ospeed != uint32(rate) {
			t.Errorf("rate %d: speeds = %d/%d", rate, got.Ispeed, got.Ospeed)
		}
	}
}

func TestEncodeTermiosTimeoutAndFlow(t *testing.T) {
	config := DefaultConfig()
	config.ReadTimeout = 2500 * time.Millisecond
	config.HardwareFlowControl = true
	config.StopBits = 2

	got := encodeTermios(cooked(), config)

	if got.Cc[unix.VMIN] != 0 {
		t.Errorf("VMIN = %d, want 0", got.Cc[unix.VMIN])
	}
	if got.Cc[unix.VTIME] != 25 {
		t.Errorf("VTIME = %d, want 25", got.Cc[unix.VTIME])
	}
	if got.Cflag&unix.CRTSCTS == 0 {
		t.Error("CRTSCTS not set")
	}
	if got.Cflag&unix.CSTOPB == 0 {
		t.Error("CSTOPB not set")
	}

	config.HardwareFlowControl = false
	config.StopBits = 1
	got = encodeTermios(got, config)
	if got.Cflag&(unix.CRTSCTS|unix.CSTOPB) != 0 {
		t.Error("CRTSCTS or CSTOPB not cleared")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, bits := range []int{5, 6, 7, 8} {
		for _, parity := range []Parity{ParityNone, ParityOdd, ParityEven} {
			for _, stop := range []int{1, 2} {
				config := LineConfig{
					BaudRate:            76800,
					DataBits:            bits,
					StopBits:            stop,
					Parity:              parity,
					HardwareFlowControl: bits%2 == 0,
					ReadTimeout:         700 * time.Millisecond,
				}
				got := decodeTermios(encodeTermios(cooked(), config))
				if got != config {
					t.Errorf("round trip of %s = %s (%+v)", config, got, got)
				}
			}
		}
	}
}

// Applying the same config twice yields identical settings.
func TestEncodeTermiosIdempotent(t *testing.T) {
	config := LineConfig{BaudRate: 57600, DataBits: 7, StopBits: 2, Parity: ParityEven, ReadTimeout: time.Second}
	once := encodeTermios(cooked(), config)
	twice := encodeTermios(once, config)
	if once != twice {
		t.Errorf("second encode changed settings:\n%+v\n%+v", once, twice)
	}
}

func TestTermiosSpeedFallsBackToTable(t *testing.T) {
	var tio unix.Termios
	tio.Cflag = unix.B19200 | unix.CS8
	if got := termiosSpeed(tio); got != 19200 {
		t.Errorf("termiosSpeed() = %d, want 19200", got)
	}

	tio.Ospeed = 19200
	if got := termiosSpeed(tio); got != 19200 {
		t.Errorf("termiosSpeed() with Ospeed = %d, want 19200", got)
	}
}
