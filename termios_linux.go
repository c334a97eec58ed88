package uart

import (
	"time"

	"golang.org/x/sys/unix"
)

// standardRates maps the discrete CBAUD selectors back to bits per second.
// Only consulted when the driver left the explicit speed fields empty.
var standardRates = map[uint32]int{
	unix.B50:      50,
	unix.B75:      75,
	unix.B110:     110,
	unix.B134:     134,
	unix.B150:     150,
	unix.B200:     200,
	unix.B300:     300,
	unix.B600:     600,
	unix.B1200:    1200,
	unix.B1800:    1800,
	unix.B2400:    2400,
	unix.B4800:    4800,
	unix.B9600:    9600,
	unix.B19200:   19200,
	unix.B38400:   38400,
	unix.B57600:   57600,
	unix.B115200:  115200,
	unix.B230400:  230400,
	unix.B460800:  460800,
	unix.B500000:  500000,
	unix.B576000:  576000,
	unix.B921600:  921600,
	unix.B1000000: 1000000,
	unix.B1152000: 1152000,
	unix.B1500000: 1500000,
	unix.B2000000: 2000000,
	unix.B2500000: 2500000,
	unix.B3000000: 3000000,
	unix.B3500000: 3500000,
	unix.B4000000: 4000000,
}

var charSizes = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

// getTermios2 reads the extended line settings, including explicit speeds.
func getTermios2(fd int) (*unix.Termios, error) {
	return unix.IoctlGetTermios(fd, unix.TCGETS2)
}

// setTermios2 applies the extended line settings immediately (TCSANOW).
func setTermios2(fd int, t *unix.Termios) error {
	return unix.IoctlSetTermios(fd, unix.TCSETS2, t)
}

// flushQueues discards pending input and output.
func flushQueues(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
}

// encodeTermios stages a validated config on top of the current settings.
// Nothing reaches the device until the result is written with setTermios2.
func encodeTermios(cur unix.Termios, c LineConfig) unix.Termios {
	t := cur
	termiosSetRaw(&t)
	termiosSetCharSize(&t, c.DataBits)
	termiosSetParity(&t, c.Parity)
	termiosSetStopBits(&t, c.StopBits)
	termiosSetFlowControl(&t, c.HardwareFlowControl)
	termiosSetTimeout(&t, c.ReadTimeout)
	termiosSetSpeed(&t, c.BaudRate)
	return t
}

// decodeTermios is the inverse of encodeTermios for the fields a LineConfig carries.
func decodeTermios(t unix.Termios) LineConfig {
	c := LineConfig{
		BaudRate:            termiosSpeed(t),
		StopBits:            1,
		Parity:              ParityNone,
		HardwareFlowControl: t.Cflag&unix.CRTSCTS != 0,
		ReadTimeout:         time.Duration(t.Cc[unix.VTIME]) * 100 * time.Millisecond,
	}

	for bits, flag := range charSizes {
		if t.Cflag&unix.CSIZE == flag {
			c.DataBits = bits
		}
	}

	if t.Cflag&unix.CSTOPB != 0 {
		c.StopBits = 2
	}

	if t.Cflag&unix.PARENB != 0 {
		if t.Cflag&unix.PARODD != 0 {
			c.Parity = ParityOdd
		} else {
			c.Parity = ParityEven
		}
	}

	return c
}

func termiosSpeed(t unix.Termios) int {
	if t.Ospeed != 0 || t.Cflag&unix.CBAUD == unix.BOTHER {
		return int(t.Ospeed)
	}
	return standardRates[t.Cflag&unix.CBAUD]
}

func termiosSetRaw(t *unix.Termios) {
	t.Cflag |= unix.CREAD  // enable receiver
	t.Cflag |= unix.CLOCAL // modem lines do not gate open/read

	t.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK | unix.ECHONL | unix.ISIG | unix.IEXTEN
	t.Oflag &^= unix.OPOST
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL
	t.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
}

func termiosSetCharSize(t *unix.Termios, bits int) {
	t.Cflag &^= unix.CSIZE
	t.Cflag |= charSizes[bits]
}

func termiosSetParity(t *unix.Termios, parity Parity) {
	switch parity {
	case ParityNone:
		t.Cflag &^= unix.PARENB | unix.PARODD
		t.Iflag &^= unix.INPCK
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	case ParityEven:
		t.Cflag |= unix.PARENB
		t.Cflag &^= unix.PARODD
		t.Iflag |= unix.INPCK
	}
}

func termiosSetStopBits(t *unix.Termios, bits int) {
	if bits == 2 {
		t.Cflag |= unix.CSTOPB
	} else {
		t.Cflag &^= unix.CSTOPB
	}
}

func termiosSetFlowControl(t *unix.Termios, hardware bool) {
	if hardware {
		t.Cflag |= unix.CRTSCTS
	} else {
		t.Cflag &^= unix.CRTSCTS
	}
}

// termiosSetTimeout makes read return whatever arrived once the timer expires.
func termiosSetTimeout(t *unix.Termios, timeout time.Duration) {
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = uint8(timeout / (100 * time.Millisecond))
}

// termiosSetSpeed selects BOTHER so the rate is taken verbatim from the speed
// fields instead of the discrete Bnnn table.
func termiosSetSpeed(t *unix.Termios, rate int) {
	t.Cflag &^= unix.CBAUD
	t.Cflag |= unix.BOTHER
	t.Ispeed = uint32(rate)
	t.Ospeed = uint32(rate)
}
