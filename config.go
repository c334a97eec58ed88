package uart

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// Letter returns the single-letter form used in "8N1" notation.
func (p Parity) Letter() string {
	switch p {
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityNone:
		return "N"
	default:
		return "?"
	}
}

// ParseParity accepts none/odd/even and their one-letter forms, case-insensitive.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n", "":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	default:
		return 0, fmt.Errorf("%w: %q (valid: none, odd, even)", ErrUnsupportedParity, s)
	}
}

const (
	// DefaultReadTimeout is how long a read waits for the first byte.
	DefaultReadTimeout = time.Second

	maxReadTimeout = 255 * 100 * time.Millisecond
)

// LineConfig holds everything applied to the line discipline of a port.
// It is a plain value: build it once, pass it to Configure.
type LineConfig struct {
	BaudRate            int
	DataBits            int
	StopBits            int
	Parity              Parity
	HardwareFlowControl bool          // RTS/CTS handshake in the driver
	ReadTimeout         time.Duration // VTIME, 100ms resolution; VMIN is always 0
	StrictBaud          bool          // fail with ErrBaudMismatch when the driver adjusts the rate
}

// Option is a functional option for configuring a serial port
type Option func(*LineConfig) error

// DefaultConfig returns 9600 8N1 without flow control and a one second read timeout.
func DefaultConfig() LineConfig {
	return LineConfig{
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		ReadTimeout: DefaultReadTimeout,
		StrictBaud:  true,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (LineConfig, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return LineConfig{}, err
		}
	}
	return config, nil
}

// Validate checks every field, in the order the driver settings are built.
func (c LineConfig) Validate() error {
	if err := validateDataBits(c.DataBits); err != nil {
		return err
	}
	if err := validateParity(c.Parity); err != nil {
		return err
	}
	if err := validateStopBits(c.StopBits); err != nil {
		return err
	}
	if err := validateBaudRate(c.BaudRate); err != nil {
		return err
	}
	return validateReadTimeout(c.ReadTimeout)
}

// String renders the config in the familiar "115200 8N1" form.
func (c LineConfig) String() string {
	s := fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, c.Parity.Letter(), c.StopBits)
	if c.HardwareFlowControl {
		s += " rtscts"
	}
	return s
}

func validateDataBits(bits int) error {
	if bits < 5 || bits > 8 {
		return fmt.Errorf("%w: %d (valid: 5, 6, 7, 8)", ErrUnsupportedDataBits, bits)
	}
	return nil
}

func validateParity(p Parity) error {
	switch p {
	case ParityNone, ParityOdd, ParityEven:
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedParity, p)
}

func validateStopBits(bits int) error {
	if bits != 1 && bits != 2 {
		return fmt.Errorf("%w: %d (valid: 1, 2)", ErrUnsupportedStopBits, bits)
	}
	return nil
}

func validateBaudRate(rate int) error {
	if rate <= 0 || rate > math.MaxInt32 {
		return fmt.Errorf("%w: %d", ErrInvalidBaudRate, rate)
	}
	return nil
}

func validateReadTimeout(timeout time.Duration) error {
	if timeout < 0 || timeout > maxReadTimeout || timeout%(100*time.Millisecond) != 0 {
		return fmt.Errorf("%w: read timeout %v must be a multiple of 100ms up to %v",
			ErrInvalidConfig, timeout, maxReadTimeout)
	}
	return nil
}

// WithBaudRate sets the baud rate. Any positive rate is accepted, standard or not.
func WithBaudRate(rate int) Option {
	return func(c *LineConfig) error {
		if err := validateBaudRate(rate); err != nil {
			return err
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *LineConfig) error {
		if err := validateDataBits(bits); err != nil {
			return err
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *LineConfig) error {
		if err := validateStopBits(bits); err != nil {
			return err
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *LineConfig) error {
		if err := validateParity(parity); err != nil {
			return err
		}
		c.Parity = parity
		return nil
	}
}

// WithHardwareFlowControl enables or disables RTS/CTS handshaking
func WithHardwareFlowControl(enabled bool) Option {
	return func(c *LineConfig) error {
		c.HardwareFlowControl = enabled
		return nil
	}
}

// WithReadTimeout sets how long Read waits for data (VTIME).
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *LineConfig) error {
		if err := validateReadTimeout(timeout); err != nil {
			return err
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithStrictBaud controls whether a rate adjusted by the driver is an error.
func WithStrictBaud(strict bool) Option {
	return func(c *LineConfig) error {
		c.StrictBaud = strict
		return nil
	}
}
