package uart

import "errors"

// Predefined error kinds. Errors returned by a Port wrap one of these together
// with the underlying errno, so both errors.Is(err, ErrReadFailed) and
// errors.Is(err, unix.EIO) hold.
var (
	ErrDeviceOpenFailed   = errors.New("serial device could not be opened")
	ErrNotATerminalDevice = errors.New("device is not a terminal")
	ErrModeChangeFailed   = errors.New("could not switch device to blocking mode")
	ErrDeviceNotFound     = errors.New("serial device not found")
	ErrPortClosed         = errors.New("serial port is closed")
	ErrCloseFailed        = errors.New("closing serial device failed")

	// Line configuration errors
	ErrUnsupportedDataBits = errors.New("unsupported data bits")
	ErrUnsupportedParity   = errors.New("unsupported parity")
	ErrUnsupportedStopBits = errors.New("unsupported stop bits")
	ErrInvalidBaudRate     = errors.New("invalid baud rate")
	ErrInvalidConfig       = errors.New("invalid serial configuration")
	ErrBaudQueryFailed     = errors.New("reading line settings failed")
	ErrBaudApplyFailed     = errors.New("writing line settings failed")
	ErrBaudMismatch        = errors.New("device did not accept requested baud rate")
	ErrFlushFailed         = errors.New("flushing driver queues failed")

	// I/O errors
	ErrWriteFailed = errors.New("write to serial device failed")
	ErrReadFailed  = errors.New("read from serial device failed")
	ErrBreakFailed = errors.New("sending break failed")

	// Modem line errors
	ErrModemControlFailed    = errors.New("setting modem control lines failed")
	ErrModemStatusReadFailed = errors.New("reading modem status lines failed")
	ErrModemWaitFailed       = errors.New("waiting for modem line change failed")
	ErrSignalTimeout         = errors.New("timeout waiting for signal change")
	ErrInvalidSignalMask     = errors.New("invalid signal mask")
)
