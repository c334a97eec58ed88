// Package uart opens and drives a UART through the Linux terminal device
// interface.
//
// Line settings are applied with termios2 (TCGETS2/TCSETS2) and the BOTHER
// speed selector, so any positive baud rate can be requested, not only the
// standard Bnnn values. After applying, the speed is read back and compared.
//
// # Basic Usage
//
//	port, err := uart.Open("/dev/ttyUSB0",
//	    uart.WithBaudRate(250000),
//	    uart.WithParity(uart.ParityEven),
//	    uart.WithHardwareFlowControl(true),
//	)
//	if err != nil {
//	    return err
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("AT\r"))
//	buf := make([]byte, 256)
//	n, err = port.Read(buf) // 0, nil after the read timeout
//
// A whole LineConfig is validated before the device is touched and then
// applied in a single call, so a failed Configure never leaves the line
// half-configured.
//
// # Modem Lines
//
//	err = port.SetLines(true, true) // DTR and RTS asserted
//	signals, err := port.GetLines()
//	if signals.DSR {
//	    // ...
//	}
//
//	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
//	defer cancel()
//	signals, changed, err := port.WaitForChange(ctx)
//
// # Errors
//
// Every failure wraps one of the Err* values in this package together with
// the underlying errno:
//
//	if errors.Is(err, uart.ErrBaudMismatch) {
//	    // the driver rounded the rate; retry with WithStrictBaud(false)
//	}
//
// # Default Configuration
//
//   - BaudRate: 9600
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - HardwareFlowControl: off
//   - ReadTimeout: 1 second
//   - StrictBaud: on
package uart
