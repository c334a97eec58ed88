package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/transfer"
	"github.com/allbin/go-uart/internal/tui/components"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data]",
	Short: "Send data to the serial port",
	Long: `Send data to the configured serial port. Data can be provided as:
- Command line argument: uart send "Hello World"
- From stdin (pipe): echo "test data" | uart send
- Interactive mode: uart send (prompts for input)

Example usage:
  uart send "Hello World" -D /dev/ttyUSB0
  uart send "AT+GMR" --newline
  uart send --hex "02 06 00 03"
  echo "test" | uart send`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		text, err := sendInput(cmd, args)
		if err != nil {
			return err
		}

		data, err := encodePayload(text, hexMode, addNewline)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return sendData(ctx, cmd.OutOrStdout(), data)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().Duration("timeout", 5*time.Second, "Timeout for sending data")
}

// sendInput picks the data from the argument, piped stdin or a prompt.
func sendInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), styles.InfoStyle.Render("Enter data to send: "))
		scanner := bufio.NewScanner(in)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		return "", scanner.Err()
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// encodePayload turns the text into bytes. The newline is only added to text
// input.
func encodePayload(text string, hexMode, addNewline bool) ([]byte, error) {
	if hexMode {
		data, err := components.ParseHex(text)
		if err != nil {
			return nil, fmt.Errorf("invalid hex data: %w", err)
		}
		return data, nil
	}
	if addNewline {
		text += "\n"
	}
	return []byte(text), nil
}

func sendData(ctx context.Context, out io.Writer, data []byte) error {
	port, err := openPort()
	if err != nil {
		return err
	}
	defer closePort(port)

	fmt.Fprintf(out, "%s Connected to %s at %s\n", styles.SuccessStyle.Render("✓"), port.Path(), port.Config())
	return transmit(ctx, out, port, data)
}

// transmit writes all of data, continuing short writes, then waits until the
// bytes have left the UART.
func transmit(ctx context.Context, out io.Writer, port uart.Port, data []byte) error {
	fmt.Fprintf(out, "%s Sending %d bytes...\n", styles.InfoStyle.Render("📤"), len(data))

	n, err := transfer.WriteAll(ctx, portWriter{ctx, port}, data)
	if err != nil {
		return fmt.Errorf("sent %d of %d bytes: %w", n, len(data), err)
	}
	if err := port.Drain(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s Successfully sent %d bytes\n", styles.SuccessStyle.Render("✓"), n)
	fmt.Fprintf(out, "%s Data: %s\n", styles.InfoStyle.Render("📋"), preview(data, 50))
	return nil
}

// portWriter binds WriteContext to ctx for use as an io.Writer.
type portWriter struct {
	ctx  context.Context
	port uart.Port
}

func (w portWriter) Write(p []byte) (int, error) {
	return w.port.WriteContext(w.ctx, p)
}

// preview shows the first max bytes with non-printable bytes masked.
func preview(data []byte, max int) string {
	if len(data) <= max {
		return components.Printable(data)
	}
	return components.Printable(data[:max]) + "..."
}
