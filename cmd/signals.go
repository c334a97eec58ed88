package cmd

import (
	"fmt"
	"strings"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/spf13/cobra"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Display current modem signal states",
	Long: `Display the current state of all modem control lines of the device.

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  DCD - Data Carrier Detect (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)

Examples:
  uart signals -D /dev/ttyUSB0
  uart signals -D /dev/ttyACM0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		signals, err := port.GetLines()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Modem Signals for %s:\n\n%s", port.Path(), formatSignals(signals))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func formatSignals(s uart.ModemSignals) string {
	rows := []struct {
		label string
		on    bool
	}{
		{"CTS (Clear To Send):      ", s.CTS},
		{"DSR (Data Set Ready):     ", s.DSR},
		{"RI  (Ring Indicator):     ", s.RI},
		{"DCD (Data Carrier Detect):", s.DCD},
		{"RTS (Request To Send):    ", s.RTS},
		{"DTR (Data Terminal Ready):", s.DTR},
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "  %s %s\n", r.label, styles.LineStyle(r.on).Render(formatSignalState(r.on)))
	}
	return b.String()
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}
