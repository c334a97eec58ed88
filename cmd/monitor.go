package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/allbin/go-uart"
	"github.com/spf13/cobra"
)

var (
	monitorSignals []string
	monitorTimeout time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor modem signal changes",
	Long: `Watch modem status lines and report every change. Press Ctrl+C to stop.

Examples:
  uart monitor
  uart monitor --signals cts,dsr
  uart monitor --signals dcd --timeout 30s

Available signals: cts, dsr, ri, dcd`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, err := uart.ParseSignalMask(strings.Join(monitorSignals, ","))
		if err != nil {
			return err
		}

		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		// Snapshot before reading the initial state so nothing between the
		// two goes unreported.
		watcher, err := port.WatchSignals(mask)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Monitoring %s on %s\n", mask, port.Path())
		fmt.Fprintln(out, "Press Ctrl+C to stop")

		initial, err := port.GetLines()
		if err != nil {
			return err
		}
		printSignalState(out, "Initial state", initial, mask)

		return monitor(cmd.Context(), out, watcher, monitorTimeout)
	},
}

// signalWaiter is satisfied by *uart.SignalWatcher.
type signalWaiter interface {
	Wait(ctx context.Context) (uart.ModemSignals, uart.SignalMask, error)
}

// monitor reports changes until ctx ends. A positive timeout bounds each
// wait; expiry is reported and the watch continues.
func monitor(ctx context.Context, out io.Writer, watcher signalWaiter, timeout time.Duration) error {
	for {
		waitCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			waitCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		signals, changed, err := watcher.Wait(waitCtx)
		cancel()

		switch {
		case err == nil:
			printSignalState(out, "Signal change detected", signals, changed)
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			fmt.Fprintf(out, "[%s] Timeout - no signal changes\n", time.Now().Format("15:04:05"))
		default:
			return err
		}
	}
}

func printSignalState(out io.Writer, heading string, signals uart.ModemSignals, mask uart.SignalMask) {
	fmt.Fprintf(out, "[%s] %s:\n", time.Now().Format("15:04:05"), heading)
	for _, s := range []struct {
		bit   uart.SignalMask
		label string
		on    bool
	}{
		{uart.SignalCTS, "CTS:", signals.CTS},
		{uart.SignalDSR, "DSR:", signals.DSR},
		{uart.SignalRI, "RI: ", signals.RI},
		{uart.SignalDCD, "DCD:", signals.DCD},
	} {
		if mask&s.bit != 0 {
			fmt.Fprintf(out, "  %s %s\n", s.label, formatSignalState(s.on))
		}
	}
	fmt.Fprintln(out)
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorSignals, "signals", "s", []string{"cts", "dsr", "ri", "dcd"},
		"Signals to monitor (comma-separated: cts,dsr,ri,dcd)")
	monitorCmd.Flags().DurationVarP(&monitorTimeout, "timeout", "t", 0,
		"Timeout for each wait operation (0 = no timeout)")
}
