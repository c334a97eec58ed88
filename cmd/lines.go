package cmd

import (
	"fmt"

	"github.com/allbin/go-uart"
	"github.com/spf13/cobra"
)

// linesCmd represents the lines command
var linesCmd = &cobra.Command{
	Use:   "lines <dtr> <rts>",
	Short: "Set DTR and RTS together",
	Long: `Set both modem control outputs in one step. The other lines are left alone.

Examples:
  uart lines high high
  uart lines 0 1 -D /dev/ttyS0

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dtr, err := parseSignalState(args[0])
		if err != nil {
			return err
		}
		rts, err := parseSignalState(args[1])
		if err != nil {
			return err
		}

		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		if err := port.SetLines(dtr, rts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "DTR set to %s, RTS set to %s on %s\n",
			formatSignalState(dtr), formatSignalState(rts), port.Path())
		return nil
	},
}

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Set the DTR (Data Terminal Ready) signal state.

The DTR signal indicates that the terminal is ready for communication.

Examples:
  uart dtr high
  uart dtr off -D /dev/ttyUSB1

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOutputLine(cmd, "DTR", args[0], uart.Port.SetDTR)
	},
}

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Set the RTS (Request To Send) signal state.

With --hardflow the driver owns RTS and may change it again.

Examples:
  uart rts high
  uart rts 0 -D /dev/ttyACM0

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOutputLine(cmd, "RTS", args[0], uart.Port.SetRTS)
	},
}

func init() {
	rootCmd.AddCommand(linesCmd, dtrCmd, rtsCmd)
}

// setOutputLine sets one output line, then reads the lines back to report
// the state the driver actually holds.
func setOutputLine(cmd *cobra.Command, name, arg string, set func(uart.Port, bool) error) error {
	state, err := parseSignalState(arg)
	if err != nil {
		return err
	}

	port, err := openPort()
	if err != nil {
		return err
	}
	defer closePort(port)

	if err := set(port, state); err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}

	current := state
	if lines, err := port.GetLines(); err != nil {
		logger.Warn("could not verify line state", "line", name, "err", err)
	} else if name == "DTR" {
		current = lines.DTR
	} else {
		current = lines.RTS
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s on %s\n", name, formatSignalState(current), port.Path())
	return nil
}
