package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// breakCmd represents the break command
var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Transmit a break condition",
	Long: `Hold the transmit line low for the driver's break duration (0.25 to 0.5 seconds).

Example:
  uart break -D /dev/ttyS0`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		if err := port.SendBreak(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Break sent on %s\n", port.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(breakCmd)
}
