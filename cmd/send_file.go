package cmd

import (
	"fmt"
	"os"

	"github.com/allbin/go-uart/internal/transfer"
	"github.com/spf13/cobra"
)

// sendFileCmd represents the send-file command
var sendFileCmd = &cobra.Command{
	Use:   "send-file <file>",
	Short: "Send a file to the serial port",
	Long: `Stream a file to the serial port in 4 KiB chunks, reporting progress, and
wait for the last byte to leave the UART.

Examples:
  uart send-file firmware.bin -S 115200
  uart send-file script.txt -D /dev/ttyACM0 --hardflow`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		out := cmd.OutOrStdout()
		total, err := transfer.Send(cmd.Context(), port, f, func(chunk int, total int64) {
			fmt.Fprintf(out, "Write total %d bytes, %d this time.\n", total, chunk)
		})
		if err != nil {
			return fmt.Errorf("sent %d bytes: %w", total, err)
		}
		if err := port.Drain(); err != nil {
			return err
		}

		fmt.Fprintf(out, "File has been sent, %d bytes.\n", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendFileCmd)
}
