package cmd

import (
	"fmt"

	"github.com/allbin/go-uart/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read once from the serial port",
	Long: `Perform a single read. The read returns as soon as data arrives, or with 0
bytes when nothing arrives within --read-timeout. Data goes to stdout as is;
with -v a hex dump is printed as well.

Examples:
  uart read -D /dev/ttyUSB0 --read-timeout 5s
  uart read -v --buffer 64`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		size, _ := cmd.Flags().GetInt("buffer")
		if size <= 0 {
			return fmt.Errorf("buffer size must be positive, got %d", size)
		}

		port, err := openPort()
		if err != nil {
			return err
		}
		defer closePort(port)

		buf := make([]byte, size)
		n, err := port.ReadContext(cmd.Context(), buf)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		logger.Debug("read complete", "bytes", n)
		if viper.GetBool("verbose") {
			fmt.Fprintf(cmd.ErrOrStderr(), "Read %d bytes.\n", n)
			session.Dump(cmd.ErrOrStderr(), buf[:n])
		}
		_, err = out.Write(buf[:n])
		return err
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Int("buffer", 4096, "Largest number of bytes to read")
}
