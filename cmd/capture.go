package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/allbin/go-uart/internal/transfer"
	"github.com/spf13/cobra"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file. Runs until interrupted (Ctrl+C);
the file is synced and closed on the way out.

The file is truncated unless --append is given.

Example usage:
  uart capture data.log
  uart capture output.txt -S 115200 --append
  uart capture capture.log --console`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appendMode, _ := cmd.Flags().GetBool("append")
		showConsole, _ := cmd.Flags().GetBool("console")
		return runCapture(cmd.Context(), args[0], appendMode, showConsole, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().BoolP("append", "a", false, "Append to the output file instead of truncating it")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

func openOutput(path string, appendMode bool) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	return os.OpenFile(path, flags, 0o644)
}

func runCapture(ctx context.Context, outputPath string, appendMode, showConsole bool, console, status io.Writer) (err error) {
	port, err := openPort()
	if err != nil {
		return err
	}
	defer closePort(port)

	file, err := openOutput(outputPath, appendMode)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() {
		if syncErr := file.Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	fmt.Fprintf(status, "Capturing data from %s to %s\n", port.Path(), outputPath)
	fmt.Fprintf(status, "Press Ctrl+C to stop\n\n")

	var dst io.Writer = file
	if showConsole {
		dst = io.MultiWriter(file, console)
	}

	startTime := time.Now()
	total, err := transfer.Receive(ctx, dst, port, func(chunk int, total int64) {
		logger.Debug("captured", "bytes", chunk, "total", total)
	})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	fmt.Fprintf(status, "\nCapture complete: %d bytes written in %v\n", total, time.Since(startTime).Round(time.Millisecond))
	return err
}
