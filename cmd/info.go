package cmd

import (
	"fmt"
	"io"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info [port]",
	Short: "Display detailed information about a serial port",
	Long: `Display information about a serial port, including USB metadata when the
device sits behind a USB adapter. Without an argument the configured device is used.

Examples:
  uart info /dev/ttyUSB0
  uart info -D /dev/ttyACM0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := deviceArg(args)
		info, err := uart.GetPortInfo(path)
		if err != nil {
			return err
		}
		printPortInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func printPortInfo(out io.Writer, info *uart.PortInfo) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(out, "  %s %s\n", styles.LabelStyle.Render(label), value)
		}
	}

	fmt.Fprintf(out, "%s\n\n", styles.TitleStyle.Render("Port Information: "+info.Path))
	field("Name:", info.Name)
	field("Description:", info.Description)

	if !info.IsUSB {
		return
	}
	fmt.Fprintf(out, "\n%s\n", styles.InfoStyle.Render("USB Device Information:"))
	field("Vendor ID:", info.VendorID)
	field("Product ID:", info.ProductID)
	field("Serial:", info.SerialNumber)
	field("Product:", info.Product)
}
