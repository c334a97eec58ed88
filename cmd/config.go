package cmd

import (
	"fmt"
	"io"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the device and line settings that commands would use, after flags,
UART_* environment variables and the config file are merged. The device is
not opened.

Example:
  UART_SPEED=115200 uart config --parity even`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := lineConfig(viper.GetViper())
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), viper.GetString("device"), viper.ConfigFileUsed(), config)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func printConfig(out io.Writer, device, file string, c uart.LineConfig) {
	if file == "" {
		file = "(none)"
	}
	flow := "none"
	if c.HardwareFlowControl {
		flow = "rts/cts"
	}

	rows := []struct{ label, value string }{
		{"Device:", device},
		{"Line:", c.String()},
		{"Baud rate:", fmt.Sprint(c.BaudRate)},
		{"Data bits:", fmt.Sprint(c.DataBits)},
		{"Parity:", c.Parity.String()},
		{"Stop bits:", fmt.Sprint(c.StopBits)},
		{"Flow control:", flow},
		{"Read timeout:", c.ReadTimeout.String()},
		{"Strict baud:", fmt.Sprint(c.StrictBaud)},
		{"Config file:", file},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "%s %s\n", styles.LabelStyle.Render(r.label), r.value)
	}
}
