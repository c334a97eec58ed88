package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/styles"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  = log.New(io.Discard)
)

// rootCmd represents the base command; without a subcommand it starts a session
var rootCmd = &cobra.Command{
	Use:   "uart",
	Short: "Configure, control and exercise a serial line",
	Long: `uart opens a serial device, applies line settings (any baud rate, data bits,
stop bits, parity, RTS/CTS flow control) and drives it: modem control lines,
break, reads and writes, and file transfers.

Without a subcommand it starts an interactive session on the configured device.

Settings come from flags, UART_* environment variables (UART_DEVICE,
UART_SPEED, UART_HARDFLOW, ...) or a YAML config file, in that order.

Examples:
  uart -D /dev/ttyUSB0 -S 115200
  uart -D /dev/ttyS1 -S 250000 --parity even signals
  UART_DEVICE=/dev/ttyACM0 uart send "AT" --newline`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	RunE:              runSession,
}

// Execute runs the command tree under a context cancelled by SIGINT or
// SIGTERM, so deferred cleanup runs on every exit path.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", styles.ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/uart/config.yaml)")
	pf.StringP("device", "D", "/dev/ttyUSB0", "serial device to open")
	pf.IntP("speed", "S", 9600, "baud rate, standard or custom")
	pf.Int("data-bits", 8, "data bits: 5, 6, 7 or 8")
	pf.Int("stop-bits", 1, "stop bits: 1 or 2")
	pf.String("parity", "none", "parity: none, odd or even")
	pf.BoolP("hardflow", "f", false, "enable RTS/CTS hardware flow control")
	pf.Duration("read-timeout", uart.DefaultReadTimeout, "how long a read waits for data, 100ms steps up to 25.5s")
	pf.Bool("strict-baud", true, "fail when the driver reports a different baud rate back")
	pf.BoolP("verbose", "v", false, "hex dump received data and log debug output")

	cobra.CheckErr(viper.BindPFlags(pf))
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	logger = newLogger(cmd.ErrOrStderr(), viper.GetBool("verbose"))
	logger.Debug("configuration loaded", "file", viper.ConfigFileUsed())
	return nil
}

// loadConfig wires environment variables and the config file into v. A
// missing default config file is not an error, a missing explicit one is.
func loadConfig(v *viper.Viper, file string) error {
	v.SetEnvPrefix("UART")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "uart"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "uart",
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// lineConfig builds the line settings from v. Fields are checked in the
// order the driver settings are built: data bits, parity, stop bits, baud.
func lineConfig(v *viper.Viper) (uart.LineConfig, error) {
	parity, err := uart.ParseParity(v.GetString("parity"))
	if err != nil {
		return uart.LineConfig{}, err
	}
	return uart.NewConfig(
		uart.WithDataBits(v.GetInt("data-bits")),
		uart.WithParity(parity),
		uart.WithStopBits(v.GetInt("stop-bits")),
		uart.WithBaudRate(v.GetInt("speed")),
		uart.WithHardwareFlowControl(v.GetBool("hardflow")),
		uart.WithReadTimeout(v.GetDuration("read-timeout")),
		uart.WithStrictBaud(v.GetBool("strict-baud")),
	)
}

// openPort opens the configured device with the configured line settings.
func openPort() (uart.Port, error) {
	config, err := lineConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	device := viper.GetString("device")
	logger.Debug("opening port", "device", device, "config", config)
	port, err := uart.OpenWithConfig(device, config)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	if drift := configDrift(config, port.Config()); len(drift) > 0 {
		logger.Warn("driver kept different line settings", "device", device, "held", strings.Join(drift, ", "))
	}
	return port, nil
}

// configDrift lists the framing fields the driver holds differently from
// what was requested. ReadTimeout is left out; VTIME truncates it to
// tenths of a second.
func configDrift(want, got uart.LineConfig) []string {
	var drift []string
	check := func(name string, want, got any) {
		if want != got {
			drift = append(drift, fmt.Sprintf("%s=%v (requested %v)", name, got, want))
		}
	}
	check("baud", want.BaudRate, got.BaudRate)
	check("databits", want.DataBits, got.DataBits)
	check("parity", want.Parity, got.Parity)
	check("stopbits", want.StopBits, got.StopBits)
	check("rtscts", want.HardwareFlowControl, got.HardwareFlowControl)
	return drift
}

// closePort closes port, logging rather than failing the command.
func closePort(port uart.Port) {
	if err := port.Close(); err != nil {
		logger.Warn("closing port", "device", port.Path(), "err", err)
	}
}

// deviceArg returns the port named on the command line, or the configured device.
func deviceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return viper.GetString("device")
}
