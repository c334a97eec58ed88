package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/tui/colors"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the UART device nodes under /dev: USB adapters (ttyUSB*), CDC/ACM
devices (ttyACM*), on-board ports (ttyS*) and SoC ports such as ttyAMA*,
ttymxc*, ttyO*, ttySAC* and ttyTHS*. Virtual consoles and pseudo-terminals are
never listed.

Examples:
  uart list
  uart list --table
  uart list --filter usb`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")
		out := cmd.OutOrStdout()

		ports, err := uart.ListPorts()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		infos := filterPorts(describePorts(ports), filterType)
		if len(infos) == 0 {
			if filterType != "" && filterType != "all" {
				fmt.Fprintf(out, "No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Fprintln(out, "No serial ports found")
			}
			return nil
		}

		if tableFormat {
			renderTable(out, infos)
		} else {
			renderSimple(out, infos)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("filter", "", "Filter by port type: usb, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// describePorts looks up each port; ports that vanish meanwhile keep only
// their path.
func describePorts(ports []string) []uart.PortInfo {
	infos := make([]uart.PortInfo, 0, len(ports))
	for _, port := range ports {
		info, err := uart.GetPortInfo(port)
		if err != nil {
			logger.Debug("port info unavailable", "port", port, "err", err)
			infos = append(infos, uart.PortInfo{Path: port, Name: strings.TrimPrefix(port, "/dev/")})
			continue
		}
		infos = append(infos, *info)
	}
	return infos
}

// filterPorts keeps the ports of one family; empty and "all" keep everything.
func filterPorts(infos []uart.PortInfo, filterType string) []uart.PortInfo {
	filterType = strings.ToLower(filterType)
	if filterType == "" || filterType == "all" {
		return infos
	}

	var filtered []uart.PortInfo
	for _, info := range infos {
		name := strings.ToLower(info.Name)
		var match bool
		switch filterType {
		case "usb":
			match = info.IsUSB || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
		case "standard":
			match = strings.HasPrefix(name, "ttys")
		case "arm":
			match = strings.HasPrefix(name, "ttyama")
		}
		if match {
			filtered = append(filtered, info)
		}
	}
	return filtered
}

const (
	columnPort        = "port"
	columnType        = "type"
	columnDescription = "description"
	columnUSB         = "usb"
)

// renderTable renders the port list as a static table
func renderTable(out io.Writer, infos []uart.PortInfo) {
	fmt.Fprintf(out, "Found %d serial port(s):\n\n", len(infos))

	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		usb := ""
		if info.IsUSB {
			usb = fmt.Sprintf("%s:%s %s", info.VendorID, info.ProductID, info.SerialNumber)
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnPort:        info.Path,
			columnType:        getPortType(info.Name),
			columnDescription: info.Description,
			columnUSB:         strings.TrimSpace(usb),
		}))
	}

	t := table.New([]table.Column{
		table.NewColumn(columnPort, "Port", 16),
		table.NewColumn(columnType, "Type", 16),
		table.NewColumn(columnDescription, "Description", 30),
		table.NewColumn(columnUSB, "USB", 26),
	}).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().Align(lipgloss.Left).BorderForeground(colors.Surface2))

	fmt.Fprintln(out, t.View())
}

// renderSimple prints one path per line for scripts.
func renderSimple(out io.Writer, infos []uart.PortInfo) {
	for _, info := range infos {
		fmt.Fprintln(out, info.Path)
	}
}

var portTypes = []struct{ prefix, label string }{
	{"ttyusb", "USB Serial"},
	{"ttyacm", "USB CDC/ACM"},
	{"ttyama", "ARM Serial"},
	{"ttymxc", "i.MX Serial"},
	{"ttysac", "Samsung Serial"},
	{"ttyths", "Tegra Serial"},
	{"ttyo", "OMAP Serial"},
	{"ttys", "Standard Serial"},
}

// getPortType is the short label of the table's Type column. Longer
// prefixes come first since ttys would also match ttysac.
func getPortType(name string) string {
	name = strings.ToLower(name)
	for _, t := range portTypes {
		if strings.HasPrefix(name, t.prefix) {
			return t.label
		}
	}
	return "Serial Port"
}
