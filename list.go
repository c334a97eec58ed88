package uart

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"
)

// portKind pairs a device node naming scheme with its description.
type portKind struct {
	pattern     *regexp.Regexp
	description string
}

var (
	portKinds = []portKind{
		{regexp.MustCompile(`^ttyUSB\d+$`), "USB Serial Port"},
		{regexp.MustCompile(`^ttyACM\d+$`), "USB CDC/ACM Device"},
		{regexp.MustCompile(`^ttyS\d+$`), "Standard Serial Port"},
		{regexp.MustCompile(`^ttyAMA\d+$`), "ARM Serial Port"},
		{regexp.MustCompile(`^ttymxc\d+$`), "i.MX Serial Port"},
		{regexp.MustCompile(`^ttyO\d+$`), "OMAP Serial Port"},
		{regexp.MustCompile(`^ttySAC\d+$`), "Samsung Serial Port"},
		{regexp.MustCompile(`^ttyTHS\d+$`), "Tegra Serial Port"},
	}

	// detailedPorts is swapped out in tests.
	detailedPorts = enumerator.GetDetailedPortsList
)

// kindOf reports which UART naming scheme name follows. Virtual consoles and
// pseudo-terminals follow none.
func kindOf(name string) (portKind, bool) {
	for _, k := range portKinds {
		if k.pattern.MatchString(name) {
			return k, true
		}
	}
	return portKind{}, false
}

// ListPorts returns the serial device nodes under /dev, sorted.
func ListPorts() ([]string, error) {
	return listPortsIn("/dev")
}

func listPortsIn(devDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		if _, ok := kindOf(entry.Name()); !ok {
			continue
		}
		path := filepath.Join(devDir, entry.Name())
		if isCharDevice(path) {
			ports = append(ports, path)
		}
	}
	slices.Sort(ports)
	return ports, nil
}

// isCharDevice follows symlinks, so /dev/serial/by-id entries qualify.
func isCharDevice(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial device node
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}

// GetPortInfo describes the device node at path. USB metadata is best
// effort: a failing enumeration leaves those fields empty.
func GetPortInfo(path string) (*PortInfo, error) {
	if !isCharDevice(path) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(path)
	info := &PortInfo{Name: name, Path: path, Description: describe(name)}
	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info)
	}
	return info, nil
}

func describe(name string) string {
	if k, ok := kindOf(name); ok {
		return k.description
	}
	return "Serial Port"
}

// enrichUSBInfo fills the USB fields from the enumerator's sysfs walk.
func enrichUSBInfo(info *PortInfo) {
	details, err := detailedPorts()
	if err != nil {
		return
	}

	i := slices.IndexFunc(details, func(d *enumerator.PortDetails) bool {
		return d.IsUSB && d.Name == info.Path
	})
	if i < 0 {
		return
	}

	d := details[i]
	info.IsUSB = true
	info.VendorID = d.VID
	info.ProductID = d.PID
	info.SerialNumber = d.SerialNumber
	info.Product = d.Product
	if d.Product != "" {
		info.Description = d.Product
	}
}
