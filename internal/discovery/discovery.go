// Package discovery locates attached sensors by their USB vendor and
// product identifiers.
package discovery

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB identifiers for the sensor's serial interface.
const (
	VendorID  = "16D0"
	ProductID = "0ED5"
)

// ErrNoSensor is returned when no attached port matches the sensor IDs.
var ErrNoSensor = errors.New("discovery: no sensor found")

// Port describes one detected sensor port.
type Port struct {
	Name         string
	SerialNumber string
}

// isSensorPort reports whether a detail record matches the sensor's USB
// identifiers. Enumerator backends differ in hex casing, so compare
// case-insensitively.
func isSensorPort(d *enumerator.PortDetails) bool {
	return d.IsUSB &&
		strings.EqualFold(d.VID, VendorID) &&
		strings.EqualFold(d.PID, ProductID)
}

// Ports lists every attached sensor port.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerating ports: %w", err)
	}
	var out []Port
	for _, d := range details {
		if isSensorPort(d) {
			out = append(out, Port{Name: d.Name, SerialNumber: d.SerialNumber})
		}
	}
	return out, nil
}

// FirstPort returns the first attached sensor port, or ErrNoSensor.
func FirstPort() (Port, error) {
	ports, err := Ports()
	if err != nil {
		return Port{}, err
	}
	if len(ports) == 0 {
		return Port{}, ErrNoSensor
	}
	return ports[0], nil
}
