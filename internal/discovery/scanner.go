// internal/discovery/scanner.go
package discovery

import (
	"context"
	"errors"
)

// ErrNoArmFound is returned when no serial port looks like an arm controller
var ErrNoArmFound = errors.New("no arm controller serial port found")

// PortScanner lists serial ports that could host the arm controller
type PortScanner interface {
	Scan(ctx context.Context) ([]*SerialPort, error)
	FindArm(ctx context.Context) (*SerialPort, error)
}

// SerialPort represents a discovered serial port
type SerialPort struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	// Board names a known microcontroller or USB-UART bridge, empty if unknown
	Board string `json:"board,omitempty"`
}

// Known reports whether the port's USB vendor matched a known controller board
func (p *SerialPort) Known() bool {
	return p.Board != ""
}
