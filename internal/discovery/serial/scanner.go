// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"servo-bridge/internal/discovery"
)

// knownBoards maps USB vendor IDs to the boards that usually drive hobby servo arms
var knownBoards = map[string]string{
	"2341": "Arduino",
	"2A03": "Arduino (arduino.org)",
	"1A86": "CH340 USB-UART",
	"0403": "FTDI USB-UART",
	"10C4": "CP210x USB-UART",
}

// ListFunc returns the detailed serial port list of the host
type ListFunc func() ([]*enumerator.PortDetails, error)

// Scanner implements serial port discovery
type Scanner struct {
	logger *zap.Logger
	list   ListFunc
}

// NewScanner creates a scanner backed by the host's port enumerator
func NewScanner(logger *zap.Logger) *Scanner {
	return NewScannerWithLister(logger, enumerator.GetDetailedPortsList)
}

// NewScannerWithLister creates a scanner with a custom port lister
func NewScannerWithLister(logger *zap.Logger, list ListFunc) *Scanner {
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		list:   list,
	}
}

// Scan lists serial ports. Known controller boards sort first, then USB ports, then by name.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.SerialPort, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	ports := make([]*discovery.SerialPort, 0, len(details))
	for _, d := range details {
		port := &discovery.SerialPort{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			port.VendorID = strings.ToUpper(d.VID)
			port.ProductID = strings.ToUpper(d.PID)
			port.Board = knownBoards[port.VendorID]
		}
		ports = append(ports, port)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		a, b := ports[i], ports[j]
		if a.Known() != b.Known() {
			return a.Known()
		}
		if a.IsUSB != b.IsUSB {
			return a.IsUSB
		}
		return a.Name < b.Name
	})

	s.logger.Debug("Serial scan completed", zap.Int("ports_found", len(ports)))
	return ports, nil
}

// FindArm picks the most likely arm controller port. Only USB ports qualify.
func (s *Scanner) FindArm(ctx context.Context) (*discovery.SerialPort, error) {
	ports, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		s.logger.Info("Selected serial port",
			zap.String("port", port.Name),
			zap.String("vendor_id", port.VendorID),
			zap.String("product_id", port.ProductID),
			zap.String("board", port.Board),
		)
		return port, nil
	}

	return nil, discovery.ErrNoArmFound
}
