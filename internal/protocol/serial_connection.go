// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrNotOpen is returned when writing to a channel that has not been opened
var ErrNotOpen = errors.New("serial port not open")

// PortOpener opens a physical port. serial.Open in production.
type PortOpener func(name string, mode *serial.Mode) (serial.Port, error)

// SerialConnection implements Channel over go.bug.st/serial
type SerialConnection struct {
	config *SerialConfig
	open   PortOpener
	port   serial.Port
	logger *zap.Logger

	// mutex guards port state and stats, writeMutex serializes port writes.
	// A blocked write never holds mutex.
	mutex      sync.Mutex
	writeMutex sync.Mutex
	isOpen     bool
	stats      ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return NewSerialConnectionWithOpener(config, serial.Open, logger)
}

// NewSerialConnectionWithOpener creates a serial connection that opens its port through opener
func NewSerialConnectionWithOpener(config *SerialConfig, opener PortOpener, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		open:   opener,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
		zap.Int("data_bits", sc.config.DataBits),
		zap.Int("stop_bits", sc.config.StopBits),
		zap.String("parity", sc.config.Parity),
	)

	mode, err := sc.config.Mode()
	if err != nil {
		return fmt.Errorf("invalid serial mode: %w", err)
	}

	port, err := sc.open(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.isOpen && sc.port != nil
}

// Name returns the configured device path
func (sc *SerialConnection) Name() string {
	return sc.config.Port
}

// Write writes the whole of data to the serial port, retrying short writes
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.writeMutex.Lock()
	defer sc.writeMutex.Unlock()

	sc.mutex.Lock()
	port := sc.port
	open := sc.isOpen
	sc.mutex.Unlock()

	if !open || port == nil {
		return ErrNotOpen
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	written := 0
	for written < len(data) {
		n, err := port.Write(data[written:])
		written += n
		if err != nil {
			sc.recordFailure()
			sc.logger.Error("Serial write failed", zap.Error(err), zap.Int("written", written))
			return fmt.Errorf("failed to write to serial port: %w", err)
		}
		if n == 0 {
			sc.recordFailure()
			return fmt.Errorf("incomplete write: wrote %d of %d bytes: %w", written, len(data), io.ErrShortWrite)
		}
	}
	duration := time.Since(startTime)

	sc.mutex.Lock()
	sc.stats.BytesWritten += int64(len(data))
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.stats.updateAverageLatency(duration)
	sc.mutex.Unlock()

	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

func (sc *SerialConnection) recordFailure() {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	sc.stats.ErrorCount++
}

// Stats returns a snapshot of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.stats
}
