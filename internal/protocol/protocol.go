// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"
)

// Channel represents the outbound link to the arm controller
type Channel interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Write sends data in full or returns an error
	Write(ctx context.Context, data []byte) error

	// Name identifies the underlying device, e.g. /dev/ttyACM0
	Name() string

	Stats() ProtocolStats
}

// ProtocolStats provides channel-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// updateAverageLatency folds a new sample into the running average
func (s *ProtocolStats) updateAverageLatency(newLatency time.Duration) {
	if s.AverageLatency == 0 {
		s.AverageLatency = newLatency
	} else {
		s.AverageLatency = (s.AverageLatency + newLatency) / 2
	}
}
