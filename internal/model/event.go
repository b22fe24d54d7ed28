// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventSerialOpened      EventType = "serial.opened"
	EventSerialClosed      EventType = "serial.closed"
	EventSerialWriteFailed EventType = "serial.write_failed"
	EventClientConnected   EventType = "client.connected"
	EventClientClosed      EventType = "client.closed"
)

// BridgeEvent represents an event raised by the bridge
type BridgeEvent struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Severity  string                 `json:"severity"` // INFO, WARNING, ERROR
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewBridgeEvent creates an event stamped with a fresh ID and the current time
func NewBridgeEvent(eventType EventType, source, severity string, data map[string]interface{}) BridgeEvent {
	return BridgeEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Severity:  severity,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ConnectionState tracks a client connection through its lifecycle
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClosed     ConnectionState = "closed"
	ConnectionErrored    ConnectionState = "errored"
)

// IsTerminal reports whether no further messages are processed in this state
func (s ConnectionState) IsTerminal() bool {
	return s == ConnectionClosed || s == ConnectionErrored
}
