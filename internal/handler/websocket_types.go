// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"servo-bridge/internal/model"
	"servo-bridge/internal/protocol"
	"servo-bridge/internal/service"
	"servo-bridge/internal/utils"
)

// Client represents a WebSocket client
type Client struct {
	ID          string           `json:"id"`
	Variant     protocol.Variant `json:"variant"`
	Subprotocol string           `json:"subprotocol,omitempty"`
	UserAgent   string           `json:"user_agent"`
	RemoteAddr  string           `json:"remote_addr"`
	ConnectedAt time.Time        `json:"connected_at"`

	Connection *websocket.Conn             `json:"-"`
	Send       chan []byte                 `json:"-"`
	Forward    chan *service.PreparedFrame `json:"-"`

	logger *utils.ConnectionLogger
	done   chan struct{}

	stateMutex sync.Mutex
	state      model.ConnectionState
	closeOnce  sync.Once
}

func newClient(id string, conn *websocket.Conn, variant protocol.Variant, sendSize, forwardSize int, logger *utils.ConnectionLogger) *Client {
	return &Client{
		ID:          id,
		Variant:     variant,
		Subprotocol: conn.Subprotocol(),
		RemoteAddr:  conn.RemoteAddr().String(),
		ConnectedAt: time.Now(),
		Connection:  conn,
		Send:        make(chan []byte, sendSize),
		Forward:     make(chan *service.PreparedFrame, forwardSize),
		logger:      logger,
		done:        make(chan struct{}),
		state:       model.ConnectionConnecting,
	}
}

// State returns the client's connection state
func (c *Client) State() model.ConnectionState {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.state
}

// setState moves the client to a new state. Terminal states are final.
func (c *Client) setState(to model.ConnectionState, err error) bool {
	c.stateMutex.Lock()
	from := c.state
	if from == to || from.IsTerminal() {
		c.stateMutex.Unlock()
		return false
	}
	c.state = to
	c.stateMutex.Unlock()

	c.logger.StateChanged(string(from), string(to), err)
	return true
}

// Done is closed once the client has been unregistered
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectionManager tracks open WebSocket clients
type ConnectionManager struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (cm *ConnectionManager) Register(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.clients[client.ID] = client
}

// Unregister removes a client and signals its goroutines to stop.
// It reports whether the client was still registered.
func (cm *ConnectionManager) Unregister(client *Client) bool {
	cm.mutex.Lock()
	_, ok := cm.clients[client.ID]
	delete(cm.clients, client.ID)
	cm.mutex.Unlock()

	client.shutdown()
	return ok
}

// Clients returns a snapshot of registered clients
func (cm *ConnectionManager) Clients() []*Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// CloseAll closes every client socket. Each read loop then unregisters its client.
func (cm *ConnectionManager) CloseAll() {
	for _, client := range cm.Clients() {
		client.setState(model.ConnectionClosed, nil)
		client.Connection.Close()
	}
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(cm.clients),
		ByVariant:        make(map[protocol.Variant]int),
		Clients:          make([]*Client, 0, len(cm.clients)),
	}

	for _, client := range cm.clients {
		stats.ByVariant[client.Variant]++
		stats.Clients = append(stats.Clients, client)
	}

	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int                      `json:"total_connections"`
	ByVariant        map[protocol.Variant]int `json:"by_variant"`
	Clients          []*Client                `json:"clients"`
}
