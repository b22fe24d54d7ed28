// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/events"
	"servo-bridge/internal/metrics"
	"servo-bridge/internal/model"
	"servo-bridge/internal/protocol"
	"servo-bridge/internal/service"
	"servo-bridge/internal/utils"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 64
)

// WebSocketHandler is the connection gateway between control clients and the serial link
type WebSocketHandler struct {
	upgrader      websocket.Upgrader
	connections   *ConnectionManager
	bridge        *service.BridgeService
	eventBus      *events.EventBus
	reportResults bool
	queueSize     int
	readLimit     int64
	forwarders    sync.WaitGroup
	logger        *utils.ServiceLogger
	baseLogger    *zap.Logger
}

// NewWebSocketHandler creates a new WebSocket handler and starts relaying
// serial link events to connected clients
func NewWebSocketHandler(
	bridge *service.BridgeService,
	eventBus *events.EventBus,
	bridgeConfig *config.BridgeConfig,
	securityConfig *config.SecurityConfig,
	logger *zap.Logger,
) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    protocol.Subprotocols(),
			CheckOrigin:     originChecker(securityConfig.AllowedOrigins),
		},
		connections:   NewConnectionManager(),
		bridge:        bridge,
		eventBus:      eventBus,
		reportResults: bridgeConfig.ReportResults,
		queueSize:     bridgeConfig.ConnectionQueueSize,
		readLimit:     bridgeConfig.ReadLimit,
		logger:        utils.NewServiceLogger(logger, "websocket-handler"),
		baseLogger:    logger,
	}

	if eventBus != nil {
		go h.relayEvents(eventBus.Subscribe(
			model.EventSerialOpened,
			model.EventSerialClosed,
			model.EventSerialWriteFailed,
			model.EventClientConnected,
			model.EventClientClosed,
		))
	}

	return h
}

// originChecker allows every origin when allowed is empty or contains "*"
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws", h.HandleConnection)
	router.GET("/", h.HandleConnection)
}

// HandleConnection upgrades a control client connection
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		utils.ErrorResponse(c, http.StatusBadRequest, "WebSocket upgrade required", nil)
		return
	}

	if !h.bridge.LinkOpen() {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Serial link is not open", nil)
		return
	}

	// validate the requested variant before upgrading so a bad one fails with 400
	requested := c.Query("protocol")
	if requested != "" {
		if _, err := protocol.ParseVariant(requested); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Unsupported protocol variant", err)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	variant, err := h.bridge.ResolveVariant(conn.Subprotocol(), requested)
	if err != nil {
		h.logger.Error("Failed to resolve protocol variant", zap.Error(err))
		conn.Close()
		return
	}

	id := uuid.New().String()
	client := newClient(id, conn, variant, sendBufferSize, h.queueSize,
		utils.NewConnectionLogger(h.baseLogger, id, conn.RemoteAddr().String(), string(variant)))
	client.UserAgent = c.Request.UserAgent()

	h.onConnect(client)

	h.forwarders.Add(1)
	go h.handleClientWrite(client)
	go h.handleClientForward(client)
	go h.handleClientRead(client)
}

func (h *WebSocketHandler) onConnect(client *Client) {
	h.connections.Register(client)
	client.setState(model.ConnectionOpen, nil)
	metrics.ConnectionOpened(string(client.Variant))
	h.publish(model.EventClientConnected, client, nil)

	h.sendMessage(client, &WebSocketMessage{
		Type: "status",
		Data: gin.H{
			"client_id":   client.ID,
			"variant":     client.Variant,
			"serial_open": h.bridge.LinkOpen(),
			"home":        model.HomePosition.Slice(),
			"envelopes":   model.Envelopes(),
		},
		Timestamp: time.Now(),
	})
}

// onDisconnect is bookkeeping only; it never touches the serial link
func (h *WebSocketHandler) onDisconnect(client *Client, err error) {
	state := model.ConnectionClosed
	if err != nil {
		state = model.ConnectionErrored
	}
	client.setState(state, err)

	if h.connections.Unregister(client) {
		metrics.ConnectionClosed(string(client.Variant))
		h.publish(model.EventClientClosed, client, map[string]interface{}{
			"state": string(state),
		})
	}
	client.Connection.Close()
}

// handleClientRead decodes and validates inbound updates and queues them for forwarding.
// It is the only sender on client.Forward and closes it on exit so the forwarder
// drains what was already accepted.
func (h *WebSocketHandler) handleClientRead(client *Client) {
	var readErr error
	defer func() {
		close(client.Forward)
		h.onDisconnect(client, readErr)
	}()

	conn := client.Connection
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			return
		}

		prepared, err := h.bridge.Accept(client.ID, client.Variant, payload)
		if err != nil {
			h.sendRejection(client, err)
			continue
		}

		select {
		case client.Forward <- prepared:
		default:
			h.bridge.Reject(client.ID, client.Variant, model.ErrBusy)
			h.sendRejection(client, model.ErrBusy)
		}
	}
}

// handleClientForward hands validated frames to the serial link one at a time.
// Updates accepted before a disconnect are still written.
func (h *WebSocketHandler) handleClientForward(client *Client) {
	defer h.forwarders.Done()

	for prepared := range client.Forward {
		start := time.Now()
		result, err := h.bridge.Forward(context.Background(), prepared)
		if err != nil {
			client.logger.Rejected(string(model.ReasonFor(err)), err,
				zap.Ints("positions", prepared.Vector.Slice()))
			h.sendRejection(client, err)
			continue
		}

		client.logger.Forwarded(result.Ack.Seq, result.Vector.Slice(), time.Since(start))
		if h.reportResults {
			h.sendMessage(client, &WebSocketMessage{
				Type: "ack",
				Data: gin.H{
					"seq":       result.Ack.Seq,
					"bytes":     result.Ack.Bytes,
					"positions": result.Vector.Slice(),
				},
				Timestamp: time.Now(),
			})
		}
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case <-client.Done():
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			client.Connection.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				client.logger.Logger().Warn("WebSocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendRejection tells the client why its update was dropped
func (h *WebSocketHandler) sendRejection(client *Client, err error) {
	if !h.reportResults {
		return
	}

	data := gin.H{
		"reason": model.ReasonFor(err),
		"error":  err.Error(),
	}

	var rangeErr *model.RangeError
	if errors.As(err, &rangeErr) {
		data["index"] = rangeErr.Index
		data["joint"] = rangeErr.Joint
		data["min"] = rangeErr.Min
		data["max"] = rangeErr.Max
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      "rejected",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case <-client.Done():
	case client.Send <- messageBytes:
	default:
		client.logger.Logger().Warn("Client send channel full, dropping message",
			zap.String("type", message.Type))
	}
}

// relayEvents broadcasts serial link events until the bus closes the subscription
func (h *WebSocketHandler) relayEvents(subscription <-chan model.BridgeEvent) {
	for event := range subscription {
		h.Broadcast(&WebSocketMessage{
			Type:      "bridge_event",
			Data:      event,
			Timestamp: event.Timestamp,
		})
	}
}

// Broadcast sends message to every connected client
func (h *WebSocketHandler) Broadcast(message *WebSocketMessage) {
	for _, client := range h.connections.Clients() {
		h.sendMessage(client, message)
	}
}

func (h *WebSocketHandler) publish(eventType model.EventType, client *Client, data map[string]interface{}) {
	if h.eventBus == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["client_id"] = client.ID
	data["variant"] = string(client.Variant)
	data["remote_addr"] = client.RemoteAddr
	h.eventBus.Publish(model.NewBridgeEvent(eventType, "gateway", "INFO", data))
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// Shutdown closes every client connection and waits until updates already
// accepted from them have been handed to the serial link, or ctx ends.
func (h *WebSocketHandler) Shutdown(ctx context.Context) error {
	h.connections.CloseAll()

	drained := make(chan struct{})
	go func() {
		h.forwarders.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for client forwarders: %w", ctx.Err())
	}
}
