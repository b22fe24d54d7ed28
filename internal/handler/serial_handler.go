// internal/handler/serial_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servo-bridge/internal/discovery"
	"servo-bridge/internal/model"
	"servo-bridge/internal/utils"
)

// SerialLink is the operator view of the serial link
type SerialLink interface {
	LinkStatusProvider
	Reopen(ctx context.Context) error
}

// ConnectionStatsProvider reports gateway connection statistics
type ConnectionStatsProvider interface {
	GetConnectionStats() *ConnectionStats
}

// SerialHandler serves link status, port discovery and operator actions
type SerialHandler struct {
	link        SerialLink
	scanner     discovery.PortScanner
	connections ConnectionStatsProvider
	allowReopen bool
	logger      *utils.ServiceLogger
}

// NewSerialHandler creates a new serial handler
func NewSerialHandler(
	link SerialLink,
	scanner discovery.PortScanner,
	connections ConnectionStatsProvider,
	allowReopen bool,
	logger *zap.Logger,
) *SerialHandler {
	return &SerialHandler{
		link:        link,
		scanner:     scanner,
		connections: connections,
		allowReopen: allowReopen,
		logger:      utils.NewServiceLogger(logger, "serial-handler"),
	}
}

// RegisterRoutes registers serial routes
func (h *SerialHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	serial := router.Group("/serial")
	{
		serial.GET("/ports", h.ListPorts)
		serial.POST("/reopen", h.Reopen)
	}
}

// GetStatus returns the serial link status and connection statistics
// @Summary Bridge status
// @Description Serial link state, joint envelopes, home position and connected clients
// @Tags Serial
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{serial=service.LinkStatus,joints=[]model.Envelope,home=[]int}} "Bridge status"
// @Router /api/v1/status [get]
func (h *SerialHandler) GetStatus(c *gin.Context) {
	data := gin.H{
		"serial":    h.link.Status(),
		"joints":    model.Envelopes(),
		"home":      model.HomePosition.Slice(),
		"timestamp": time.Now(),
	}
	if h.connections != nil {
		stats := h.connections.GetConnectionStats()
		data["connections"] = gin.H{
			"total":      stats.TotalConnections,
			"by_variant": stats.ByVariant,
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Bridge status", data)
}

// ListPorts enumerates serial ports on the host
// @Summary List serial ports
// @Description Enumerate serial ports, known controller boards first
// @Tags Serial
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{ports=[]discovery.SerialPort,count=int}} "Serial ports"
// @Failure 500 {object} utils.APIResponse "Enumeration failed"
// @Failure 503 {object} utils.APIResponse "Port discovery unavailable"
// @Router /api/v1/serial/ports [get]
func (h *SerialHandler) ListPorts(c *gin.Context) {
	if h.scanner == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Port discovery unavailable", nil)
		return
	}

	ports, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports", gin.H{
		"ports": ports,
		"count": len(ports),
	})
}

// Reopen closes and reopens the serial channel. Disabled unless
// serial.allow_manual_reopen is set.
// @Summary Reopen serial channel
// @Description Operator action; never triggered automatically
// @Tags Serial
// @Produce json
// @Success 200 {object} utils.APIResponse{data=service.LinkStatus} "Serial channel reopened"
// @Failure 403 {object} utils.APIResponse "Manual reopen is disabled"
// @Failure 502 {object} utils.APIResponse "Reopen failed"
// @Router /api/v1/serial/reopen [post]
func (h *SerialHandler) Reopen(c *gin.Context) {
	if !h.allowReopen {
		utils.ErrorResponse(c, http.StatusForbidden, "Manual reopen is disabled", nil)
		return
	}

	h.logger.Warn("Operator requested serial reopen",
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", utils.GetRequestID(c)),
	)

	if err := h.link.Reopen(c.Request.Context()); err != nil {
		h.logger.Error("Serial reopen failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to reopen serial channel", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial channel reopened", h.link.Status())
}
