// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servo-bridge/internal/config"
	"servo-bridge/internal/service"
	"servo-bridge/internal/utils"
)

// LinkStatusProvider reports the state of the serial link
type LinkStatusProvider interface {
	IsOpen() bool
	Status() service.LinkStatus
}

// HealthHandler handles health check requests
type HealthHandler struct {
	link      LinkStatusProvider
	config    *config.Config
	startedAt time.Time
	logger    *utils.ServiceLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(link LinkStatusProvider, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		link:      link,
		config:    config,
		startedAt: time.Now(),
		logger:    utils.NewServiceLogger(logger, "health-handler"),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports overall service health including the serial link
// @Summary Health check
// @Description Get overall service health including the serial channel state
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Serial channel closed"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	status := h.link.Status()
	check := CheckResult{
		Status:  "healthy",
		Message: "Serial channel open",
		Data: map[string]interface{}{
			"port":          status.Port,
			"baud_rate":     status.BaudRate,
			"queue_depth":   status.QueueDepth,
			"bytes_written": status.Stats.BytesWritten,
			"error_count":   status.Stats.ErrorCount,
		},
	}
	if !status.Open {
		health.Status = "unhealthy"
		check.Status = "unhealthy"
		check.Message = "Serial channel closed"
	}
	if status.LastError != "" {
		check.Data["last_error"] = status.LastError
	}
	health.Checks["serial"] = check

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		h.logger.Warn("Health check failed", zap.String("port", status.Port))
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck accepts traffic only while the serial channel is open
// @Summary Readiness check
// @Description Ready only while the serial channel is open
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is ready"
// @Failure 503 {object} map[string]interface{} "Serial channel not open"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if !h.link.IsOpen() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "serial channel not open",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck reports that the process is serving HTTP
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
