// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servo-bridge/internal/utils"
)

// RecoveryMiddleware logs a handler panic and answers 500 when nothing was written yet.
// An upgraded WebSocket connection has no HTTP response left to write to.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqLogger := utils.LoggerWithRequestID(logger, utils.GetRequestID(c))
		reqLogger.Error("Handler panicked",
			zap.Any("panic", recovered),
			zap.String("route", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Bool("websocket_upgrade", c.IsWebsocket()),
			zap.Stack("stacktrace"),
		)

		if c.Writer.Written() {
			c.Abort()
			return
		}
		utils.ErrorResponseWithCode(c, http.StatusInternalServerError, "PANIC_RECOVERED", "Internal server error", nil)
	})
}
