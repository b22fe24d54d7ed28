// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servo-bridge/internal/utils"
)

// LoggingMiddleware logs every request except the paths in skip
func LoggingMiddleware(logger *utils.ServiceLogger, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, path := range skip {
		skipped[path] = true
	}

	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		if skipped[c.Request.URL.Path] {
			return
		}

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
		for _, err := range c.Errors {
			logger.Warn("Request error",
				zap.String("request_id", utils.GetRequestID(c)),
				zap.Error(err.Err),
			)
		}
	}
}
