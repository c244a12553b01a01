package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healsync-portal/internal/logging"
)

// RequestLogger emits structured logs for every HTTP request.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-ID", reqID)
		c.Set("requestID", reqID)

		logger.Debug("request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", reqID,
			"remote_ip", c.ClientIP(),
		)
		c.Next()
		logger.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"request_id", reqID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
