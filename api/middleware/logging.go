package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLogging tags every request with a generated ID and logs start and
// completion with timing.
func RequestLogging(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		reqLogger := logger.With(zap.String("requestID", requestID))
		reqLogger.Info("Request started",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("clientIP", c.ClientIP()),
		)

		c.Next()

		reqLogger.Info("Request completed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("statusCode", c.Writer.Status()),
			zap.Int64("durationMs", time.Since(start).Milliseconds()),
		)
	}
}
