package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"playmesh/pkg/logger"
)

// NewLoggingMiddleware tags each request with an id and logs one line
// per request with latency and status.
func NewLoggingMiddleware(zlog *zap.Logger) gin.HandlerFunc {
	clog := logger.NewContextLogger(zlog)

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := uuid.NewString()
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-ID", requestID)

		c.Next()

		clog.LogInfo(c.Request.Context(), "request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
