package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"sizefit-service/pkg/logger"
)

// AccessLog 记录每个请求的方法、路径、状态码和耗时
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client":     ClientKey(c),
		}
		if reqID := RequestIDFrom(c.Request.Context()); reqID != "" {
			fields["request_id"] = reqID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Error("http request", fields)
		case c.Writer.Status() >= 400:
			logger.Warn("http request", fields)
		default:
			logger.Debug("http request", fields)
		}
	}
}
