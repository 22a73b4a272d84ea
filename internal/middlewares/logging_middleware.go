package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"dataportal/internal/logger"
)

// RequestLogger logs one line per request.
func RequestLogger(lggr logger.Logger) gin.HandlerFunc {
	lggr = lggr.Named("HTTP")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			lggr.Errorw("Request failed", kv...)
		case status >= 400:
			lggr.Warnw("Request rejected", kv...)
		default:
			lggr.Infow("Request served", kv...)
		}
	}
}
