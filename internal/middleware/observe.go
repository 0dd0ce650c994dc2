package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/monitor"
)

// Observe records request metrics and opens a server span per request.
// Both collaborators may be nil.
func Observe(metrics *monitor.Metrics, tracer *monitor.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.StartHTTPSpan(c.Request.Context(), c.Request.Method, route, c.Request)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 500 && len(c.Errors) > 0 {
			tracer.RecordError(span, c.Errors.Last())
		}
		metrics.ObserveHTTP(c.Request.Method, route, status, time.Since(start))
	}
}
