package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/service"
)

// Metrics records request latency and counts. Unmatched routes are grouped under one
// label so arbitrary paths cannot grow the series set.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
