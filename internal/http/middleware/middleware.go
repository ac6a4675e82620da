// Package middleware holds gin middleware specific to the API router.
package middleware

import (
	"strconv"
	"time"

	"field_inventory_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer records request latency by route template.
func RequestTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDurationMs.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(float64(time.Since(start).Milliseconds()))
	}
}
