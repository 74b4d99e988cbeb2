// README: HTTP duration metrics middleware.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"offpeak/internal/observability"
)

// HTTPMetrics records request durations per route template, so path
// parameters do not explode label cardinality.
func HTTPMetrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
