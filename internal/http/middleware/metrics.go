package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/observability"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// probing random URLs cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics records Prometheus request metrics, labelled by the registered
// route template (/api/v1/commitments/:id) rather than the raw URL.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		done := observability.TrackInflight()
		defer done()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		observability.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start), c.Writer.Size())
	}
}
