package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/changelog/internal/metrics"
)

const unmatchedRoute = "unmatched"

// PrometheusMiddleware counts requests by route template, tracks how many are
// in flight and observes their duration. A WebSocket upgrade leaves the
// in-flight gauge and the histogram alone, since a feed connection lasts as
// long as the subscriber stays.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		upgrade := c.IsWebsocket()
		if !upgrade {
			metrics.RequestsInFlight.Inc()
			defer metrics.RequestsInFlight.Dec()
		}

		start := time.Now()
		c.Next()

		labels := []string{c.Request.Method, routeLabel(c), strconv.Itoa(c.Writer.Status())}
		metrics.RequestsTotal.WithLabelValues(labels...).Inc()

		if !upgrade && c.Writer.Status() != http.StatusSwitchingProtocols {
			metrics.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		}
	}
}

// routeLabel keeps label cardinality bounded by the registered routes.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}

	return unmatchedRoute
}
