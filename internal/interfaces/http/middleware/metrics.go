package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	prommetrics "github.com/turtacn/KinKeep/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request counts, latency and in-flight requests. Paths are
// the route templates, so member ids do not explode label cardinality.
func Metrics(m *prommetrics.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		method := c.Request.Method
		active := m.HTTPActiveRequests.WithLabelValues(method)
		active.Inc()
		start := time.Now()

		c.Next()

		active.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(method, path, c.Writer.Status(), time.Since(start))
	}
}
