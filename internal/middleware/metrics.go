package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tigertrust/lendgate/internal/pkg/metrics"
)

// MetricsMiddleware observes latency and counts responses per route template.
// Raw paths would leak wallet addresses into label values.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.Responses.WithLabelValues(route, statusClass(c.Writer.Status())).Inc()
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
