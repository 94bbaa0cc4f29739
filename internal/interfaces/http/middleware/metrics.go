package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront/internal/pkg/metrics"
)

// Metrics records request count and latency per matched route
func Metrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// FullPath is the route template, empty for unmatched requests
		recorder.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
