package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware that records request metrics
// for the glue endpoints.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, duration)
	}
}

// Timer measures an upstream call and records it on Stop.
type Timer struct {
	start   time.Time
	metrics *Metrics
	target  string
}

// NewTimer starts a timer for an upstream target.
func NewTimer(metrics *Metrics, target string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		target:  target,
	}
}

// Stop records the elapsed duration with the given call status.
func (t *Timer) Stop(status string) {
	t.metrics.RecordUpstreamCall(t.target, status, time.Since(t.start))
}
