package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, duration)
	}
}

// Timer measures one workflow step
type Timer struct {
	start   time.Time
	metrics *Metrics
	step    string
}

// NewTimer creates a new step timer
func NewTimer(metrics *Metrics, step string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		step:    step,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop() {
	if t.metrics != nil {
		t.metrics.RecordStep(t.step, time.Since(t.start))
	}
}
