package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plannivo/finance/pkg/telemetry"
)

// MetricsMiddleware records request counts and latency per route.
func MetricsMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.ObserveAPIRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// classifyErrorForLog returns the error type and code logged for a failed
// request. It never exposes the raw error text of unexpected failures.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
