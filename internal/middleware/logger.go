package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/monitor"
	"storefront/pkg/log"
)

// Logger logs every request, records its metrics and wraps it in a span
func Logger(metrics *monitor.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := monitor.StartHTTPSpan(c.Request.Context(), route, c.Request)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		monitor.EndSpan(span, err)
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), latency)

		fields := log.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"request_id": c.GetString(RequestIDKey),
		}
		if traceID := monitor.TraceID(ctx); traceID != "" {
			fields["trace_id"] = traceID
		}
		if caller, ok := GetCaller(c); ok {
			fields["user_id"] = caller.UserID
		}
		if err != nil {
			fields["errors"] = c.Errors.String()
		}

		entry := log.WithFields(fields)
		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request processed")
		}
	}
}
