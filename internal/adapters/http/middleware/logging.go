package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// healthPrefix is the path prefix of the probe endpoints.
const healthPrefix = "/-/"

// Logging returns middleware that logs each HTTP request on completion with
// method, route, status, latency and bytes written. The record is emitted
// through the context logger so it carries request_id and correlation_id.
//
// Probe endpoints under /-/ and any path in skipPaths are not logged.
// logger is used when the request context carries no logger.
func Logging(logger *slog.Logger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok || strings.HasPrefix(path, healthPrefix) {
			c.Next()
			return
		}

		start := time.Now()

		c.Next()

		ctxLogger, ok := logging.Lookup(c.Request.Context())
		if !ok {
			ctxLogger = logger
		}

		// Route template keeps quote IDs out of the path cardinality.
		route := c.FullPath()
		if route == "" {
			route = path
		}

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.Int64("latency_ms", latency.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
			slog.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		ctxLogger.LogAttrs(c.Request.Context(), levelForStatus(status), "request completed", attrs...)
	}
}

// levelForStatus chooses the log level for a response status.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
