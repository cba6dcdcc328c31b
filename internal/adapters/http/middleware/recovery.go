package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// Recovery returns middleware that recovers from panics.
// The panic is logged with its stack at ERROR level and the client receives
// a 500 INTERNAL_ERROR envelope carrying the trace ID. Apply it first so it
// covers every later handler.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctxLogger, ok := logging.Lookup(c.Request.Context())
			if !ok {
				ctxLogger = logger
			}

			traceID := dto.GetTraceID(c)

			ctxLogger.Error("panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("trace_id", traceID),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}

			errResp := dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred").
				WithTraceID(traceID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
		}()

		c.Next()
	}
}
