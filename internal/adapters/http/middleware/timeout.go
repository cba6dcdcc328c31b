package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// Timeout returns middleware that puts a deadline on the request context.
// Handlers run on the request goroutine and must honour ctx cancellation;
// mesh analysis and storage calls do. If the deadline passed and the handler
// wrote nothing, a 504 TIMEOUT envelope is sent.
//
// Routes in skipRoutes (gin route templates, e.g. "/api/v1/quotes/upload")
// run without a deadline.
func Timeout(timeout time.Duration, skipRoutes ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipRoutes))
	for _, r := range skipRoutes {
		skip[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok || timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Writer.Written() {
			return
		}

		logging.FromContext(ctx).Warn("request timeout",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Duration("timeout", timeout),
		)

		errResp := dto.NewErrorResponse(dto.ErrorCodeTimeout, "request timeout exceeded").
			WithTraceID(dto.GetTraceID(c))
		c.AbortWithStatusJSON(dto.HTTPStatusFromCode(dto.ErrorCodeTimeout), errResp)
	}
}
