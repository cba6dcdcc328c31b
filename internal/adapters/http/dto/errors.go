// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

// traceIDKey is the gin context key middleware may use to pin a trace ID.
const traceIDKey = "trace_id"

// ErrorResponse is the standard error envelope for all error responses.
// It provides a consistent structure for API error handling.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "GONE").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	// For validation errors, this contains field-level error messages.
	Details map[string]string `json:"details,omitempty"`
}

// Error codes for machine-readable error identification.
const (
	// ErrorCodeNotFound indicates the requested resource was not found.
	ErrorCodeNotFound = "NOT_FOUND"

	// ErrorCodeConflict indicates a state conflict (duplicate, version mismatch).
	ErrorCodeConflict = "CONFLICT"

	// ErrorCodeValidation indicates request validation failed.
	ErrorCodeValidation = "VALIDATION_ERROR"

	// ErrorCodeProcessing indicates an uploaded file could not be processed.
	ErrorCodeProcessing = "PROCESSING_ERROR"

	// ErrorCodeGone indicates the resource existed but has expired.
	ErrorCodeGone = "GONE"

	// ErrorCodePayloadTooLarge indicates the request body exceeded the limit.
	ErrorCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"

	// ErrorCodeUnavailable indicates a dependency is unavailable.
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"

	// ErrorCodeInternal indicates an internal server error.
	ErrorCodeInternal = "INTERNAL_ERROR"

	// ErrorCodeTimeout indicates the request timed out.
	ErrorCodeTimeout = "TIMEOUT"

	// ErrorCodeBadRequest indicates the request was malformed.
	ErrorCodeBadRequest = "BAD_REQUEST"
)

// NewErrorResponse creates a new error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithDetails creates an error response with additional details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeProcessing:
		return http.StatusUnprocessableEntity
	case ErrorCodeGone:
		return http.StatusGone
	case ErrorCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetTraceID returns the trace ID for the request: an explicit gin value
// first, then the active OpenTelemetry span, then the X-Request-ID header.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(traceIDKey); ok {
		id, _ := v.(string)
		return id
	}

	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return c.GetHeader("X-Request-ID")
}

// MapDomainError maps a domain error to an HTTP status code and error response.
// The message comes from the innermost typed domain error so that pipeline
// wrapping ("analyze failed: ...") never reaches the client.
// Unknown errors are mapped to 500 Internal Server Error with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	var (
		tooLargeErr    *http.MaxBytesError
		validationErr  *domain.ValidationError
		processingErr  *domain.ProcessingError
		notFoundErr    *domain.NotFoundError
		goneErr        *domain.GoneError
		conflictErr    *domain.ConflictError
		unavailableErr *domain.UnavailableError
	)

	switch {
	case errors.As(err, &validationErr):
		resp := NewErrorResponse(ErrorCodeValidation, validationErr.Message)
		if validationErr.Field != "" {
			resp.Error.Details = map[string]string{
				validationErr.Field: validationErr.Message,
			}
		}

		return http.StatusBadRequest, resp

	case errors.As(err, &processingErr):
		return http.StatusUnprocessableEntity, NewErrorResponse(ErrorCodeProcessing, processingMessage(processingErr))

	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, notFoundErr.Error())

	case errors.As(err, &goneErr):
		return http.StatusGone, NewErrorResponse(ErrorCodeGone, goneErr.Error())

	case errors.As(err, &conflictErr):
		return http.StatusConflict, NewErrorResponse(ErrorCodeConflict, conflictErr.Error())

	case errors.As(err, &unavailableErr):
		// Dependency names stay in the logs.
		return http.StatusServiceUnavailable, NewErrorResponse(
			ErrorCodeUnavailable,
			"service temporarily unavailable",
		)

	// Bare sentinels wrapped without a typed error.
	case domain.IsValidation(err):
		return http.StatusBadRequest, NewErrorResponse(ErrorCodeValidation, err.Error())
	case domain.IsProcessing(err):
		return http.StatusUnprocessableEntity, NewErrorResponse(ErrorCodeProcessing, err.Error())
	case domain.IsNotFound(err):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())
	case domain.IsGone(err):
		return http.StatusGone, NewErrorResponse(ErrorCodeGone, err.Error())
	case domain.IsConflict(err):
		return http.StatusConflict, NewErrorResponse(ErrorCodeConflict, err.Error())
	case domain.IsUnavailable(err):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodeUnavailable, "service temporarily unavailable")

	// Transport-level failures surfacing from request handling.
	case errors.As(err, &tooLargeErr):
		return http.StatusRequestEntityTooLarge, NewErrorResponse(
			ErrorCodePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLargeErr.Limit),
		)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, NewErrorResponse(ErrorCodeTimeout, "request timeout exceeded")

	default:
		// Unknown errors get a generic message to avoid leaking internals
		return http.StatusInternalServerError, NewErrorResponse(
			ErrorCodeInternal,
			"an internal error occurred",
		)
	}
}

// HandleError writes the mapped error response for err, stamped with the
// request's trace ID. Internal and unavailable errors are logged in full.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	switch {
	case status >= http.StatusInternalServerError:
		logging.FromContext(c.Request.Context()).Error("request failed",
			"error", err.Error(),
			"status", status,
			"trace_id", resp.TraceID,
		)
	case status == http.StatusUnprocessableEntity:
		// The client only sees the message; the cause may name staged paths.
		logging.FromContext(c.Request.Context()).Warn("mesh processing failed",
			"error", err.Error(),
			"trace_id", resp.TraceID,
		)
	}

	c.JSON(status, resp)
}

// processingMessage joins the messages of nested processing errors. Causes
// from outside the domain, such as file system errors, are left out.
func processingMessage(pe *domain.ProcessingError) string {
	parts := []string{pe.Message}

	var inner *domain.ProcessingError
	for cause := pe.Cause; errors.As(cause, &inner); cause = inner.Cause {
		parts = append(parts, inner.Message)
	}

	return strings.Join(parts, ": ")
}
