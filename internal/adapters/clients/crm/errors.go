package crm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/clients"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
)

// maxErrorBody caps how much of a rejection body is read for its message.
const maxErrorBody = 4 << 10

// errorResponse is the rejection body of a webhook receiver. Receivers use
// either a nested error object or flat code/message fields.
type errorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *errorResponse) message() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}

	return e.Message
}

// parseErrorResponse returns nil when body is empty or not JSON.
func parseErrorResponse(body io.Reader) *errorResponse {
	if body == nil {
		return nil
	}

	var resp errorResponse
	if err := json.NewDecoder(io.LimitReader(body, maxErrorBody)).Decode(&resp); err != nil {
		return nil
	}

	if resp.Error.Code == "" && resp.Code == "" && resp.message() == "" {
		return nil
	}

	return &resp
}

// mapHTTPError translates a failed delivery into a domain error. Receiver
// outages and client-level failures become UnavailableError; a payload the
// receiver refuses becomes ValidationError.
func mapHTTPError(resp *http.Response, clientErr error, service string) error {
	if clientErr != nil {
		switch {
		case errors.Is(clientErr, clients.ErrCircuitOpen):
			return domain.NewUnavailableError(service, "circuit breaker open")
		case errors.Is(clientErr, clients.ErrMaxRetriesExceeded):
			return domain.NewUnavailableError(service, "max retries exceeded")
		default:
			return domain.NewUnavailableError(service, clientErr.Error())
		}
	}

	if resp == nil {
		return domain.NewUnavailableError(service, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	message := fmt.Sprintf("webhook rejected with status %d", resp.StatusCode)
	if parsed := parseErrorResponse(resp.Body); parsed != nil && parsed.message() != "" {
		message = parsed.message()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewUnavailableError(service, "webhook credentials rejected")
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewUnavailableError(service, "webhook endpoint not found")
	case resp.StatusCode == http.StatusConflict:
		// Duplicate delivery of an idempotency key the receiver already has.
		return nil
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewUnavailableError(service, message)
	default:
		return domain.NewValidationError("event", message)
	}
}
