// Package clients provides HTTP client adapters for downstream services.
package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client errors represent failures in the HTTP client layer. Callers
// translate them to domain errors.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded is returned after all retry attempts have been
	// exhausted. The last attempt's error is wrapped alongside it.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// CircuitOpenError is returned instead of sending a request while the
// breaker for Service is open. It matches ErrCircuitOpen.
type CircuitOpenError struct {
	Service string
	Until   time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: %v until %s", e.Service, ErrCircuitOpen, e.Until.UTC().Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// StatusError is a retryable HTTP status that persisted through every attempt.
type StatusError struct {
	StatusCode int

	// RetryAfter is the receiver's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d", e.StatusCode)
}

func retryAfter(err error) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.RetryAfter
	}

	return 0
}

// parseRetryAfter reads a Retry-After value in either delta-seconds or
// HTTP-date form. Unparseable and past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}

		return time.Duration(secs) * time.Second
	}

	at, err := http.ParseTime(value)
	if err != nil || !at.After(now) {
		return 0
	}

	return at.Sub(now)
}
