package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// retry runs the attempts for one request. It returns the first response
// that is not retryable, or the error of the last attempt.
func (c *Client) retry(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := range c.cfg.Retry.MaxAttempts {
		if attempt > 0 {
			if !rewindable(req) {
				break
			}

			if err := c.pause(ctx, attempt, retryAfter(lastErr), logger); err != nil {
				return nil, err
			}

			if err := rewind(req); err != nil {
				return nil, err
			}
		}

		if c.cfg.AuthFunc != nil {
			c.cfg.AuthFunc(req)
		}

		resp, err := c.http.Do(req.WithContext(ctx))

		again, err := classify(resp, err)
		if !again {
			return resp, err
		}

		logger.Debug("attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		lastErr = err
	}

	return nil, lastErr
}

// classify decides whether an attempt is worth repeating. Retryable
// statuses are drained and turned into a StatusError carrying the
// receiver's Retry-After hint.
func classify(resp *http.Response, err error) (bool, error) {
	if err != nil {
		return isRetryableError(err), err
	}

	if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
		return false, nil
	}

	_ = resp.Body.Close()

	return true, &StatusError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// pause waits out the backoff for attempt, stretched to the receiver's hint
// when that is longer but never past MaxInterval.
func (c *Client) pause(ctx context.Context, attempt int, hint time.Duration, logger *slog.Logger) error {
	wait := c.calculateBackoff(attempt)
	if hint > wait {
		wait = hint
		if limit := c.cfg.Retry.MaxInterval; limit > 0 {
			wait = min(wait, limit)
		}
	}

	logger.Debug("retrying request", slog.Int("attempt", attempt+1), slog.Duration("backoff", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewinding request body: %w", err)
	}

	req.Body = body

	return nil
}

// calculateBackoff returns InitialInterval * Multiplier^attempt, capped at
// MaxInterval and spread by up to JitterFactor either way.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.cfg.Retry
	backoff := float64(r.InitialInterval) * math.Pow(r.Multiplier, float64(attempt))

	if r.MaxInterval > 0 {
		backoff = math.Min(backoff, float64(r.MaxInterval))
	}

	spread := rand.Float64()*2 - 1 //nolint:gosec // jitter only
	backoff += backoff * r.JitterFactor * spread

	return time.Duration(backoff)
}

// isRetryableError reports transport failures worth another attempt:
// timeouts and network errors, but never a cancelled or expired context.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
