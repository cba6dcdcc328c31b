package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/middleware"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/print-quote-service/internal/adapters/clients"

	defaultTimeout = 30 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// Config describes one downstream service.
type Config struct {
	BaseURL     string
	ServiceName string

	// Timeout bounds a single attempt. Retries and backoff come on top.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc, when set, runs before every attempt so time-bound
	// credentials are refreshed on retries.
	AuthFunc func(*http.Request)

	Logger *slog.Logger
}

// Client sends requests to a single downstream service. Calls are gated by
// a circuit breaker and retried with jittered exponential backoff on
// transport errors, 5xx and 429. Request and correlation IDs and the trace
// context travel with every attempt.
type Client struct {
	http        *http.Client
	baseURL     string
	serviceName string
	cfg         *Config
	logger      *slog.Logger
	cb          *CircuitBreaker
	tracer      trace.Tracer
	metrics     instruments
}

// New builds a client for cfg. Zero timeouts and attempt counts fall back
// to a 30s attempt and no retries.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cfg.Retry.MaxAttempts = max(cfg.Retry.MaxAttempts, 1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", cfg.ServiceName),
	)

	metrics, err := newInstruments(otel.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout, Transport: newTransport(cfg.Transport)},
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName: cfg.ServiceName,
		cfg:         cfg,
		logger:      logger,
		cb:          cb,
		tracer:      otel.Tracer(instrumentationName),
		metrics:     metrics,
	}, nil
}

func newTransport(cfg config.TransportConfig) *http.Transport {
	orDefault := func(v, def int) int {
		if v > 0 {
			return v
		}

		return def
	}

	idle := cfg.IdleConnTimeout
	if idle <= 0 {
		idle = defaultIdleConnTimeout
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        orDefault(cfg.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost: orDefault(cfg.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
		IdleConnTimeout:     idle,
	}
}

// Get sends a GET to path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	return c.Do(ctx, req)
}

// Post sends body as JSON to path with the extra header values. The body is
// held in memory so every attempt resends it in full.
func (c *Client) Post(ctx context.Context, path string, body []byte, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("Content-Type", "application/json")

	return c.Do(ctx, req)
}

// Do sends req through the breaker and the retry loop. A request whose body
// cannot be rewound (no GetBody) gets a single attempt.
//
// Failures wrap ErrMaxRetriesExceeded around the last attempt's error, except
// when the caller's own context ends, which is returned as is. Responses
// with any other status, 4xx included, are returned to the caller.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if !c.cb.Allow() {
		until := c.cb.Snapshot().OpenUntil
		c.metrics.record(ctx, c.serviceName, req.Method, 0, time.Since(start), "circuit_open")
		logger.Warn("request blocked by circuit breaker", slog.Time("open_until", until))

		return nil, &CircuitOpenError{Service: c.serviceName, Until: until}
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.serviceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("peer.service", c.serviceName),
		),
	)
	defer span.End()

	middleware.PropagateHeaders(ctx, req.Header)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.retry(ctx, req, logger)
	elapsed := time.Since(start)

	if err != nil {
		return nil, c.failed(ctx, req, span, logger, elapsed, err)
	}

	c.cb.RecordSuccess()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, resp.Status)
	}

	c.metrics.record(ctx, c.serviceName, req.Method, resp.StatusCode, elapsed, statusClass(resp.StatusCode))
	logger.Debug("request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", elapsed),
	)

	return resp, nil
}

// failed records a request that produced no usable response. A caller that
// cancelled is not held against the downstream; a caller deadline is, since
// it usually means the service was too slow.
func (c *Client) failed(
	ctx context.Context, req *http.Request, span trace.Span, logger *slog.Logger, elapsed time.Duration, err error,
) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			c.cb.RecordFailure()
		}

		c.metrics.record(ctx, c.serviceName, req.Method, 0, elapsed, "context_canceled")
		logger.Warn("request abandoned", slog.Duration("duration", elapsed), slog.Any("error", err))

		return fmt.Errorf("%s request: %w", c.serviceName, ctxErr)
	}

	c.cb.RecordFailure()
	c.metrics.record(ctx, c.serviceName, req.Method, 0, elapsed, "error")
	logger.Error("request failed", slog.Duration("duration", elapsed), slog.Any("error", err))

	return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
}

// CircuitState reports the breaker state.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

// ServiceName reports the downstream name used in logs, spans and errors.
func (c *Client) ServiceName() string {
	return c.serviceName
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// instruments are the OpenTelemetry client request metrics.
type instruments struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newInstruments(meter metric.Meter) (instruments, error) {
	duration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of downstream HTTP requests, retries included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("creating duration metric: %w", err)
	}

	total, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Downstream HTTP requests by result"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("creating request counter: %w", err)
	}

	return instruments{duration: duration, total: total}, nil
}

func (in instruments) record(
	ctx context.Context, service, method string, status int, elapsed time.Duration, result string,
) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", service),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	opt := metric.WithAttributes(attrs...)
	in.duration.Record(ctx, elapsed.Seconds(), opt)
	in.total.Add(ctx, 1, opt)
}
