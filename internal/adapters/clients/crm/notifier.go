// Package crm delivers quote lifecycle events to a CRM webhook.
// The receiving system is external; this package only owns the wire format.
package crm

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/clients"
	"github.com/jsamuelsen/print-quote-service/internal/platform/logging"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// Webhook headers.
const (
	HeaderEventType      = "X-Event-Type"
	HeaderSignature      = "X-Webhook-Signature"
	HeaderIdempotencyKey = "Idempotency-Key"
)

var (
	_ ports.EventPublisher = (*Notifier)(nil)
	_ ports.HealthChecker  = (*Notifier)(nil)
)

// Config contains configuration for the notifier.
type Config struct {
	// Client is the HTTP client, with BaseURL set to the CRM.
	Client *clients.Client

	// Path is the webhook path, e.g. "/webhooks/quotes".
	Path string

	// HealthPath is probed by Check. Empty reports healthy without a request.
	HealthPath string

	// Secret signs each body with HMAC-SHA256. Empty sends unsigned.
	Secret string

	Logger *slog.Logger

	// Now and NewID default to time.Now and uuid v4.
	Now   func() time.Time
	NewID func() string
}

// Notifier implements ports.EventPublisher by POSTing events as JSON.
type Notifier struct {
	client     *clients.Client
	path       string
	healthPath string
	secret     []byte
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// envelope is the webhook body. ID is stable across retries so the receiver
// can drop duplicates.
type envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"sent_at"`
	Data       any       `json:"data"`
}

// NewNotifier creates a CRM notifier. Panics if Client is nil.
func NewNotifier(cfg Config) *Notifier {
	if cfg.Client == nil {
		panic("crm.Notifier: Client is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Notifier{
		client:     cfg.Client,
		path:       cfg.Path,
		healthPath: cfg.HealthPath,
		secret:     []byte(cfg.Secret),
		logger:     cfg.Logger.With(slog.String("component", "crm_notifier")),
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
}

// Publish delivers one event. Failures are returned as domain errors;
// receiver outages are domain.ErrUnavailable.
func (n *Notifier) Publish(ctx context.Context, event ports.Event) error {
	env := envelope{
		ID:         n.newID(),
		Type:       event.EventType(),
		Source:     n.client.ServiceName(),
		OccurredAt: n.now().UTC(),
		Data:       event.Payload(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", env.Type, err)
	}

	header := http.Header{}
	header.Set(HeaderEventType, env.Type)
	header.Set(HeaderIdempotencyKey, env.ID)

	if len(n.secret) > 0 {
		header.Set(HeaderSignature, Sign(n.secret, body))
	}

	logger := logging.FromContext(ctx)
	logger.Log(ctx, logging.LevelTrace, "delivering webhook",
		slog.String("event_type", env.Type),
		slog.String("event_id", env.ID),
		slog.Int("bytes", len(body)),
	)

	resp, err := n.client.Post(ctx, n.path, body, header)
	if err != nil {
		return mapHTTPError(nil, err, n.client.ServiceName())
	}
	defer func() { _ = resp.Body.Close() }()

	if err := mapHTTPError(resp, nil, n.client.ServiceName()); err != nil {
		logger.WarnContext(ctx, "webhook rejected",
			slog.String("event_type", env.Type),
			slog.Int("status", resp.StatusCode),
		)

		return err
	}

	n.logger.DebugContext(ctx, "webhook delivered",
		slog.String("event_type", env.Type),
		slog.String("event_id", env.ID),
		slog.Int("status", resp.StatusCode),
	)

	return nil
}

// Sign returns the signature header value for body: "sha256=" followed by
// the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Name implements ports.HealthChecker.
func (n *Notifier) Name() string {
	return n.client.ServiceName()
}

// Check implements ports.HealthChecker by probing the CRM health path.
func (n *Notifier) Check(ctx context.Context) error {
	if n.healthPath == "" {
		return nil
	}

	resp, err := n.client.Get(ctx, n.healthPath)
	if err != nil {
		return fmt.Errorf("%s health check: %w", n.client.ServiceName(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s health returned status %d", n.client.ServiceName(), resp.StatusCode)
	}

	return nil
}
