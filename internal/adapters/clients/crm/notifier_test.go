package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/print-quote-service/internal/adapters/clients"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
)

var sentAt = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestNotifier(t *testing.T, server *httptest.Server, secret string, attempts int) *Notifier {
	t.Helper()

	client, err := clients.New(&clients.Config{
		BaseURL:     server.URL,
		ServiceName: "crm",
		Timeout:     time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     attempts,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       time.Second,
			HalfOpenLimit: 1,
		},
	})
	require.NoError(t, err)

	return NewNotifier(Config{
		Client:     client,
		Path:       "/webhooks/quotes",
		HealthPath: "/health",
		Secret:     secret,
		Now:        func() time.Time { return sentAt },
		NewID:      func() string { return "evt-1" },
	})
}

func createdEvent() app.QuoteEvent {
	return app.QuoteEvent{
		Type:          app.EventQuoteCreated,
		QuoteID:       "q-1",
		CustomerEmail: "buyer@example.com",
		FileCount:     2,
		Total:         40.65,
		ShippingSize:  "SMALL",
		OccurredAt:    sentAt,
	}
}

func TestNotifier_Publish(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   []byte
		gotPath   string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := newTestNotifier(t, server, "s3cret", 1)

	err := n.Publish(context.Background(), createdEvent())
	require.NoError(t, err)

	assert.Equal(t, "/webhooks/quotes", gotPath)
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, app.EventQuoteCreated, gotHeader.Get(HeaderEventType))
	assert.Equal(t, "evt-1", gotHeader.Get(HeaderIdempotencyKey))
	assert.True(t, Verify([]byte("s3cret"), gotBody, gotHeader.Get(HeaderSignature)))

	var env struct {
		ID     string         `json:"id"`
		Type   string         `json:"type"`
		Source string         `json:"source"`
		SentAt time.Time      `json:"sent_at"`
		Data   app.QuoteEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &env))
	assert.Equal(t, "evt-1", env.ID)
	assert.Equal(t, app.EventQuoteCreated, env.Type)
	assert.Equal(t, "crm", env.Source)
	assert.True(t, sentAt.Equal(env.SentAt))
	assert.Equal(t, "q-1", env.Data.QuoteID)
	assert.InDelta(t, 40.65, env.Data.Total, 1e-9)
}

func TestNotifier_PublishUnsignedWithoutSecret(t *testing.T) {
	var signature atomic.Value
	signature.Store("unset")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature.Store(r.Header.Get(HeaderSignature))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(t, server, "", 1)

	require.NoError(t, n.Publish(context.Background(), createdEvent()))
	assert.Empty(t, signature.Load())
}

func TestNotifier_PublishRetriesWithSameKey(t *testing.T) {
	var (
		calls atomic.Int32
		keys  = make(chan string, 3)
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get(HeaderIdempotencyKey)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(t, server, "s3cret", 3)

	require.NoError(t, n.Publish(context.Background(), createdEvent()))
	assert.Equal(t, int32(3), calls.Load())

	close(keys)
	for key := range keys {
		assert.Equal(t, "evt-1", key)
	}
}

func TestNotifier_PublishErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		check     func(error) bool
		wantInMsg string
	}{
		{
			name:      "server error is unavailable",
			status:    http.StatusInternalServerError,
			check:     domain.IsUnavailable,
			wantInMsg: "crm",
		},
		{
			name:      "credentials rejected",
			status:    http.StatusUnauthorized,
			check:     domain.IsUnavailable,
			wantInMsg: "credentials rejected",
		},
		{
			name:      "missing endpoint",
			status:    http.StatusNotFound,
			check:     domain.IsUnavailable,
			wantInMsg: "endpoint not found",
		},
		{
			name:      "payload refused with nested message",
			status:    http.StatusUnprocessableEntity,
			body:      `{"error":{"code":"BAD_EVENT","message":"unknown event type"}}`,
			check:     domain.IsValidation,
			wantInMsg: "unknown event type",
		},
		{
			name:      "payload refused with flat message",
			status:    http.StatusBadRequest,
			body:      `{"code":"BAD","message":"missing quote id"}`,
			check:     domain.IsValidation,
			wantInMsg: "missing quote id",
		},
		{
			name:      "payload refused without body",
			status:    http.StatusBadRequest,
			check:     domain.IsValidation,
			wantInMsg: "status 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			n := newTestNotifier(t, server, "", 1)

			err := n.Publish(context.Background(), createdEvent())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Contains(t, err.Error(), tt.wantInMsg)
		})
	}
}

func TestNotifier_PublishDuplicateIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	n := newTestNotifier(t, server, "", 1)

	assert.NoError(t, n.Publish(context.Background(), createdEvent()))
}

func TestNotifier_PublishUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := clients.New(&clients.Config{BaseURL: url, ServiceName: "crm", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	n := NewNotifier(Config{Client: client, Path: "/webhooks/quotes"})

	err = n.Publish(context.Background(), createdEvent())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}

func TestNotifier_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "healthy", status: http.StatusOK},
		{name: "degraded", status: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			n := newTestNotifier(t, server, "", 1)

			assert.Equal(t, "crm", n.Name())

			err := n.Check(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), "crm"))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNotifier_CheckWithoutHealthPath(t *testing.T) {
	client, err := clients.New(&clients.Config{BaseURL: "http://127.0.0.1:1", ServiceName: "crm"})
	require.NoError(t, err)

	n := NewNotifier(Config{Client: client})

	assert.NoError(t, n.Check(context.Background()))
}

func TestNewNotifier_PanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() { NewNotifier(Config{}) })
}

func TestSignVerify(t *testing.T) {
	secret := []byte("k")
	body := []byte(`{"id":"evt-1"}`)

	sig := Sign(secret, body)

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
	assert.True(t, Verify(secret, body, sig))
	assert.False(t, Verify([]byte("other"), body, sig))
	assert.False(t, Verify(secret, []byte(`{"id":"evt-2"}`), sig))
}
