package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackingContext(t *testing.T) {
	base := ContextWithCorrelationID(context.Background(), "corr-upload-1")
	child := ContextWithRequestID(base, "req-7")

	assert.Equal(t, "corr-upload-1", CorrelationIDFromContext(child))
	assert.Equal(t, "req-7", RequestIDFromContext(child))

	assert.Empty(t, RequestIDFromContext(base), "parent is not modified")

	//nolint:staticcheck // nil context is tolerated
	assert.Empty(t, RequestIDFromContext(nil))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestPropagateHeaders(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		wantReq  string
		wantCorr string
	}{
		{
			name: "nothing set",
			ctx:  context.Background(),
		},
		{
			name:    "request only",
			ctx:     ContextWithRequestID(context.Background(), "req-1"),
			wantReq: "req-1",
		},
		{
			name: "both",
			ctx: ContextWithCorrelationID(
				ContextWithRequestID(context.Background(), "req-2"), "corr-2"),
			wantReq:  "req-2",
			wantCorr: "corr-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			PropagateHeaders(tt.ctx, h)

			assert.Equal(t, tt.wantReq, h.Get(HeaderRequestID))
			assert.Equal(t, tt.wantCorr, h.Get(HeaderCorrelationID))

			assert.Equal(t, tt.wantReq != "", len(h.Values(HeaderRequestID)) > 0)
		})
	}
}
