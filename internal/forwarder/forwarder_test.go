package forwarder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

func newForwarder() *Forwarder {
	return New(2*time.Second, 1, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())
}

func TestCallToolSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"status":"ok"},"id":"1"}`))
	}))
	defer srv.Close()

	f := newForwarder()
	result, err := f.CallTool(context.Background(), srv.URL, "health", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(result))
}

func TestCallToolUnreachableReturnsError(t *testing.T) {
	f := New(100*time.Millisecond, 0, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())
	_, err := f.CallTool(context.Background(), "http://127.0.0.1:1", "health", json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestCallToolAuthFailureNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := New(2*time.Second, 3, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())
	_, err := f.CallTool(context.Background(), srv.URL, "health", json.RawMessage(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "authentication failed")
	require.Equal(t, 1, calls)
}

func TestCallToolRateLimitedRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(2*time.Second, 2, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics(), telemetry.NewNoopTracer())
	_, err := f.CallTool(context.Background(), srv.URL, "health", json.RawMessage(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
	require.Equal(t, 3, calls)
}
