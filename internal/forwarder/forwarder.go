// Package forwarder implements the downstream forwarder: a JSON-RPC
// client that calls a backend's "/mcp" endpoint with a "tools/call"
// request and returns its result, handling timeouts, retries, rate
// limiting and authentication failure the way the rest of the
// gateway's error-kind contract expects.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/jsonrpc"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Forwarder calls tools on downstream backends over JSON-RPC.
type Forwarder struct {
	http       *http.Client
	maxRetries int
	log        telemetry.Logger
	met        telemetry.Metrics
	tracer     telemetry.Tracer
	limiter    *rate.Limiter
}

// New constructs a Forwarder. maxRetries bounds retry attempts for
// 5xx responses, timeouts and rate-limit back-off.
func New(timeout time.Duration, maxRetries int, log telemetry.Logger, met telemetry.Metrics, tracer telemetry.Tracer) *Forwarder {
	return &Forwarder{
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
		met:        met,
		tracer:     tracer,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}
}

// CallTool invokes tool on the backend reachable at endpoint, passing
// arguments as the JSON-RPC params.arguments payload, and returns the
// raw result bytes on success.
func (f *Forwarder) CallTool(ctx context.Context, endpoint, tool string, arguments json.RawMessage) (json.RawMessage, error) {
	ctx, span := f.tracer.Start(ctx, "forwarder.call_tool")
	defer span.End()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
		result, retryAfter, err := f.attempt(ctx, endpoint, tool, arguments)
		if err == nil {
			telemetry.Record(ctx, f.log, f.met, telemetry.OperationEvent{
				Operation: "forwarder.call_tool", Backend: endpoint,
				DurationMs: time.Since(start).Milliseconds(),
			})
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == f.maxRetries {
			break
		}
		wait := backoffFor(attempt)
		if retryAfter > 0 {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = f.maxRetries
		case <-time.After(wait):
		}
	}
	span.RecordError(lastErr)
	telemetry.Record(ctx, f.log, f.met, telemetry.OperationEvent{
		Operation: "forwarder.call_tool", Backend: endpoint,
		DurationMs: time.Since(start).Milliseconds(), Err: lastErr,
	})
	return nil, lastErr
}

func backoffFor(attempt int) time.Duration {
	if attempt < len(backoffSchedule) {
		return backoffSchedule[attempt]
	}
	return backoffSchedule[len(backoffSchedule)-1]
}

type retryableError struct{ err error }

func (r retryableError) Error() string { return r.err.Error() }
func (r retryableError) Unwrap() error { return r.err }

func isRetryable(err error) bool {
	_, ok := err.(retryableError)
	return ok
}

func (f *Forwarder) attempt(ctx context.Context, endpoint, tool string, arguments json.RawMessage) (json.RawMessage, time.Duration, error) {
	payload := jsonrpc.Request{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params:  jsonrpc.CallParams{Name: tool, Arguments: arguments},
		ID:      json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("gw-%d", time.Now().UnixMilli()))),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, 0, retryableError{fmt.Errorf("%s unreachable: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, retryableError{fmt.Errorf("rate limited by %s", endpoint)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("authentication failed calling %s", endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, fmt.Errorf("%s: tool %q not found", endpoint, tool)
	case resp.StatusCode/100 == 5:
		return nil, 0, retryableError{fmt.Errorf("%s returned %d", endpoint, resp.StatusCode)}
	case resp.StatusCode/100 != 2:
		return nil, 0, fmt.Errorf("%s returned %d", endpoint, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, retryableError{fmt.Errorf("read response from %s: %w", endpoint, err)}
	}
	var rpcResp jsonrpc.Response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, 0, fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	if rpcResp.Error != nil {
		return nil, 0, fmt.Errorf("%s: %s", endpoint, rpcResp.Error.Message)
	}
	return rpcResp.Result, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
