// Package telemetry provides the logging, metrics and tracing
// abstractions used throughout the gateway. Components depend on the
// interfaces, never on a concrete backend, so tests can substitute
// no-op implementations and production can wire Clue/OTEL.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the gateway.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer and gauge helpers.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so callers remain agnostic of the
// underlying tracing provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// OperationEvent is the structured shape logged and measured around
// every significant operation (tool dispatch, backend forward,
// routing refresh, ingress dispatch). Components build one once the
// operation has finished, carrying its error if it failed.
type OperationEvent struct {
	Operation string
	Backend   string
	Role      string
	DurationMs int64
	Err       error
	Extra     map[string]any
}

// Record logs and measures an OperationEvent through logger and
// metrics, as an error when ev.Err is set and as a debug completion
// otherwise.
func Record(ctx context.Context, log Logger, met Metrics, ev OperationEvent) {
	tags := []string{"operation", ev.Operation}
	if ev.Backend != "" {
		tags = append(tags, "backend", ev.Backend)
	}
	if ev.Role != "" {
		tags = append(tags, "role", ev.Role)
	}
	met.RecordTimer("gateway.operation.duration", time.Duration(ev.DurationMs)*time.Millisecond, tags...)
	kv := []any{"operation", ev.Operation, "duration_ms", ev.DurationMs}
	if ev.Backend != "" {
		kv = append(kv, "backend", ev.Backend)
	}
	if ev.Role != "" {
		kv = append(kv, "role", ev.Role)
	}
	for k, v := range ev.Extra {
		kv = append(kv, k, v)
	}
	if ev.Err != nil {
		met.IncCounter("gateway.operation.errors", 1, tags...)
		kv = append(kv, "error", ev.Err.Error())
		log.Error(ctx, "operation failed", kv...)
		return
	}
	met.IncCounter("gateway.operation.success", 1, tags...)
	log.Debug(ctx, "operation completed", kv...)
}
