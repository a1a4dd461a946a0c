// Package fanout implements the role fan-out engine: the six
// role meta-tools plus the gateway's cross-role surfaces either
// dispatch a single named tool directly, or broadcast to every
// already-registered health/overview/status tool reachable by the
// role (or, with no role, by the whole table), in parallel,
// tolerating individual backend failures without cancelling the
// others.
package fanout

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

// broadcastableSubstrings: a registered tool name containing one of
// these is treated as a broadcastable summary tool.
var broadcastableSubstrings = []string{"health", "overview", "status"}

const resultTruncateLen = 500

// Caller is the minimal surface fanout needs from the downstream
// forwarder; kept as an interface so tests can substitute a stub.
type Caller interface {
	CallTool(ctx context.Context, endpoint, tool string, arguments json.RawMessage) (json.RawMessage, error)
}

// Engine dispatches role-scoped tool calls across the routing table.
type Engine struct {
	table  *capability.Store
	caller Caller
	log    telemetry.Logger
	met    telemetry.Metrics
	tracer telemetry.Tracer
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger overrides the engine's logger.
func WithLogger(l telemetry.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMetrics overrides the engine's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(e *Engine) { e.met = m } }

// WithTracer overrides the engine's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// New constructs an Engine over the given routing table store and
// downstream caller.
func New(table *capability.Store, caller Caller, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		caller: caller,
		log:    telemetry.NewNoopLogger(),
		met:    telemetry.NewNoopMetrics(),
		tracer: telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is one backend's outcome from a direct call or a broadcast.
type Result struct {
	Backend string
	Tool    string
	Value   json.RawMessage
	Err     error
}

// Mode names the shape of a Query's Outcome.
type Mode string

const (
	// ModeDirect is a single tool called directly by name.
	ModeDirect Mode = "direct"
	// ModeBroadcast dispatched every broadcastable entry in parallel.
	ModeBroadcast Mode = "broadcast"
	// ModeListing reports entries available for the role/scope with
	// nothing broadcastable among them — a discoverability listing,
	// not a dispatch.
	ModeListing Mode = "listing"
	// ModeEmpty reports that no entries at all serve the role/scope.
	ModeEmpty Mode = "empty"
	// ModeNotFound reports a direct tool_name with no routing entry —
	// a user-readable condition, never a protocol error.
	ModeNotFound Mode = "not_found"
)

// Outcome is the result of a Query. Results is populated for
// ModeDirect/ModeBroadcast; Entries is populated for ModeListing;
// Tool names the requested-but-missing tool for ModeNotFound.
type Outcome struct {
	Mode    Mode
	Tool    string
	Results []Result
	Entries []capability.RoutingEntry
}

// Query dispatches toolName for role. If toolName is supplied, it is
// resolved directly against the routing table and called once; an
// unresolved name (or one not reachable by role) reports
// ModeNotFound rather than an error, since a routing miss is a
// user-readable condition, not a failure (§7: not-found/routing-miss
// is reported as a message, not an error result). Otherwise, Query
// selects every entry reachable by role — every entry in the table
// when role is empty, for cross-role surfaces like network_status —
// optionally restricted to platforms, and broadcasts to the subset of
// those entries whose own already-registered tool name contains
// "health", "overview" or "status". An empty entry set reports
// ModeEmpty; a non-empty entry set with nothing broadcastable reports
// ModeListing so the caller can render a discoverability list instead
// of dispatching anything.
func (e *Engine) Query(ctx context.Context, role capability.Role, toolName string, platforms []string, arguments json.RawMessage) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "fanout.query")
	defer span.End()
	start := time.Now()

	table := e.table.Load()

	if toolName != "" {
		entry, ok := table.GetTool(toolName)
		if !ok || (role != "" && !roleAllows(entry, role)) {
			return Outcome{Mode: ModeNotFound, Tool: toolName}, nil
		}
		result := e.callOne(ctx, entry.Backend.Endpoint, entry.Backend.Name, entry.Tool, arguments)
		telemetry.Record(ctx, e.log, e.met, telemetry.OperationEvent{
			Operation: "fanout.query", Role: string(role), DurationMs: time.Since(start).Milliseconds(), Err: result.Err,
		})
		return Outcome{Mode: ModeDirect, Tool: toolName, Results: []Result{result}}, nil
	}

	var entries []capability.RoutingEntry
	if role == "" {
		entries = table.AllEntries()
	} else {
		entries = table.ToolsForRole(role)
	}
	if len(platforms) > 0 {
		entries = filterPlatforms(entries, platforms)
	}
	if len(entries) == 0 {
		return Outcome{Mode: ModeEmpty}, nil
	}

	broadcastable := filterBroadcastable(entries)
	if len(broadcastable) == 0 {
		return Outcome{Mode: ModeListing, Entries: entries}, nil
	}

	results := e.broadcast(ctx, broadcastable, arguments)
	telemetry.Record(ctx, e.log, e.met, telemetry.OperationEvent{
		Operation: "fanout.query", Role: string(role), DurationMs: time.Since(start).Milliseconds(),
		Extra: map[string]any{"backends": len(results)},
	})
	return Outcome{Mode: ModeBroadcast, Results: results}, nil
}

func roleAllows(entry capability.RoutingEntry, role capability.Role) bool {
	for _, r := range entry.Capability.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// filterPlatforms restricts entries to those served by one of the
// given backend platforms.
func filterPlatforms(entries []capability.RoutingEntry, platforms []string) []capability.RoutingEntry {
	set := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		set[p] = true
	}
	var out []capability.RoutingEntry
	for _, e := range entries {
		if set[e.Backend.Platform] {
			out = append(out, e)
		}
	}
	return out
}

// filterBroadcastable selects entries whose own registered tool name
// already contains a broadcastable substring, deduplicating so a
// backend with more than one matching tool (e.g. a platform-specific
// health tool alongside a secondary overview tool) is only ever
// called once per distinct matching tool.
func filterBroadcastable(entries []capability.RoutingEntry) []capability.RoutingEntry {
	seen := make(map[string]bool, len(entries))
	var out []capability.RoutingEntry
	for _, e := range entries {
		if !isBroadcastable(e.Tool) {
			continue
		}
		key := e.Backend.Name + ":" + e.Tool
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func isBroadcastable(toolName string) bool {
	lower := strings.ToLower(toolName)
	for _, substr := range broadcastableSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

func (e *Engine) callOne(ctx context.Context, endpoint, backend, tool string, arguments json.RawMessage) Result {
	value, err := e.caller.CallTool(ctx, endpoint, tool, arguments)
	return Result{Backend: backend, Tool: tool, Value: value, Err: err}
}

// broadcast fans out every entry's own tool in parallel, gathering
// results with errors — one backend's failure is attached to its own
// Result and never cancels the others.
func (e *Engine) broadcast(ctx context.Context, entries []capability.RoutingEntry, arguments json.RawMessage) []Result {
	results := make([]Result, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry capability.RoutingEntry) {
			defer wg.Done()
			results[i] = e.callOne(ctx, entry.Backend.Endpoint, entry.Backend.Name, entry.Tool, arguments)
		}(i, entry)
	}
	wg.Wait()
	return results
}

// Truncate bounds a rendered result string to resultTruncateLen
// characters, matching the original gateway's fan-out rendering cap.
func Truncate(s string) string {
	if len(s) <= resultTruncateLen {
		return s
	}
	return s[:resultTruncateLen] + "..."
}
