// Package mcpserver implements the ingress JSON-RPC-over-HTTP surface:
// a single "/mcp" endpoint that accepts "tools/call" requests for the
// six role meta-tools, network_status, gateway_health, and the INFER
// analysis tools, validates their arguments, dispatches to the right
// component, and renders the result back as a JSON-RPC response.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/anomaly"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/audit"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/correlate"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/fanout"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/incident"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/intent"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/jsonrpc"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/predict"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/rca"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/risk"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

// roleTools maps every meta-tool/role name to the capability.Role it
// dispatches as. network_status has no single role owner; it fans out
// across the whole routing table rather than a single role's subset.
var roleTools = map[string]capability.Role{
	"observability": capability.RoleObservability,
	"security":      capability.RoleSecurity,
	"automation":    capability.RoleAutomation,
	"configuration": capability.RoleConfiguration,
	"compliance":    capability.RoleCompliance,
	"identity":      capability.RoleIdentity,
}

// Server is the gateway's ingress MCP surface.
type Server struct {
	engine  *fanout.Engine
	table   *capability.Store
	buffer  *ingest.Buffer
	catalog *rca.Catalog
	auditor *audit.Log
	history *incident.History
	schemas *schemaSet

	correlationWindow  time.Duration
	anomalySensitivity float64

	version    string
	listenAddr string
	startTime  time.Time

	log telemetry.Logger
	met telemetry.Metrics
	tr  telemetry.Tracer
}

// Deps bundles every component Server dispatches into.
type Deps struct {
	Engine             *fanout.Engine
	Table              *capability.Store
	Buffer             *ingest.Buffer
	Catalog            *rca.Catalog
	Auditor            *audit.Log
	History            *incident.History
	CorrelationWindow  time.Duration
	AnomalySensitivity float64
	Version            string
	ListenAddr         string
	Logger             telemetry.Logger
	Metrics            telemetry.Metrics
	Tracer             telemetry.Tracer
}

// New constructs a Server. It returns an error only if the tool
// argument schemas fail to compile, which would indicate a packaging
// defect rather than anything environment-dependent.
func New(d Deps) (*Server, error) {
	schemas, err := newSchemaSet()
	if err != nil {
		return nil, fmt.Errorf("mcpserver: %w", err)
	}
	log := d.Logger
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	met := d.Metrics
	if met == nil {
		met = telemetry.NewNoopMetrics()
	}
	tr := d.Tracer
	if tr == nil {
		tr = telemetry.NewNoopTracer()
	}
	history := d.History
	if history == nil {
		history = incident.New(1000)
	}
	version := d.Version
	if version == "" {
		version = "1.0.0"
	}
	return &Server{
		engine:             d.Engine,
		table:              d.Table,
		buffer:             d.Buffer,
		catalog:            d.Catalog,
		auditor:            d.Auditor,
		history:            history,
		schemas:            schemas,
		correlationWindow:  d.CorrelationWindow,
		anomalySensitivity: d.AnomalySensitivity,
		version:            version,
		listenAddr:         d.ListenAddr,
		startTime:          time.Now(),
		log:                log,
		met:                met,
		tr:                 tr,
	}, nil
}

// Handler returns the http.Handler serving the "/mcp" endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		writeError(w, nil, jsonrpc.NewError(jsonrpc.InvalidRequest, "only POST is supported", nil))
		return
	}

	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, jsonrpc.NewError(jsonrpc.ParseError, "malformed request body", err.Error()))
		return
	}
	if req.Method != "tools/call" {
		writeError(w, req.ID, jsonrpc.NewError(jsonrpc.MethodNotFound, "unsupported method "+req.Method, nil))
		return
	}

	var args any
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			writeError(w, req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, "malformed arguments", err.Error()))
			return
		}
	} else {
		args = map[string]any{}
	}
	if err := s.schemas.Validate(req.Params.Name, args); err != nil {
		writeError(w, req.ID, jsonrpc.NewError(jsonrpc.InvalidParams, "argument validation failed", err.Error()))
		return
	}

	ctx, span := s.tr.Start(ctx, "mcpserver.dispatch")
	defer span.End()
	start := time.Now()

	result, dispatchErr := s.dispatch(ctx, req.Params.Name, req.Params.Arguments)
	telemetry.Record(ctx, s.log, s.met, telemetry.OperationEvent{
		Operation: "mcpserver.dispatch", DurationMs: time.Since(start).Milliseconds(), Err: dispatchErr,
		Extra: map[string]any{"tool": req.Params.Name},
	})
	if dispatchErr != nil {
		writeError(w, req.ID, toolError(dispatchErr))
		return
	}
	writeResult(w, req.ID, result)
}

// dispatch resolves a tool name to the component that serves it. Role
// meta-tools, network_status and gateway_health go through the
// fan-out engine (or, for gateway_health, report on it directly); the
// INFER tools run directly against the ingest buffer and analytics
// components.
func (s *Server) dispatch(ctx context.Context, tool string, arguments json.RawMessage) (any, error) {
	if role, ok := roleTools[tool]; ok {
		return s.dispatchRole(ctx, role, arguments)
	}
	switch tool {
	case "network_status":
		return s.dispatchRole(ctx, "", arguments)
	case "gateway_health":
		return s.handleGatewayHealth(), nil
	case "infer_correlate_events":
		return s.handleCorrelate(arguments)
	case "infer_root_cause_analysis":
		return s.handleRootCause(arguments)
	case "infer_detect_anomalies":
		return s.handleAnomalies(arguments)
	case "infer_predict_failures":
		return s.handlePredict(arguments)
	case "infer_get_incident_timeline":
		return s.handleTimeline(arguments)
	case "infer_network_risk_score":
		return s.handleRiskScore(arguments)
	case "help":
		return map[string]string{"help": intent.HelpText()}, nil
	case "classify_intent":
		return s.handleClassifyIntent(arguments)
	default:
		return nil, fmt.Errorf("tool %q is not recognized", tool)
	}
}

// handleClassifyIntent exposes the intent classifier as a directly
// callable tool, letting a front-end client (e.g. a chat bot) resolve
// free text to a category, platform hint and extracted entities
// before deciding which role meta-tool to invoke.
func (s *Server) handleClassifyIntent(arguments json.RawMessage) (any, error) {
	var params struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(arguments, &params)
	return intent.Recognize(params.Text), nil
}

// handleGatewayHealth reports the gateway's own liveness: service
// identity, uptime and a summary of the current routing table, the
// self-reporting eighth meta-tool alongside the six roles and
// network_status.
func (s *Server) handleGatewayHealth() string {
	table := s.table.Load()
	var b strings.Builder
	b.WriteString("## Gateway Health\n\n")
	fmt.Fprintf(&b, "- **Service:** miga_gateway\n")
	fmt.Fprintf(&b, "- **Status:** 🟢 serving\n")
	fmt.Fprintf(&b, "- **Version:** %s\n", s.version)
	fmt.Fprintf(&b, "- **Uptime:** %s\n", time.Since(s.startTime).Round(time.Second))
	if s.listenAddr != "" {
		fmt.Fprintf(&b, "- **Endpoint:** %s\n", s.listenAddr)
	}
	b.WriteString("\n### Routing Table\n\n")
	fmt.Fprintf(&b, "- **Backends:** %d\n", len(table.AllBackends()))
	fmt.Fprintf(&b, "- **Tools:** %d\n", table.ToolCount())
	if !table.LastRefresh().IsZero() {
		fmt.Fprintf(&b, "- **Last refresh:** %s\n", table.LastRefresh().Format(time.RFC3339))
	}
	return b.String()
}

func (s *Server) dispatchRole(ctx context.Context, role capability.Role, arguments json.RawMessage) (any, error) {
	var params struct {
		ToolName  string          `json:"tool_name"`
		Actor     string          `json:"actor"`
		Platforms []string        `json:"platforms"`
		Args      json.RawMessage `json:"arguments"`
	}
	if len(arguments) > 0 {
		_ = json.Unmarshal(arguments, &params)
	}

	if params.ToolName != "" {
		if err := s.gateApproval(ctx, role, params.ToolName, params.Actor); err != nil {
			return nil, err
		}
	}

	outcome, err := s.engine.Query(ctx, role, params.ToolName, params.Platforms, params.Args)
	if err != nil {
		return nil, err
	}
	return renderOutcome(role, outcome), nil
}

// gateApproval records and, for a capability tagged requires-approval,
// blocks a direct-tool dispatch. Gating is keyed on the target
// capability's own RequiresApproval/Destructive flags looked up from
// the routing table, independent of which role meta-tool reached it —
// a destructive tool reachable through more than one role is gated the
// same way no matter which role dispatched it.
func (s *Server) gateApproval(ctx context.Context, role capability.Role, toolName, actor string) error {
	entry, ok := s.table.Load().GetTool(toolName)
	if !ok {
		return nil
	}
	if !entry.Capability.RequiresApproval && !entry.Capability.Destructive {
		return nil
	}
	if actor == "" {
		actor = "unknown"
	}
	if entry.Capability.RequiresApproval {
		_, auditErr := s.auditor.Record(ctx, actor, string(role), toolName, entry.Backend.Name,
			entry.Capability.Destructive, true, "pending_approval", "")
		return auditErr
	}
	_, _ = s.auditor.Record(ctx, actor, string(role), toolName, entry.Backend.Name,
		entry.Capability.Destructive, false, "dispatched", "")
	return nil
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeError(w, id, jsonrpc.NewError(jsonrpc.InternalError, "failed to encode result", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jsonrpc.Response{JSONRPC: "2.0", Result: data, ID: id})
}

func writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *jsonrpc.Error) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jsonrpc.Response{JSONRPC: "2.0", Error: rpcErr, ID: id})
}

// toolError maps a dispatch error into a JSON-RPC error, recognizing
// the approval-required sentinel so its MCP-specific code survives
// the HTTP boundary.
func toolError(err error) *jsonrpc.Error {
	var approvalErr *audit.ApprovalRequired
	if errors.As(err, &approvalErr) {
		return jsonrpc.NewError(jsonrpc.ApprovalRequired, approvalErr.Error(), nil)
	}
	return jsonrpc.NewError(jsonrpc.InternalError, err.Error(), nil)
}

func (s *Server) handleCorrelate(arguments json.RawMessage) (any, error) {
	var params struct {
		WindowSeconds int      `json:"window_seconds"`
		MinSeverity   string   `json:"min_severity"`
		Platforms     []string `json:"platforms"`
	}
	_ = json.Unmarshal(arguments, &params)
	window := s.correlationWindow
	if params.WindowSeconds > 0 {
		window = time.Duration(params.WindowSeconds) * time.Second
	}
	events := s.buffer.Snapshot()
	events = filterEventsBySeverity(events, params.MinSeverity)
	events = filterEventsByPlatforms(events, params.Platforms)
	groups := correlate.Correlate(events, window)
	return map[string]any{"groups": groups, "count": len(groups)}, nil
}

func (s *Server) handleRootCause(arguments json.RawMessage) (any, error) {
	var params struct {
		WindowSeconds int    `json:"window_seconds"`
		CorrelationID string `json:"correlation_id"`
	}
	_ = json.Unmarshal(arguments, &params)
	window := s.correlationWindow
	if params.WindowSeconds > 0 {
		window = time.Duration(params.WindowSeconds) * time.Second
	}
	groups := correlate.Correlate(s.buffer.Snapshot(), window)

	type match struct {
		GroupID        string   `json:"group_id"`
		TemplateID     string   `json:"template_id"`
		Name           string   `json:"name"`
		RootCause      string   `json:"root_cause"`
		Actions        []string `json:"recommended_actions"`
		Confidence     float64  `json:"confidence"`
		MatchedSignals int      `json:"matched_signals"`
	}
	var matches []match
	for _, g := range groups {
		if params.CorrelationID != "" && !strings.HasPrefix(g.ID, params.CorrelationID) {
			continue
		}
		m, ok := s.catalog.MatchRootCause(g)
		if !ok {
			continue
		}
		matches = append(matches, match{
			GroupID: g.ID, TemplateID: m.Template.ID, Name: m.Template.Name, RootCause: m.Template.RootCause,
			Actions: m.Template.RecommendedActions, Confidence: m.Confidence, MatchedSignals: m.MatchedSignals,
		})
		s.history.Record(incident.Entry{
			Timestamp:      time.Now(),
			CorrelationID:  g.ID,
			TemplateID:     m.Template.ID,
			TemplateName:   m.Template.Name,
			RootCause:      m.Template.RootCause,
			Actions:        m.Template.RecommendedActions,
			Confidence:     m.Confidence,
			MatchedSignals: m.MatchedSignals,
			Platforms:      g.Platforms,
			Severity:       g.MaxSeverity,
		})
	}
	return map[string]any{"matches": matches, "count": len(matches)}, nil
}

func (s *Server) handleAnomalies(arguments json.RawMessage) (any, error) {
	var params struct {
		LookbackMinutes int     `json:"lookback_minutes"`
		MinConfidence   float64 `json:"min_confidence"`
	}
	_ = json.Unmarshal(arguments, &params)
	lookback := 60
	if params.LookbackMinutes > 0 {
		lookback = params.LookbackMinutes
	}
	events := s.buffer.Since(time.Now().Add(-time.Duration(lookback) * time.Minute))
	anomalies := anomaly.Detect(events, s.anomalySensitivity)

	if params.MinConfidence > 0 {
		filtered := anomalies[:0:0]
		for _, a := range anomalies {
			if a.Confidence >= params.MinConfidence {
				filtered = append(filtered, a)
			}
		}
		anomalies = filtered
	}
	return map[string]any{"anomalies": anomalies, "count": len(anomalies)}, nil
}

func (s *Server) handlePredict(arguments json.RawMessage) (any, error) {
	var params struct {
		LookbackMinutes int `json:"lookback_minutes"`
	}
	_ = json.Unmarshal(arguments, &params)
	lookback := 60
	if params.LookbackMinutes > 0 {
		lookback = params.LookbackMinutes
	}
	events := s.buffer.Since(time.Now().Add(-time.Duration(lookback) * time.Minute))
	predictions := predict.Predict(events)
	return map[string]any{"predictions": predictions, "count": len(predictions)}, nil
}

// handleTimeline reports the accumulated history of RCA-matched
// incidents, not raw buffered telemetry — the timeline tracks the
// derived "incident" entity created by infer_root_cause_analysis
// matches, bounded by retention in internal/incident.
func (s *Server) handleTimeline(arguments json.RawMessage) (any, error) {
	var params struct {
		Hours       int    `json:"hours"`
		MinSeverity string `json:"min_severity"`
	}
	_ = json.Unmarshal(arguments, &params)
	hours := 24
	if params.Hours > 0 {
		hours = params.Hours
	}
	entries := s.history.Since(time.Now().Add(-time.Duration(hours)*time.Hour), params.MinSeverity)
	return map[string]any{"incidents": entries, "count": len(entries)}, nil
}

func (s *Server) handleRiskScore(arguments json.RawMessage) (any, error) {
	var params struct {
		IncludeAnomalies   *bool `json:"include_anomalies"`
		IncludePredictions *bool `json:"include_predictions"`
	}
	_ = json.Unmarshal(arguments, &params)
	includeAnomalies := params.IncludeAnomalies == nil || *params.IncludeAnomalies
	includePredictions := params.IncludePredictions == nil || *params.IncludePredictions

	// Composed over the last hour of events: event, anomaly and
	// prediction components all share the same 60-minute lookback.
	recent := s.buffer.Since(time.Now().Add(-60 * time.Minute))
	anomalies := anomaly.Detect(s.buffer.Since(time.Now().Add(-60*time.Minute)), s.anomalySensitivity)
	predictions := predict.Predict(s.buffer.Since(time.Now().Add(-60 * time.Minute)))

	score := risk.Compute(risk.Inputs{
		RecentEvents:       recent,
		Anomalies:          anomalies,
		Predictions:        predictions,
		IncludeAnomalies:   includeAnomalies,
		IncludePredictions: includePredictions,
	})
	return score, nil
}
