package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/audit"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/bus"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/fanout"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/jsonrpc"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/rca"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

type stubCaller struct{}

func (stubCaller) CallTool(ctx context.Context, endpoint, tool string, arguments json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

func newTestServer(t *testing.T) (*Server, *capability.Store) {
	t.Helper()
	table := capability.NewStore()
	table.Swap(capability.Build([]capability.BackendRecord{
		{
			Name: "meraki_mcp", Platform: "meraki", Endpoint: "http://meraki:8002",
			Roles: []capability.Role{capability.RoleObservability},
			Capabilities: []capability.Capability{
				{Name: "meraki_health", Roles: []capability.Role{capability.RoleObservability}},
			},
		},
		{
			Name: "ise_mcp", Platform: "ise", Endpoint: "http://ise:8011",
			Roles: []capability.Role{capability.RoleAutomation},
			Capabilities: []capability.Capability{
				{Name: "quarantine_endpoint", Roles: []capability.Role{capability.RoleAutomation}, RequiresApproval: true, Destructive: true},
				{Name: "restart_device", Roles: []capability.Role{capability.RoleAutomation}},
			},
		},
		{
			Name: "security_cloud_control_mcp", Platform: "security_cloud_control", Endpoint: "http://secc:8013",
			Roles: []capability.Role{capability.RoleSecurity},
			Capabilities: []capability.Capability{
				{Name: "block_ip", Roles: []capability.Role{capability.RoleSecurity}, RequiresApproval: true, Destructive: true},
				{Name: "firewall_policy_status", Roles: []capability.Role{capability.RoleSecurity}},
			},
		},
	}, time.Now()))

	engine := fanout.New(table, stubCaller{})
	buffer := ingest.New(10000, 5000)
	catalog, err := rca.LoadCatalog("../../config/rca_templates.yaml")
	require.NoError(t, err)
	b := bus.New("", "", 0, "miga", telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
	auditor := audit.New(audit.NewMemoryStore(), b)

	s, err := New(Deps{
		Engine:             engine,
		Table:              table,
		Buffer:             buffer,
		Catalog:            catalog,
		Auditor:            auditor,
		CorrelationWindow:  300 * time.Second,
		AnomalySensitivity: 0.90,
		Version:            "test",
		ListenAddr:         ":8000",
	})
	require.NoError(t, err)
	return s, table
}

func doCall(t *testing.T, srv *Server, tool string, arguments any) jsonrpc.Response {
	t.Helper()
	argBytes, err := json.Marshal(arguments)
	require.NoError(t, err)
	req := jsonrpc.Request{JSONRPC: "2.0", Method: "tools/call", Params: jsonrpc.CallParams{Name: tool, Arguments: argBytes}, ID: json.RawMessage(`"1"`)}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(string(body)))
	srv.Handler().ServeHTTP(rr, httpReq)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func resultString(t *testing.T, resp jsonrpc.Response) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(resp.Result, &s))
	return s
}

func TestObservabilityDispatchesToDirectTool(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "observability", map[string]any{"tool_name": "meraki_health"})
	require.Nil(t, resp.Error)
	require.Contains(t, resultString(t, resp), `"ok": true`)
}

func TestObservabilityUnknownToolIsNotFoundMessageNotError(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "observability", map[string]any{"tool_name": "nonexistent_tool"})
	require.Nil(t, resp.Error)
	require.True(t, strings.HasPrefix(resultString(t, resp), "❌"))
}

func TestAutomationRequiringApprovalIsRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "automation", map[string]any{"tool_name": "quarantine_endpoint", "actor": "operator"})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.ApprovalRequired, resp.Error.Code)
}

func TestAutomationWithoutApprovalDispatches(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "automation", map[string]any{"tool_name": "restart_device", "actor": "operator"})
	require.Nil(t, resp.Error)
}

// The approval gate is tied to the capability's own RequiresApproval
// flag, not to which role meta-tool reached it: a destructive tool
// tagged "security" (not "automation") must still be gated.
func TestApprovalGateFiresRegardlessOfRole(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "security", map[string]any{"tool_name": "block_ip", "actor": "operator"})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.ApprovalRequired, resp.Error.Code)
}

func TestSecurityBroadcastDispatchesBroadcastableTool(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "security", map[string]any{})
	require.Nil(t, resp.Error)
	body := resultString(t, resp)
	require.Contains(t, body, "Cross-Platform Summary")
	require.Contains(t, body, "firewall_policy_status")
}

func TestAutomationListingWhenNothingBroadcastable(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "automation", map[string]any{})
	require.Nil(t, resp.Error)
	body := resultString(t, resp)
	require.Contains(t, body, "Available Tools")
	require.Contains(t, body, "quarantine_endpoint")
	require.Contains(t, body, "🔒")
}

func TestNetworkStatusBroadcastsAcrossAllBackends(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "network_status", map[string]any{})
	require.Nil(t, resp.Error)
	body := resultString(t, resp)
	require.Contains(t, body, "Network Status")
	require.Contains(t, body, "meraki_health")
	require.Contains(t, body, "firewall_policy_status")
}

func TestNetworkStatusPlatformsFilterRestrictsBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "network_status", map[string]any{"platforms": []string{"meraki"}})
	require.Nil(t, resp.Error)
	body := resultString(t, resp)
	require.Contains(t, body, "meraki_health")
	require.NotContains(t, body, "firewall_policy_status")
}

func TestGatewayHealthReportsRoutingTable(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "gateway_health", map[string]any{})
	require.Nil(t, resp.Error)
	body := resultString(t, resp)
	require.Contains(t, body, "Gateway Health")
	require.Contains(t, body, "Routing Table")
}

func TestInferCorrelateEventsValidatesWindowBounds(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "infer_correlate_events", map[string]any{"window_seconds": 10})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.InvalidParams, resp.Error.Code)
}

func TestInferCorrelateEventsAcceptsMinSeverityAndPlatforms(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "infer_correlate_events", map[string]any{"min_severity": "high", "platforms": []string{"meraki"}})
	require.Nil(t, resp.Error)
}

func TestInferRootCauseAnalysisAcceptsCorrelationID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "infer_root_cause_analysis", map[string]any{"correlation_id": "grp-"})
	require.Nil(t, resp.Error)
}

func TestInferRootCauseAnalysisRecordsIncidentForTimeline(t *testing.T) {
	srv, table := newTestServer(t)
	_ = table

	events := []ingest.Event{
		{Platform: "thousandeyes", EventType: "path_loss", Severity: "high", Entities: []string{"site-a"}, Timestamp: time.Now()},
		{Platform: "meraki", EventType: "vpn_tunnel_flap", Severity: "medium", Entities: []string{"site-a"}, Timestamp: time.Now()},
	}
	for _, e := range events {
		srv.buffer.Append(e)
	}

	rcResp := doCall(t, srv, "infer_root_cause_analysis", map[string]any{"window_seconds": 300})
	require.Nil(t, rcResp.Error)
	var rc struct {
		Matches []map[string]any `json:"matches"`
		Count   int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rcResp.Result, &rc))
	require.Equal(t, 1, rc.Count)
	require.Equal(t, "WAN Degradation → Application Slowdown", rc.Matches[0]["name"])

	tlResp := doCall(t, srv, "infer_get_incident_timeline", map[string]any{"hours": 1})
	require.Nil(t, tlResp.Error)
	var tl struct {
		Incidents []map[string]any `json:"incidents"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(tlResp.Result, &tl))
	require.Equal(t, 1, tl.Count)
}

func TestInferRiskScoreReturnsTier(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "infer_network_risk_score", map[string]any{})
	require.Nil(t, resp.Error)
	var score map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &score))
	require.Contains(t, score, "Tier")
}

func TestClassifyIntentReturnsParsedResult(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "classify_intent", map[string]any{"text": "how's the network?"})
	require.Nil(t, resp.Error)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &parsed))
	require.Equal(t, "network_status", parsed["Category"])
}

func TestUnknownToolReturnsInternalError(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doCall(t, srv, "not_a_real_tool", map[string]any{})
	require.NotNil(t, resp.Error)
}
