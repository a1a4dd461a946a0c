package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
)

type stubCaller struct {
	fail map[string]bool
}

func (s *stubCaller) CallTool(ctx context.Context, endpoint, tool string, arguments json.RawMessage) (json.RawMessage, error) {
	if s.fail[endpoint] {
		return nil, errors.New("boom")
	}
	return json.RawMessage(`{"status":"ok"}`), nil
}

func fixtureTable() *capability.Store {
	store := capability.NewStore()
	backends := []capability.BackendRecord{
		{
			Name: "meraki_mcp", Platform: "meraki", Endpoint: "http://meraki_mcp:8002",
			Capabilities: []capability.Capability{
				{Name: "list_devices", Roles: []capability.Role{capability.RoleObservability}},
				{Name: "meraki_health", Roles: []capability.Role{capability.RoleObservability}},
				{Name: "wireless_client_health", Roles: []capability.Role{capability.RoleObservability}},
			},
		},
		{
			Name: "catalyst_center_mcp", Platform: "catalyst_center", Endpoint: "http://catalyst_center_mcp:8001",
			Capabilities: []capability.Capability{
				{Name: "list_devices_cc", Roles: []capability.Role{capability.RoleObservability}},
				{Name: "catalyst_center_health", Roles: []capability.Role{capability.RoleObservability}},
			},
		},
	}
	store.Swap(capability.Build(backends, time.Now()))
	return store
}

func TestQueryDirectDispatch(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleObservability, "list_devices", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeDirect, outcome.Mode)
	require.Len(t, outcome.Results, 1)
	require.NoError(t, outcome.Results[0].Err)
}

func TestQueryDirectToolNotFoundIsNotFoundNotError(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleObservability, "nonexistent_tool", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeNotFound, outcome.Mode)
	require.Equal(t, "nonexistent_tool", outcome.Tool)
}

func TestQueryDirectToolNotReachableByRoleIsNotFound(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleSecurity, "list_devices", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeNotFound, outcome.Mode)
}

func TestQueryBroadcastDispatchesEveryBroadcastableTool(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleObservability, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeBroadcast, outcome.Mode)
	require.Len(t, outcome.Results, 3)

	var tools []string
	for _, r := range outcome.Results {
		tools = append(tools, r.Tool)
	}
	require.ElementsMatch(t, []string{"meraki_health", "wireless_client_health", "catalyst_center_health"}, tools)
}

func TestQueryBroadcastToleratesPartialFailure(t *testing.T) {
	caller := &stubCaller{fail: map[string]bool{"http://meraki_mcp:8002": true}}
	engine := New(fixtureTable(), caller)
	outcome, err := engine.Query(context.Background(), capability.RoleObservability, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeBroadcast, outcome.Mode)
	require.Len(t, outcome.Results, 3)

	var sawError, sawSuccess bool
	for _, r := range outcome.Results {
		if r.Err != nil {
			sawError = true
		} else {
			sawSuccess = true
		}
	}
	require.True(t, sawError)
	require.True(t, sawSuccess)
}

func TestQueryNetworkStatusBroadcastsAcrossAllBackends(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), "", "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeBroadcast, outcome.Mode)
	require.Len(t, outcome.Results, 3)
}

func TestQueryPlatformsFilterRestrictsBroadcast(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), "", "", []string{"meraki"}, nil)
	require.NoError(t, err)
	require.Equal(t, ModeBroadcast, outcome.Mode)
	require.Len(t, outcome.Results, 2)
	for _, r := range outcome.Results {
		require.Equal(t, "meraki_mcp", r.Backend)
	}
}

func TestQueryListingWhenNothingBroadcastable(t *testing.T) {
	store := capability.NewStore()
	store.Swap(capability.Build([]capability.BackendRecord{
		{
			Name: "meraki_mcp", Platform: "meraki", Endpoint: "http://meraki_mcp:8002",
			Capabilities: []capability.Capability{
				{Name: "list_devices", Roles: []capability.Role{capability.RoleObservability}},
			},
		},
	}, time.Now()))
	engine := New(store, &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleObservability, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeListing, outcome.Mode)
	require.Len(t, outcome.Entries, 1)
}

func TestQueryEmptyWhenRoleHasNoEntries(t *testing.T) {
	engine := New(fixtureTable(), &stubCaller{})
	outcome, err := engine.Query(context.Background(), capability.RoleSecurity, "", nil, nil)
	require.NoError(t, err)
	require.Equal(t, ModeEmpty, outcome.Mode)
}
