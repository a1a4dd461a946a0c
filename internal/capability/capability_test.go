package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func backendFixture(name, platform string, qualify bool, tools ...string) BackendRecord {
	be := BackendRecord{Name: name, Platform: platform, Endpoint: "http://" + name + ":8000", Qualify: qualify}
	for _, tool := range tools {
		be.Capabilities = append(be.Capabilities, Capability{Name: tool, Roles: []Role{RoleObservability}})
	}
	return be
}

func TestBuildLastWinsOnDuplicateToolName(t *testing.T) {
	a := backendFixture("meraki_mcp", "meraki", false, "health")
	b := backendFixture("catalyst_center_mcp", "catalyst_center", false, "health")

	table := Build([]BackendRecord{a, b}, time.Now())

	entry, ok := table.GetTool("health")
	require.True(t, ok)
	require.Equal(t, "catalyst_center_mcp", entry.Backend.Name)
}

func TestBuildQualifiedAliasPreservesBothBackends(t *testing.T) {
	a := backendFixture("meraki_mcp", "meraki", true, "health")
	b := backendFixture("catalyst_center_mcp", "catalyst_center", false, "health")

	table := Build([]BackendRecord{a, b}, time.Now())

	plain, ok := table.GetTool("health")
	require.True(t, ok)
	require.Equal(t, "catalyst_center_mcp", plain.Backend.Name)

	qualified, ok := table.GetTool("meraki_mcp.health")
	require.True(t, ok)
	require.Equal(t, "meraki_mcp", qualified.Backend.Name)
}

func TestToolsForRole(t *testing.T) {
	a := backendFixture("meraki_mcp", "meraki", false, "health", "devices")
	table := Build([]BackendRecord{a}, time.Now())

	entries := table.ToolsForRole(RoleObservability)
	require.Len(t, entries, 2)
}

func TestStoreSwapIsVisibleImmediately(t *testing.T) {
	s := NewStore()
	require.Equal(t, 0, s.Load().ToolCount())

	s.Swap(Build([]BackendRecord{backendFixture("meraki_mcp", "meraki", false, "health")}, time.Now()))
	require.Equal(t, 1, s.Load().ToolCount())
}
