package rca

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/correlate"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

func loadFixtureCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog("../../config/rca_templates.yaml")
	require.NoError(t, err)
	return c
}

func TestMatchRootCauseWANAppSlowdown(t *testing.T) {
	c := loadFixtureCatalog(t)
	base := time.Now()
	group := correlate.Group{
		Platforms: []string{"thousandeyes", "meraki"},
		Events: []ingest.Event{
			{Platform: "thousandeyes", EventType: "path_loss", Severity: "high", Timestamp: base, Entities: []string{"site-a"}},
			{Platform: "meraki", EventType: "vpn_tunnel_flap", Severity: "medium", Timestamp: base.Add(30 * time.Second), Entities: []string{"site-a"}},
		},
	}

	match, ok := c.MatchRootCause(group)
	require.True(t, ok)
	require.Equal(t, "rca-wan-app-slowdown", match.Template.ID)
	require.Equal(t, "WAN Degradation → Application Slowdown", match.Template.Name)
	require.GreaterOrEqual(t, match.Confidence, 0.85)
	require.Equal(t, 2, match.MatchedSignals)
}

func TestMatchRootCauseNoMatch(t *testing.T) {
	c := loadFixtureCatalog(t)
	group := correlate.Group{
		Platforms: []string{"splunk"},
		Events: []ingest.Event{
			{Platform: "splunk", EventType: "log_volume_spike", Severity: "low"},
		},
	}
	_, ok := c.MatchRootCause(group)
	require.False(t, ok)
}

func TestCatalogContainsAllFiveTemplates(t *testing.T) {
	c := loadFixtureCatalog(t)
	require.Len(t, c.Templates, 5)
}
