package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

func TestCorrelateGroupsOverlappingEvents(t *testing.T) {
	base := time.Now()
	events := []ingest.Event{
		{Platform: "thousandeyes", EventType: "path_loss", Severity: "high", Entities: []string{"site-a"}, Timestamp: base},
		{Platform: "meraki", EventType: "vpn_tunnel_flap", Severity: "high", Entities: []string{"site-a"}, Timestamp: base.Add(30 * time.Second)},
		{Platform: "splunk", EventType: "unrelated", Severity: "low", Entities: []string{"site-z"}, Timestamp: base.Add(time.Hour)},
	}

	groups := Correlate(events, 300*time.Second)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Events, 2)
	require.ElementsMatch(t, []string{"meraki", "thousandeyes"}, groups[0].Platforms)
	require.Equal(t, "high", groups[0].MaxSeverity)
	require.Contains(t, groups[0].Entities, "site-a")
}

func TestCorrelateSkipsNonOverlappingEvents(t *testing.T) {
	base := time.Now()
	events := []ingest.Event{
		{Platform: "meraki", Severity: "low", Entities: []string{"site-a"}, Timestamp: base},
		{Platform: "splunk", Severity: "low", Entities: []string{"site-b"}, Timestamp: base.Add(time.Second)},
	}
	groups := Correlate(events, 300*time.Second)
	require.Empty(t, groups)
}

func TestCorrelateRequiresWindowAndEntityOverlap(t *testing.T) {
	base := time.Now()
	events := []ingest.Event{
		{Platform: "meraki", Severity: "low", Entities: []string{"site-a"}, Timestamp: base},
		{Platform: "splunk", Severity: "low", Entities: []string{"site-a"}, Timestamp: base.Add(time.Hour)},
	}
	groups := Correlate(events, 300*time.Second)
	require.Empty(t, groups, "events sharing an entity but outside the window must not group")
}
