package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

func TestPredictCascadingFailure(t *testing.T) {
	now := time.Now()
	events := []ingest.Event{
		{Platform: "meraki", Severity: "high", Timestamp: now},
		{Platform: "meraki", Severity: "critical", Timestamp: now.Add(time.Minute)},
		{Platform: "meraki", Severity: "high", Timestamp: now.Add(2 * time.Minute)},
	}
	predictions := Predict(events)
	require.Len(t, predictions, 1)
	require.Equal(t, "cascading_failure", predictions[0].Type)
	require.Equal(t, "meraki", predictions[0].AffectedPlatform)
	require.LessOrEqual(t, predictions[0].Confidence, 0.90)
}

func TestPredictComplexIncident(t *testing.T) {
	now := time.Now()
	events := []ingest.Event{
		{Platform: "meraki", Severity: "medium", Timestamp: now},
		{Platform: "thousandeyes", Severity: "medium", Timestamp: now},
		{Platform: "xdr", Severity: "medium", Timestamp: now},
		{Platform: "splunk", Severity: "low", Timestamp: now},
	}
	predictions := Predict(events)
	require.Len(t, predictions, 1)
	require.Equal(t, "complex_incident", predictions[0].Type)
	require.Equal(t, "critical", predictions[0].RiskLevel)
}

func TestPredictNoSignal(t *testing.T) {
	now := time.Now()
	events := []ingest.Event{
		{Platform: "meraki", Severity: "low", Timestamp: now},
	}
	require.Empty(t, Predict(events))
}
