package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/anomaly"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/predict"
)

func TestComputeLowTier(t *testing.T) {
	score := Compute(Inputs{RecentEvents: []ingest.Event{{Severity: "low"}}})
	require.Equal(t, TierLow, score.Tier)
}

func TestComputeEventsAloneCapInElevatedTier(t *testing.T) {
	events := make([]ingest.Event, 6)
	for i := range events {
		events[i] = ingest.Event{Severity: "critical"}
	}
	score := Compute(Inputs{RecentEvents: events})
	require.Equal(t, 60.0, score.EventScore, "event contribution caps at 60")
	require.Equal(t, TierElevated, score.Tier)
}

func TestComputeIncludesAnomaliesAndPredictionsWhenToggled(t *testing.T) {
	score := Compute(Inputs{
		Anomalies:          []anomaly.Anomaly{{Confidence: 0.9}, {Confidence: 0.8}},
		Predictions:        []predict.Prediction{{RiskLevel: "critical"}},
		IncludeAnomalies:   true,
		IncludePredictions: true,
	})
	require.Equal(t, 10.0, score.AnomalyScore)
	require.Equal(t, 15.0, score.PredictionScore)
}

func TestComputeIgnoresAnomaliesWhenNotToggled(t *testing.T) {
	score := Compute(Inputs{
		Anomalies:        []anomaly.Anomaly{{Confidence: 0.9}},
		IncludeAnomalies: false,
	})
	require.Equal(t, 0.0, score.AnomalyScore)
}
