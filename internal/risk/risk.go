// Package risk implements the network-wide risk scorer: a weighted
// sum of recent-event severity, active-anomaly count and prediction
// severity, capped and bucketed into four risk tiers.
package risk

import (
	"github.com/keewillidevnet/miga-mcp-gateway/internal/anomaly"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/predict"
)

// Tier names the four risk buckets.
type Tier string

const (
	TierLow      Tier = "LOW"
	TierModerate Tier = "MODERATE"
	TierElevated Tier = "ELEVATED"
	TierCritical Tier = "CRITICAL"
)

var eventSeverityWeight = map[string]float64{
	"critical": 15,
	"high":     8,
	"medium":   3,
	"low":      1,
	"info":     0,
}

// Score is the computed risk breakdown.
type Score struct {
	EventScore      float64
	AnomalyScore    float64
	PredictionScore float64
	Total           float64
	Tier            Tier
}

// Inputs bundles the Score function's optional toggles, mirroring
// the original tool's include_anomalies/include_predictions flags.
type Inputs struct {
	RecentEvents      []ingest.Event
	Anomalies         []anomaly.Anomaly
	Predictions       []predict.Prediction
	IncludeAnomalies  bool
	IncludePredictions bool
}

// Compute produces a 0-100 risk score from recent events, anomalies
// and predictions. Event contribution is capped at 60, anomaly
// contribution (anomalies with confidence >= 0.7) at 20 with 5 points
// each, and prediction contribution at 20 (15 per critical, 8 per
// high risk-level prediction). The total is capped at 100 and
// bucketed into LOW (<=25), MODERATE (<=50), ELEVATED (<=75) or
// CRITICAL (>75).
func Compute(in Inputs) Score {
	eventScore := 0.0
	for _, ev := range in.RecentEvents {
		eventScore += eventSeverityWeight[ev.Severity]
	}
	if eventScore > 60 {
		eventScore = 60
	}

	anomalyScore := 0.0
	if in.IncludeAnomalies {
		count := 0
		for _, a := range in.Anomalies {
			if a.Confidence >= 0.7 {
				count++
			}
		}
		anomalyScore = float64(count) * 5
		if anomalyScore > 20 {
			anomalyScore = 20
		}
	}

	predictionScore := 0.0
	if in.IncludePredictions {
		for _, p := range in.Predictions {
			switch p.RiskLevel {
			case "critical":
				predictionScore += 15
			case "high":
				predictionScore += 8
			}
		}
		if predictionScore > 20 {
			predictionScore = 20
		}
	}

	total := eventScore + anomalyScore + predictionScore
	if total > 100 {
		total = 100
	}

	return Score{
		EventScore:      eventScore,
		AnomalyScore:    anomalyScore,
		PredictionScore: predictionScore,
		Total:           total,
		Tier:            tierFor(total),
	}
}

func tierFor(total float64) Tier {
	switch {
	case total <= 25:
		return TierLow
	case total <= 50:
		return TierModerate
	case total <= 75:
		return TierElevated
	default:
		return TierCritical
	}
}
