// Package predict implements the predictor: two heuristics that look
// at a window of recent events and flag developing cascading-failure
// or complex-incident patterns before they fully manifest.
package predict

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

// Prediction is a single forecast of a developing incident.
type Prediction struct {
	ID                         string
	Type                       string
	Description                string
	RiskLevel                  string
	Confidence                 float64
	AffectedPlatform           string
	AffectedPlatforms          []string
	RecommendedPreemptiveActions []string
	TimeHorizonMinutes         int
}

var severityRank = map[string]int{
	"critical": 5,
	"high":     4,
	"medium":   3,
	"low":      2,
	"info":     1,
}

// Predict evaluates events against the cascading-failure and
// complex-incident heuristics and returns every prediction that
// fires. Both heuristics may fire simultaneously; order matches the
// original catalog: cascading failures first (per affected platform),
// then a single complex-incident prediction if it qualifies.
func Predict(events []ingest.Event) []Prediction {
	var predictions []Prediction

	platformCounts := make(map[string]int)
	var platformOrder []string
	platformSet := make(map[string]bool)
	for _, ev := range events {
		if severityRank[ev.Severity] >= 4 {
			if platformCounts[ev.Platform] == 0 {
				platformOrder = append(platformOrder, ev.Platform)
			}
			platformCounts[ev.Platform]++
		}
		if !platformSet[ev.Platform] {
			platformSet[ev.Platform] = true
		}
	}

	for _, platform := range platformOrder {
		count := platformCounts[platform]
		if count < 3 {
			continue
		}
		confidence := 0.6 + float64(count)*0.1
		if confidence > 0.90 {
			confidence = 0.90
		}
		predictions = append(predictions, Prediction{
			ID:          uuid.NewString(),
			Type:        "cascading_failure",
			Description: fmt.Sprintf("Platform %s showing %d high-severity events — potential cascade risk", platform, count),
			RiskLevel:   "high",
			Confidence:  confidence,
			AffectedPlatform: platform,
			RecommendedPreemptiveActions: []string{
				fmt.Sprintf("Increase monitoring frequency for %s", platform),
				"Alert NOC team for proactive investigation",
				"Verify redundancy and failover paths are operational",
			},
			TimeHorizonMinutes: 30,
		})
	}

	distinctPlatforms := len(platformSet)
	anySevereEnough := false
	for _, ev := range events {
		if severityRank[ev.Severity] >= 3 {
			anySevereEnough = true
			break
		}
	}
	if distinctPlatforms >= 3 && anySevereEnough {
		riskLevel := "high"
		if distinctPlatforms >= 4 {
			riskLevel = "critical"
		}
		affected := make([]string, 0, distinctPlatforms)
		for p := range platformSet {
			affected = append(affected, p)
		}
		predictions = append(predictions, Prediction{
			ID:          uuid.NewString(),
			Type:        "complex_incident",
			Description: fmt.Sprintf("Events across %d platforms suggest a developing complex incident", distinctPlatforms),
			RiskLevel:   riskLevel,
			Confidence:  0.70,
			AffectedPlatforms: affected,
			RecommendedPreemptiveActions: []string{
				"Initiate incident response bridge",
				"Cross-reference events with recent change windows",
				"Validate core infrastructure (DNS, DHCP, NTP, AAA) health",
			},
			TimeHorizonMinutes: 15,
		})
	}

	return predictions
}
