package mcpserver

import "github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"

var severityRank = map[string]int{
	"critical": 5,
	"high":     4,
	"medium":   3,
	"low":      2,
	"info":     1,
	"unknown":  0,
}

// filterEventsBySeverity keeps events whose severity rank is at or
// above minSeverity. An empty minSeverity matches every event.
func filterEventsBySeverity(events []ingest.Event, minSeverity string) []ingest.Event {
	if minSeverity == "" {
		return events
	}
	minRank := severityRank[minSeverity]
	out := events[:0:0]
	for _, e := range events {
		if severityRank[e.Severity] >= minRank {
			out = append(out, e)
		}
	}
	return out
}

// filterEventsByPlatforms keeps events whose platform is in platforms.
// An empty platforms list matches every event.
func filterEventsByPlatforms(events []ingest.Event, platforms []string) []ingest.Event {
	if len(platforms) == 0 {
		return events
	}
	set := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		set[p] = true
	}
	out := events[:0:0]
	for _, e := range events {
		if set[e.Platform] {
			out = append(out, e)
		}
	}
	return out
}
