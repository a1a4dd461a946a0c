// Package correlate implements the correlation engine: a greedy,
// seed-anchored clustering pass over a time-ordered set of events,
// grouping events whose timestamps fall within a shared window and
// whose entity sets overlap.
package correlate

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

// Group is a cluster of two or more events judged to be correlated.
type Group struct {
	ID          string
	Events      []ingest.Event
	Platforms   []string
	MaxSeverity string
	TimeSpan    time.Duration
	Entities    []string
}

var severityRank = map[string]int{
	"critical": 5,
	"high":     4,
	"medium":   3,
	"low":      2,
	"info":     1,
}

// Correlate groups events from the buffer snapshot that overlap in
// time (within window) and share at least one entity. The algorithm
// is the greedy O(n^2) seed-anchored pass: events are sorted by
// timestamp, and each ungrouped event seeds a new group that absorbs
// every later ungrouped event overlapping it; only groups with two or
// more members survive.
func Correlate(events []ingest.Event, window time.Duration) []Group {
	sorted := append([]ingest.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	grouped := make([]bool, len(sorted))
	var groups []Group

	for i := range sorted {
		if grouped[i] {
			continue
		}
		members := []ingest.Event{sorted[i]}
		grouped[i] = true
		for j := i + 1; j < len(sorted); j++ {
			if grouped[j] {
				continue
			}
			if overlaps(sorted[i], sorted[j], window) {
				members = append(members, sorted[j])
				grouped[j] = true
			}
		}
		if len(members) > 1 {
			groups = append(groups, buildGroup(members))
		}
	}
	return groups
}

// overlaps implements the two-condition test: timestamps within
// window of each other AND at least one shared entity.
func overlaps(a, b ingest.Event, window time.Duration) bool {
	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > window {
		return false
	}
	return entitiesIntersect(a.Entities, b.Entities)
}

func entitiesIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, e := range a {
		set[e] = struct{}{}
	}
	for _, e := range b {
		if _, ok := set[e]; ok {
			return true
		}
	}
	return false
}

func buildGroup(members []ingest.Event) Group {
	platformSet := map[string]struct{}{}
	entitySet := map[string]struct{}{}
	maxRank := 0
	maxSeverity := "unknown"
	minTS, maxTS := members[0].Timestamp, members[0].Timestamp

	for _, ev := range members {
		platformSet[ev.Platform] = struct{}{}
		for _, e := range ev.Entities {
			entitySet[e] = struct{}{}
		}
		if rank := severityRank[ev.Severity]; rank > maxRank {
			maxRank = rank
			maxSeverity = ev.Severity
		}
		if ev.Timestamp.Before(minTS) {
			minTS = ev.Timestamp
		}
		if ev.Timestamp.After(maxTS) {
			maxTS = ev.Timestamp
		}
	}

	return Group{
		ID:          uuid.NewString(),
		Events:      members,
		Platforms:   keys(platformSet),
		MaxSeverity: maxSeverity,
		TimeSpan:    maxTS.Sub(minTS),
		Entities:    keys(entitySet),
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
