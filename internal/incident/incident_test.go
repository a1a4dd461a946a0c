package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSinceFiltersByCutoffAndSeverity(t *testing.T) {
	h := New(10)
	now := time.Now()
	h.Record(Entry{Timestamp: now.Add(-2 * time.Hour), Severity: "high", TemplateName: "old"})
	h.Record(Entry{Timestamp: now.Add(-10 * time.Minute), Severity: "low", TemplateName: "recent-low"})
	h.Record(Entry{Timestamp: now.Add(-5 * time.Minute), Severity: "critical", TemplateName: "recent-critical"})

	recent := h.Since(now.Add(-time.Hour), "medium")
	require.Len(t, recent, 1)
	require.Equal(t, "recent-critical", recent[0].TemplateName)
}

func TestSinceOrdersMostRecentFirst(t *testing.T) {
	h := New(10)
	now := time.Now()
	h.Record(Entry{Timestamp: now.Add(-5 * time.Minute), Severity: "high", TemplateName: "first"})
	h.Record(Entry{Timestamp: now.Add(-1 * time.Minute), Severity: "high", TemplateName: "second"})

	recent := h.Since(now.Add(-time.Hour), "")
	require.Len(t, recent, 2)
	require.Equal(t, "second", recent[0].TemplateName)
}

func TestRecordEvictsOldestOnOverflow(t *testing.T) {
	h := New(2)
	h.Record(Entry{Timestamp: time.Now(), TemplateName: "a"})
	h.Record(Entry{Timestamp: time.Now(), TemplateName: "b"})
	h.Record(Entry{Timestamp: time.Now(), TemplateName: "c"})
	require.Equal(t, 2, h.Len())

	all := h.Since(time.Time{}, "")
	var names []string
	for _, e := range all {
		names = append(names, e.TemplateName)
	}
	require.ElementsMatch(t, []string{"b", "c"}, names)
}
