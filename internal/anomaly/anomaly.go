// Package anomaly implements the anomaly detector: a per-
// (platform,event_type) frequency-spike test comparing the most
// recent inter-arrival interval against the bucket's rolling mean and
// standard deviation.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/ingest"
)

// Anomaly is a single detected frequency spike.
type Anomaly struct {
	ID                    string
	Platform              string
	EventType             string
	Pattern               string
	Description           string
	MeanIntervalSeconds   float64
	RecentIntervalSeconds float64
	StdDevSeconds         float64
	Confidence            float64
	Severity              string
}

// Detect scans events for platform/event_type buckets whose most
// recent inter-arrival interval falls more than two standard
// deviations below the bucket's mean. Buckets with fewer than three
// events, and overall inputs with fewer than five events, never
// produce an anomaly — there isn't enough signal to judge a spike.
func Detect(events []ingest.Event, sensitivity float64) []Anomaly {
	if len(events) < 5 {
		return nil
	}

	buckets := make(map[string][]time.Time)
	for _, ev := range events {
		key := ev.Platform + ":" + ev.EventType
		buckets[key] = append(buckets[key], ev.Timestamp)
	}

	var keys []string
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var anomalies []Anomaly
	for _, key := range keys {
		timestamps := buckets[key]
		if len(timestamps) < 3 {
			continue
		}
		sorted := append([]time.Time(nil), timestamps...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

		intervals := make([]float64, 0, len(sorted)-1)
		for i := 0; i < len(sorted)-1; i++ {
			intervals = append(intervals, sorted[i+1].Sub(sorted[i]).Seconds())
		}
		if len(intervals) == 0 {
			continue
		}

		mean := average(intervals)
		if mean == 0 {
			continue
		}
		recent := intervals[len(intervals)-1]
		stddev := stddevOf(intervals, mean)

		if stddev > 0 && recent < mean-2*stddev {
			platform, eventType := splitKey(key)
			ratio := mean / math.Max(recent, 0.1)
			confidence := math.Min(0.95, sensitivity+0.05)
			severity := "medium"
			if recent < mean*0.2 {
				severity = "high"
			}
			anomalies = append(anomalies, Anomaly{
				ID:                    uuid.NewString(),
				Platform:              platform,
				EventType:             eventType,
				Pattern:               "frequency_spike",
				Description:           fmt.Sprintf("Event rate for %s is %.1fx above normal", key, ratio),
				MeanIntervalSeconds:   round1(mean),
				RecentIntervalSeconds: round1(recent),
				StdDevSeconds:         round1(stddev),
				Confidence:            confidence,
				Severity:              severity,
			})
		}
	}
	return anomalies
}

func average(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	variance := 0.0
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func splitKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
