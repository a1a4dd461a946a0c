package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecognizeStatusBeatsLowerConfidenceRules(t *testing.T) {
	// "show network" also matches the 0.80 configuration listing rule.
	parsed := Recognize("show network status")
	require.Equal(t, CategoryStatus, parsed.Category)
	require.Equal(t, 0.95, parsed.Confidence)
}

func TestRecognizePlatformHint(t *testing.T) {
	parsed := Recognize("meraki health check")
	require.Equal(t, CategoryObservability, parsed.Category)
	require.Equal(t, "meraki", parsed.Platform)
}

func TestRecognizeUnknownForUnmatchedText(t *testing.T) {
	parsed := Recognize("what color is the sky today")
	require.Equal(t, CategoryUnknown, parsed.Category)
	require.Equal(t, 0.0, parsed.Confidence)
}

func TestRecognizeExtractsEntities(t *testing.T) {
	parsed := Recognize("quarantine endpoint mac 00:1A:2B:3C:4D:5E please")
	require.Equal(t, CategoryAutomation, parsed.Category)
	require.Contains(t, parsed.Arguments, "mac_address")
}

func TestRecognizeTieBreaksToEarliestRow(t *testing.T) {
	// "correlat" (observability, infer, 0.90) appears before the
	// "risk score" rule (compliance, infer, 0.90); confirm the
	// first-scanned rule wins the tie rather than the later one.
	parsed := Recognize("please correlate and check the risk score for this site")
	require.Equal(t, CategoryObservability, parsed.Category)
	require.Equal(t, "infer", parsed.Platform)
	require.Equal(t, 0.90, parsed.Confidence)
}

func TestRecognizeDeterministic(t *testing.T) {
	first := Recognize("catalyst center issues")
	second := Recognize("catalyst center issues")
	require.Equal(t, first, second)
}
