package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/bus"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

func newTestLog() *Log {
	b := bus.New("", "", 0, "miga", telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
	return New(NewMemoryStore(), b)
}

func TestRecordAppendsEntry(t *testing.T) {
	log := newTestLog()
	entry, err := log.Record(context.Background(), "operator", "automation", "restart_device", "meraki_mcp", false, false, "ok", "")
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.True(t, entry.Approved)

	recent, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestRecordRequiresApprovalReturnsSentinelError(t *testing.T) {
	log := newTestLog()
	entry, err := log.Record(context.Background(), "operator", "automation", "quarantine_endpoint", "ise_mcp", true, true, "pending", "")
	require.Error(t, err)
	var approvalErr *ApprovalRequired
	require.ErrorAs(t, err, &approvalErr)
	require.False(t, entry.Approved)

	recent, rerr := log.Recent(context.Background(), 10)
	require.NoError(t, rerr)
	require.Len(t, recent, 1, "the entry is still recorded even though approval is pending")
}

func TestRecentMostRecentFirst(t *testing.T) {
	log := newTestLog()
	_, _ = log.Record(context.Background(), "a", "automation", "tool1", "b1", false, false, "ok", "")
	_, _ = log.Record(context.Background(), "a", "automation", "tool2", "b1", false, false, "ok", "")

	recent, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "tool2", recent[0].Tool)
}
