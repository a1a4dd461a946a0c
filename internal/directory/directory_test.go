package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

func newStandaloneClient() *Client {
	return New("", time.Second, time.Second, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
}

func TestStandaloneRegisterReturnsSentinel(t *testing.T) {
	c := newStandaloneClient()
	require.True(t, c.Standalone())
	require.Equal(t, StatusStandalone, c.Register(context.Background(), Record{Name: "meraki_mcp"}))
}

func TestStandaloneDiscoverReturnsEmpty(t *testing.T) {
	c := newStandaloneClient()
	records := c.Discover(context.Background(), nil, nil, "")
	require.Empty(t, records)
}

func TestUnreachableDirectoryDegrades(t *testing.T) {
	c := New("http://127.0.0.1:1", 50*time.Millisecond, time.Second, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
	require.Equal(t, StatusError, c.Register(context.Background(), Record{Name: "meraki_mcp"}))
	require.Empty(t, c.Discover(context.Background(), nil, nil, ""))
	require.False(t, c.Deregister(context.Background(), "some-id"))
	require.False(t, c.Health(context.Background()))
}

func TestDeregisterRefusesSentinelIDs(t *testing.T) {
	c := New("http://127.0.0.1:1", 50*time.Millisecond, time.Second, telemetry.NewNoopLogger(), telemetry.NewNoopMetrics())
	require.False(t, c.Deregister(context.Background(), StatusStandalone))
	require.False(t, c.Deregister(context.Background(), StatusError))
}
