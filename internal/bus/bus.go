// Package bus implements the event bus adapter: publish/subscribe
// over Redis for the gateway's well-known channels, with graceful
// degradation to a disabled no-op transport when Redis is absent or
// unreachable. No failure here ever propagates to a caller as a
// fatal error; the gateway keeps routing and reasoning with a
// disabled bus exactly as it would with one enabled.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

// Well-known channel name suffixes, appended to the configured prefix
// (default "miga") with a colon, mirroring the original bus's literal
// channel names.
const (
	ChannelCorrelatedEvents = "events:correlated"
	ChannelSecurityAlerts   = "alerts:security"
	ChannelApprovalRequest  = "approval:request"
	telemetryChannelPrefix  = "telemetry:"
)

// Handler processes a single message received on a subscribed channel.
// A handler that panics on one message must never take the listen
// loop down with it; Bus isolates handler panics per-message.
type Handler func(ctx context.Context, channel string, payload json.RawMessage)

// Bus is the event bus adapter for publishing correlated events,
// alerts, approval requests and telemetry, and for subscribing to
// them. Within the gateway the audit log publishes approval requests
// through it; no gateway component subscribes, so the ingest buffer
// is not fed from the bus.
type Bus struct {
	client *redis.Client
	prefix string
	log    telemetry.Logger
	met    telemetry.Metrics

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Bus. addr == "" yields a disabled bus: Publish is a
// no-op returning 0 subscribers reached, and Subscribe never delivers
// anything. This mirrors the Python adapter's ImportError/connect
// fallback — an operator running without Redis still gets a working
// gateway, just without cross-process correlation fan-out.
func New(addr, password string, db int, prefix string, log telemetry.Logger, met telemetry.Metrics) *Bus {
	b := &Bus{prefix: prefix, log: log, met: met, cancel: make(map[string]context.CancelFunc)}
	if addr == "" {
		return b
	}
	b.client = redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return b
}

// Enabled reports whether a live Redis connection backs this Bus.
func (b *Bus) Enabled() bool { return b.client != nil }

func (b *Bus) channel(suffix string) string {
	return fmt.Sprintf("%s:%s", b.prefix, suffix)
}

// Publish serializes payload as JSON and publishes it to channel,
// returning the number of subscribers that received it. Any error
// (no Redis configured, connection failure) is logged and swallowed,
// returning 0 — publishing is always best-effort.
func (b *Bus) Publish(ctx context.Context, suffix string, payload any) int {
	if b.client == nil {
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn(ctx, "bus publish marshal failed", "channel", suffix, "error", err.Error())
		return 0
	}
	ch := b.channel(suffix)
	n, err := b.client.Publish(ctx, ch, data).Result()
	if err != nil {
		b.log.Warn(ctx, "bus publish failed", "channel", ch, "error", err.Error())
		b.met.IncCounter("bus.publish.errors", 1, "channel", ch)
		return 0
	}
	b.met.IncCounter("bus.publish.ok", 1, "channel", ch)
	return int(n)
}

// PublishEvent publishes a correlated event envelope.
func (b *Bus) PublishEvent(ctx context.Context, payload any) int {
	return b.Publish(ctx, ChannelCorrelatedEvents, payload)
}

// PublishAlert publishes a security alert envelope.
func (b *Bus) PublishAlert(ctx context.Context, payload any) int {
	return b.Publish(ctx, ChannelSecurityAlerts, payload)
}

// RequestApproval publishes an approval-request envelope for a
// destructive or requires-approval tool invocation.
func (b *Bus) RequestApproval(ctx context.Context, payload any) int {
	return b.Publish(ctx, ChannelApprovalRequest, payload)
}

// PublishTelemetry publishes a per-platform telemetry envelope on
// "telemetry:<platform>".
func (b *Bus) PublishTelemetry(ctx context.Context, platform string, payload any) int {
	return b.Publish(ctx, telemetryChannelPrefix+platform, payload)
}

// Subscribe registers handler on suffix and starts a background
// listen loop. The loop runs until ctx is cancelled or Close is
// called. A handler panic never stops the loop from
// delivering subsequent messages; only the offending message is lost.
func (b *Bus) Subscribe(ctx context.Context, suffix string, handler Handler) error {
	if b.client == nil {
		return nil
	}
	ch := b.channel(suffix)
	sub := b.client.Subscribe(ctx, ch)
	loopCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	b.cancel[ch] = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-loopCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.dispatch(loopCtx, ch, handler, msg.Payload)
			}
		}
	}()
	return nil
}

func (b *Bus) dispatch(ctx context.Context, channel string, handler Handler, raw string) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(ctx, "bus handler panicked", "channel", channel, "recovered", fmt.Sprintf("%v", r))
		}
	}()
	var payload json.RawMessage
	if json.Valid([]byte(raw)) {
		payload = json.RawMessage(raw)
	} else {
		wrapped, _ := json.Marshal(map[string]string{"raw": raw})
		payload = wrapped
	}
	handler(ctx, channel, payload)
}

// Close cancels every active subscription loop, waits for them to
// drain, and closes the underlying Redis client.
func (b *Bus) Close() error {
	b.mu.Lock()
	for _, cancel := range b.cancel {
		cancel()
	}
	b.mu.Unlock()
	b.wg.Wait()
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}
