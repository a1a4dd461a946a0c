// Package lifecycle implements the gateway's startup and shutdown
// sequence: discover-or-fallback routing table construction, a
// periodic refresh loop, directory registration/deregistration, and a
// graceful shutdown window for in-flight work to drain.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/directory"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/telemetry"
)

// Manager owns the routing table's lifecycle: the initial build, the
// periodic refresh loop, and directory registration bookkeeping.
type Manager struct {
	table      *capability.Store
	directory  *directory.Client
	staticPath string
	selfRecord directory.Record

	refreshInterval time.Duration
	shutdownGrace   time.Duration

	log telemetry.Logger
	met telemetry.Metrics

	mu           sync.Mutex
	registration string
	cancelLoop   context.CancelFunc
	loopDone     chan struct{}
}

// Config bundles Manager's construction parameters.
type Config struct {
	Table           *capability.Store
	Directory       *directory.Client
	StaticPath      string
	SelfRecord      directory.Record
	RefreshInterval time.Duration
	ShutdownGrace   time.Duration
	Logger          telemetry.Logger
	Metrics         telemetry.Metrics
}

// New constructs a Manager. It does not build the routing table or
// register with the directory; call Start for that.
func New(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	met := cfg.Metrics
	if met == nil {
		met = telemetry.NewNoopMetrics()
	}
	return &Manager{
		table:           cfg.Table,
		directory:       cfg.Directory,
		staticPath:      cfg.StaticPath,
		selfRecord:      cfg.SelfRecord,
		refreshInterval: cfg.RefreshInterval,
		shutdownGrace:   cfg.ShutdownGrace,
		log:             log,
		met:             met,
	}
}

// Start performs the initial routing table build (discover, falling
// back to the static table when the directory is standalone or
// returns nothing), registers the gateway's own record with the
// directory, and launches the periodic refresh loop. The loop stops
// when ctx is cancelled; callers should call Stop on shutdown to
// deregister and wait for the loop to exit.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.refresh(ctx); err != nil {
		return fmt.Errorf("lifecycle: initial routing table build: %w", err)
	}

	m.mu.Lock()
	m.registration = m.directory.Register(ctx, m.selfRecord)
	m.mu.Unlock()
	m.log.Info(ctx, "gateway registered", "registration", m.registration)

	loopCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelLoop = cancel
	m.loopDone = make(chan struct{})
	m.mu.Unlock()

	go m.refreshLoop(loopCtx)
	return nil
}

// Stop cancels the refresh loop, waits up to ShutdownGrace for it to
// exit, and deregisters the gateway from the directory. Deregistration
// is attempted even if the loop does not exit within the grace
// window, since it is independently best-effort and bounded by the
// directory client's own timeout.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	cancel := m.cancelLoop
	done := m.loopDone
	registration := m.registration
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(m.shutdownGrace):
			m.log.Warn(ctx, "refresh loop did not exit within shutdown grace window")
		}
	}

	deregCtx, deregCancel := context.WithTimeout(ctx, m.shutdownGrace)
	defer deregCancel()
	if ok := m.directory.Deregister(deregCtx, registration); ok {
		m.log.Info(ctx, "gateway deregistered")
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	defer close(m.loopDone)
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.refresh(ctx); err != nil {
				m.log.Error(ctx, "routing table refresh failed", "error", err.Error())
			}
		}
	}
}

// refresh discovers backend records and rebuilds the routing table.
// An empty discovery result (standalone directory, transient failure,
// or a directory with nothing registered yet) builds the table from
// the static backend table when the current table is empty (the
// initial build); once the table already holds entries, an empty
// discovery result keeps the previous table unchanged.
func (m *Manager) refresh(ctx context.Context) error {
	start := time.Now()
	records := m.directory.Discover(ctx, nil, nil, "")

	var backends []capability.BackendRecord
	if len(records) > 0 {
		backends = recordsToBackends(records)
	} else {
		if m.table.Load().ToolCount() > 0 {
			m.log.Warn(ctx, "directory returned no records; keeping previous routing table")
			return nil
		}
		static, err := capability.LoadStaticBackends(m.staticPath)
		if err != nil {
			return err
		}
		backends = static
	}

	table := capability.Build(backends, time.Now())
	m.table.Swap(table)
	telemetry.Record(ctx, m.log, m.met, telemetry.OperationEvent{
		Operation: "lifecycle.refresh", DurationMs: time.Since(start).Milliseconds(),
		Extra: map[string]any{"tool_count": table.ToolCount(), "backend_count": len(backends)},
	})
	return nil
}

func recordsToBackends(records []directory.Record) []capability.BackendRecord {
	out := make([]capability.BackendRecord, 0, len(records))
	for _, r := range records {
		out = append(out, capability.BackendRecord{
			Name:         r.Name,
			Platform:     r.Attributes.Platform,
			Endpoint:     r.Attributes.Endpoint,
			Roles:        r.Attributes.Roles,
			Capabilities: r.Tools,
		})
	}
	return out
}
