// Package audit implements the approval & audit component: an
// immutable append-only log of every tool invocation, and
// publication of an approval-request envelope on the event bus
// whenever a destructive or requires-approval tool is invoked.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/bus"
)

// Entry is a single audit log record. Entries are never mutated or
// deleted once appended; a Store only ever grows (subject to its own
// retention policy) or is queried.
type Entry struct {
	ID          string    `json:"id" bson:"_id"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	Actor       string    `json:"actor" bson:"actor"`
	Role        string    `json:"role" bson:"role"`
	Tool        string    `json:"tool" bson:"tool"`
	Backend     string    `json:"backend" bson:"backend"`
	Destructive bool      `json:"destructive" bson:"destructive"`
	Approved    bool      `json:"approved" bson:"approved"`
	Outcome     string    `json:"outcome" bson:"outcome"`
	Detail      string    `json:"detail,omitempty" bson:"detail,omitempty"`
}

// ApprovalRequired is returned by Log.Record when a tool invocation
// requires human approval. Record does not wait for an approval
// decision: it appends the entry, publishes the request on the bus and
// returns this error, leaving the reaction to its caller.
type ApprovalRequired struct {
	Tool string
}

func (e *ApprovalRequired) Error() string {
	return "approval required for tool " + e.Tool
}

// Store persists audit entries. Implementations must never lose a
// successfully appended entry; retention/eviction is an
// implementation policy, not a caller concern.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Log is the approval & audit component: it appends every invocation
// to its Store and, for destructive or requires-approval tools,
// publishes an approval-request envelope on the bus.
type Log struct {
	store Store
	bus   *bus.Bus
}

// New constructs a Log over store, publishing approval requests
// through b. b may be a disabled Bus (see bus.New("", ...)); publish
// calls degrade to no-ops in that case, same as everywhere else.
func New(store Store, b *bus.Bus) *Log {
	return &Log{store: store, bus: b}
}

// Record appends an audit entry for a tool invocation. When
// requiresApproval is true, it also publishes an approval-request
// envelope and returns an *ApprovalRequired error alongside the
// recorded entry so the caller can decide how to react; the entry is
// still appended regardless.
func (l *Log) Record(ctx context.Context, actor, role, tool, backend string, destructive, requiresApproval bool, outcome, detail string) (Entry, error) {
	entry := Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Actor:       actor,
		Role:        role,
		Tool:        tool,
		Backend:     backend,
		Destructive: destructive,
		Approved:    !requiresApproval,
		Outcome:     outcome,
		Detail:      detail,
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return entry, err
	}
	if requiresApproval {
		l.bus.RequestApproval(ctx, map[string]any{
			"audit_id": entry.ID,
			"actor":    actor,
			"tool":     tool,
			"backend":  backend,
			"role":     role,
		})
		return entry, &ApprovalRequired{Tool: tool}
	}
	return entry, nil
}

// Recent returns the most recently appended entries, most recent
// first, bounded by limit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return l.store.Recent(ctx, limit)
}
