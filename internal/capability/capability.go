// Package capability implements the dynamic routing fabric's data
// model: capability records, backend records, routing entries and
// the routing table itself. A routing table is rebuilt wholesale on
// every refresh and swapped in atomically so concurrent readers never
// observe a partially-built table.
package capability

import "time"

// Role names a meta-tool surface. These six plus "network_status"
// exhaust the fan-out engine's dispatch surface.
type Role string

const (
	RoleObservability Role = "observability"
	RoleSecurity      Role = "security"
	RoleAutomation    Role = "automation"
	RoleConfiguration Role = "configuration"
	RoleCompliance    Role = "compliance"
	RoleIdentity      Role = "identity"
)

// Capability describes a single tool a backend exposes: its name, the
// roles that may invoke it, whether invoking it requires human
// approval, and a human-readable description surfaced in
// discoverability listings.
type Capability struct {
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	Roles             []Role   `json:"roles" yaml:"roles"`
	RequiresApproval  bool     `json:"requires_approval" yaml:"requires_approval"`
	Destructive       bool     `json:"destructive" yaml:"destructive"`
}

// BackendRecord is the canonical registration shape for a platform
// backend, modeled on the directory's OASF record: a name, a
// transport endpoint, the platform it fronts, and the capabilities it
// exposes.
type BackendRecord struct {
	Name         string       `json:"name" yaml:"name"`
	Platform     string       `json:"platform" yaml:"platform"`
	Endpoint     string       `json:"endpoint" yaml:"endpoint"`
	Roles        []Role       `json:"roles" yaml:"roles"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
	// Qualify, when true, causes tool names from this backend to also
	// be addressable as "<name>.<tool>" in addition to the plain name,
	// resolving genuine operator-declared namespace collisions.
	Qualify bool `json:"qualify" yaml:"qualify"`
}

// RoutingEntry binds one tool name to the backend that serves it.
type RoutingEntry struct {
	Tool       string
	Backend    BackendRecord
	Capability Capability
}

// RoutingTable is an immutable snapshot of every routable tool. A new
// table is built in full on every refresh and then swapped in; it is
// never mutated in place, so readers holding a *RoutingTable never
// need to lock.
type RoutingTable struct {
	entries     map[string]RoutingEntry
	byRole      map[Role][]RoutingEntry
	backends    []BackendRecord
	lastRefresh time.Time
}

// Build constructs a RoutingTable from a set of backend records.
// Duplicate plain tool names across backends resolve last-wins, in
// registration order; a backend marked Qualify also publishes its
// tools under "<name>.<tool>" so a collision does not hide either
// backend's tool entirely.
func Build(backends []BackendRecord, now time.Time) *RoutingTable {
	t := &RoutingTable{
		entries:     make(map[string]RoutingEntry),
		byRole:      make(map[Role][]RoutingEntry),
		backends:    append([]BackendRecord(nil), backends...),
		lastRefresh: now,
	}
	for _, be := range backends {
		for _, cap := range be.Capabilities {
			entry := RoutingEntry{Tool: cap.Name, Backend: be, Capability: cap}
			t.entries[cap.Name] = entry
			if be.Qualify {
				t.entries[be.Name+"."+cap.Name] = entry
			}
			for _, role := range cap.Roles {
				t.byRole[role] = append(t.byRole[role], entry)
			}
		}
	}
	return t
}

// GetTool resolves a tool name to its routing entry.
func (t *RoutingTable) GetTool(name string) (RoutingEntry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// ToolsForRole returns every routing entry reachable by a role,
// in registration order.
func (t *RoutingTable) ToolsForRole(role Role) []RoutingEntry {
	return append([]RoutingEntry(nil), t.byRole[role]...)
}

// ToolsForPlatform returns every routing entry served by backends
// fronting the given platform.
func (t *RoutingTable) ToolsForPlatform(platform string) []RoutingEntry {
	var out []RoutingEntry
	for _, e := range t.entries {
		if e.Backend.Platform == platform {
			out = append(out, e)
		}
	}
	return out
}

// AllEntries returns every distinct (backend, tool) routing entry in
// the table, deduplicating the qualified "<backend>.<tool>" aliases
// that share an entry with their plain name. Used by cross-role
// surfaces like network_status that fan out across the whole table
// rather than a single role's subset.
func (t *RoutingTable) AllEntries() []RoutingEntry {
	seen := make(map[string]bool, len(t.entries))
	out := make([]RoutingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		key := e.Backend.Name + ":" + e.Tool
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// AllBackends returns every backend record in the table.
func (t *RoutingTable) AllBackends() []BackendRecord {
	return append([]BackendRecord(nil), t.backends...)
}

// LastRefresh reports when this table snapshot was built.
func (t *RoutingTable) LastRefresh() time.Time { return t.lastRefresh }

// ToolCount reports the number of distinct addressable tool names
// (including qualified aliases).
func (t *RoutingTable) ToolCount() int { return len(t.entries) }
