package mcpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/capability"
	"github.com/keewillidevnet/miga-mcp-gateway/internal/fanout"
)

// renderOutcome renders a fan-out Outcome as the Markdown document the
// Meta-tool surface contract requires: success is a Markdown string,
// and a routing-miss or an unreachable tool renders as a ❌-prefixed
// message rather than a JSON-RPC error.
func renderOutcome(role capability.Role, outcome fanout.Outcome) string {
	label := surfaceLabel(role)
	switch outcome.Mode {
	case fanout.ModeNotFound:
		return fmt.Sprintf("❌ Tool `%s` not found in the routing table.", outcome.Tool)
	case fanout.ModeEmpty:
		return fmt.Sprintf("No tools available for **%s**.", label)
	case fanout.ModeListing:
		return renderListing(label, outcome.Entries)
	case fanout.ModeDirect:
		r := outcome.Results[0]
		if r.Err != nil {
			return "❌ " + fanout.Truncate(r.Err.Error())
		}
		return prettyJSON(r.Value)
	case fanout.ModeBroadcast:
		return renderBroadcast(label, outcome.Results)
	default:
		return fmt.Sprintf("❌ unrecognized fan-out outcome for **%s**.", label)
	}
}

// renderListing renders a discoverability list of every entry
// reachable for the scope, used when nothing among them is
// broadcastable — a 🔒 marks tools that require approval.
func renderListing(label string, entries []capability.RoutingEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — Available Tools\n\n", label)
	for _, e := range entries {
		lock := ""
		if e.Capability.RequiresApproval {
			lock = " 🔒"
		}
		fmt.Fprintf(&b, "- `%s` (%s)%s", e.Tool, e.Backend.Name, lock)
		if e.Capability.Description != "" {
			fmt.Fprintf(&b, " — %s", e.Capability.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderBroadcast aggregates a broadcast's per-backend results into a
// Markdown document with one heading per backend, truncating each
// backend's rendered body to the result truncation cap.
func renderBroadcast(label string, results []fanout.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — Cross-Platform Summary\n\n", label)
	for _, r := range results {
		fmt.Fprintf(&b, "### %s (%s)\n\n", r.Backend, r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "❌ %s\n\n", fanout.Truncate(r.Err.Error()))
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", fanout.Truncate(prettyJSON(r.Value)))
	}
	return b.String()
}

// surfaceLabel names a role (or, for the empty role used by
// network_status, the cross-role surface itself) for a Markdown
// heading.
func surfaceLabel(role capability.Role) string {
	if role == "" {
		return "Network Status"
	}
	s := string(role)
	return strings.ToUpper(s[:1]) + s[1:]
}

// prettyJSON indents raw JSON for Markdown display, falling back to
// the raw bytes unchanged if they don't parse as JSON.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
