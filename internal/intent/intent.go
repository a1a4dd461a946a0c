// Package intent implements the intent classifier: an ordered table
// of regex rules mapped to role categories, confidences and optional
// platform hints, plus entity extraction over the raw text. Ordering
// and confidence values are a stable contract — scanning order and
// exact numbers must not change independently of a deliberate
// decision to revise the contract.
package intent

import (
	"regexp"
	"strings"
)

// Category names a classified intent. Six map directly to the role
// meta-tools; Status/Help/Unknown are handled outside the fan-out
// engine's role dispatch.
type Category string

const (
	CategoryObservability Category = "observability"
	CategorySecurity      Category = "security"
	CategoryAutomation    Category = "automation"
	CategoryConfiguration Category = "configuration"
	CategoryCompliance    Category = "compliance"
	CategoryIdentity      Category = "identity"
	CategoryStatus        Category = "network_status"
	CategoryHelp          Category = "help"
	CategoryUnknown       Category = "unknown"
)

// Parsed is the result of classifying one message.
type Parsed struct {
	Category   Category
	Platform   string
	Arguments  map[string][]string
	Confidence float64
	RawText    string
}

type rule struct {
	pattern    *regexp.Regexp
	category   Category
	platform   string
	confidence float64
}

// patternTable is the ordered rule list. Order and confidence values
// mirror the original classifier's contract exactly; do not reorder
// or renumber without a matching decision recorded for callers that
// depend on first-match-wins tie-breaking.
var patternTable = []rule{
	{regexp.MustCompile(`(?i)(?:network|overall)\s*(?:status|health|overview)`), CategoryStatus, "", 0.95},
	{regexp.MustCompile(`(?i)(?:is|are)\s+(?:the\s+)?(?:network|things)\s+(?:ok|healthy|up|down)`), CategoryStatus, "", 0.90},
	{regexp.MustCompile(`(?i)how(?:'s| is)\s+(?:the\s+)?network`), CategoryStatus, "", 0.90},

	{regexp.MustCompile(`(?i)(?:meraki|dashboard)\s+(?:health|status|overview|devices)`), CategoryObservability, "meraki", 0.90},
	{regexp.MustCompile(`(?i)(?:catalyst|dnac?|catalyst.center)\s+(?:health|status|issues?|devices?)`), CategoryObservability, "catalyst_center", 0.90},
	{regexp.MustCompile(`(?i)(?:thousandeyes|te|path)\s+(?:health|status|tests?|alerts?)`), CategoryObservability, "thousandeyes", 0.90},
	{regexp.MustCompile(`(?i)(?:wireless|wifi|wi-fi)\s+(?:health|status|clients?)`), CategoryObservability, "meraki", 0.85},

	{regexp.MustCompile(`(?i)(?:security|threat|xdr)\s+(?:events?|incidents?|alerts?|threats?)`), CategorySecurity, "xdr", 0.90},
	{regexp.MustCompile(`(?i)(?:malware|amp|ids|ips)\s+(?:events?|detections?|alerts?)`), CategorySecurity, "", 0.90},
	{regexp.MustCompile(`(?i)(?:lateral\s+movement|suspicious|anomal)`), CategorySecurity, "", 0.85},
	{regexp.MustCompile(`(?i)(?:firewall|fw)\s+(?:rules?|policies?|status)`), CategorySecurity, "security_cloud_control", 0.85},
	{regexp.MustCompile(`(?i)(?:hypershield|ebpf)\s+(?:status|enforcement|flows?)`), CategorySecurity, "hypershield", 0.85},

	{regexp.MustCompile(`(?i)(?:correlat|root.cause|rca)`), CategoryObservability, "infer", 0.90},
	{regexp.MustCompile(`(?i)(?:predict|forecast)\s+(?:fail|outage|incident)`), CategoryObservability, "infer", 0.90},
	{regexp.MustCompile(`(?i)(?:anomal|unusual|abnormal)\s+(?:pattern|behavior|traffic)`), CategoryObservability, "infer", 0.85},
	{regexp.MustCompile(`(?i)risk\s+score`), CategoryCompliance, "infer", 0.90},

	{regexp.MustCompile(`(?i)(?:run|execute)\s+(?:command|cli|show)`), CategoryAutomation, "catalyst_center", 0.90},
	{regexp.MustCompile(`(?i)(?:remediat|fix|restart|reboot)`), CategoryAutomation, "", 0.80},
	{regexp.MustCompile(`(?i)quarantine\s+(?:endpoint|device|mac)`), CategoryAutomation, "ise", 0.90},

	{regexp.MustCompile(`(?i)(?:show|get)\s+(?:config|configuration|running)`), CategoryConfiguration, "", 0.85},
	{regexp.MustCompile(`(?i)(?:topology|site.hierarchy|fabric)`), CategoryConfiguration, "", 0.80},
	{regexp.MustCompile(`(?i)(?:list|show)\s+(?:networks?|devices?|inventory)`), CategoryConfiguration, "", 0.80},

	{regexp.MustCompile(`(?i)(?:compliance|posture|audit|certificate)`), CategoryCompliance, "", 0.85},
	{regexp.MustCompile(`(?i)(?:policy\s+drift|regulatory)`), CategoryCompliance, "", 0.80},

	{regexp.MustCompile(`(?i)(?:who|session|authentication|radius|dot1x)`), CategoryIdentity, "ise", 0.85},
	{regexp.MustCompile(`(?i)(?:profil|endpoint\s+type|device\s+type)`), CategoryIdentity, "ise", 0.80},

	{regexp.MustCompile(`(?i)(?:help|what\s+can\s+you|capabilities|tools?|commands?)`), CategoryHelp, "", 0.95},
}

type entityRule struct {
	name    string
	pattern *regexp.Regexp
}

var entityPatterns = []entityRule{
	{"ip_address", regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)},
	{"mac_address", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`)},
	{"hostname", regexp.MustCompile(`(?i)\b(?:switch|router|ap|wlc|fw|leaf|spine)[-_][\w-]+\b`)},
	{"network_id", regexp.MustCompile(`\b[LN]_\d+\b`)},
	{"device_id", regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)},
	{"severity", regexp.MustCompile(`(?i)\b(critical|high|medium|low|p[1-4])\b`)},
}

// Recognize classifies text against the ordered pattern table,
// keeping the highest-confidence match and, among ties, the earliest
// row scanned (strict greater-than keeps the first hit). It then
// extracts every non-empty entity match into the result's Arguments.
func Recognize(text string) Parsed {
	normalized := strings.ToLower(strings.TrimSpace(text))

	best := Parsed{Category: CategoryUnknown, Confidence: 0.0, RawText: text}
	haveBest := false
	for _, r := range patternTable {
		if r.pattern.MatchString(normalized) {
			if !haveBest || r.confidence > best.Confidence {
				best = Parsed{Category: r.category, Platform: r.platform, Confidence: r.confidence, RawText: text}
				haveBest = true
			}
		}
	}

	best.Arguments = make(map[string][]string)
	for _, er := range entityPatterns {
		matches := er.pattern.FindAllString(normalized, -1)
		if len(matches) > 0 {
			best.Arguments[er.name] = matches
		}
	}
	return best
}

// HelpText returns the static capability summary surfaced for the
// help category, mirroring the original WebEx bot's format_help.
func HelpText() string {
	return `## MIGA — What can I do?

**Quick Status:**
- "How's the network?" — Cross-platform health overview
- "Network status" — All servers connectivity check

**Observability:**
- "Meraki health" / "Catalyst Center issues" / "ThousandEyes status"
- "Wireless client health" / "Show me network health"
- "Any anomalies?" / "Run correlation" / "Root cause analysis"

**Security:**
- "Security events" / "XDR threats" / "Malware detections"
- "Firewall policy status" / "Hypershield enforcement"
- "Risk score" — INFER network-wide risk assessment

**Configuration:**
- "List devices" / "Show topology" / "Get device config"
- "List Meraki networks"

**Automation:**
- "Run show version on [device]" (requires approval)
- "Quarantine endpoint [MAC]" (requires approval)

**Compliance:**
- "Posture status" / "Certificate expiry" / "Compliance audit"

**Identity:**
- "Active sessions" / "Auth failures" / "Profiled endpoints"
`
}
