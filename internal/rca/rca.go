// Package rca implements the root-cause-analysis matcher: an ordered
// catalog of declarative templates, each matched against a
// correlation group by platform subset and per-signal severity rank.
package rca

import (
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/keewillidevnet/miga-mcp-gateway/internal/correlate"
)

// Signal names a platform/event-type/minimum-severity triple a
// template expects to see represented in a correlation group.
type Signal struct {
	Platform     string `yaml:"platform"`
	EventType    string `yaml:"event_type"`
	MinSeverity  string `yaml:"min_severity"`
}

// Template is one declarative root-cause template.
type Template struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Platforms          []string `yaml:"platforms"`
	Signals            []Signal `yaml:"signals"`
	RootCause          string   `yaml:"root_cause"`
	RecommendedActions []string `yaml:"recommended_actions"`
}

// Catalog is an ordered list of templates; match order follows
// catalog order, first full match wins.
type Catalog struct {
	Templates []Template `yaml:"templates"`
}

// LoadCatalog reads a YAML-encoded template catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

var severityRank = map[string]int{
	"critical": 5,
	"high":     4,
	"medium":   3,
	"low":      2,
	"info":     1,
	"unknown":  0,
}

// Match is a template matched against a correlation group, carrying
// the computed confidence and the number of signals that matched.
type Match struct {
	Template       Template
	Confidence     float64
	MatchedSignals int
}

// MatchRootCause scans the catalog in order and returns the first
// template whose platform set is a subset of the group's platforms
// and whose signals all match an event in the group at or above the
// signal's minimum severity. Confidence is 0.85 plus 0.05 per
// matched signal, capped at 1.0.
func (c *Catalog) MatchRootCause(group correlate.Group) (Match, bool) {
	platformSet := toSet(group.Platforms)
	for _, tmpl := range c.Templates {
		if !isSubset(tmpl.Platforms, platformSet) {
			continue
		}
		matched := 0
		allMatch := true
		for _, sig := range tmpl.Signals {
			if signalMatches(sig, group) {
				matched++
			} else {
				allMatch = false
				break
			}
		}
		if allMatch && matched == len(tmpl.Signals) {
			confidence := 0.85 + 0.05*float64(matched)
			if confidence > 1.0 {
				confidence = 1.0
			}
			return Match{Template: tmpl, Confidence: confidence, MatchedSignals: matched}, true
		}
	}
	return Match{}, false
}

func signalMatches(sig Signal, group correlate.Group) bool {
	for _, ev := range group.Events {
		if ev.Platform != sig.Platform {
			continue
		}
		if sig.EventType != "" && ev.EventType != sig.EventType {
			continue
		}
		if severityRank[ev.Severity] >= severityRank[sig.MinSeverity] {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func isSubset(candidates []string, set map[string]struct{}) bool {
	for _, c := range candidates {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}

// IDs returns every template id, sorted alphabetically, useful for tests
// asserting catalog completeness.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Templates))
	for i, t := range c.Templates {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return ids
}
