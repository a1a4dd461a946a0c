package mcpserver

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// rawSchemas holds the JSON Schema source for every INFER tool
// whose parameters carry numeric/enum bounds worth enforcing before
// dispatch, mirroring the Pydantic field constraints of the original
// implementation (e.g. window_seconds: ge=30, le=3600).
var rawSchemas = map[string]string{
	"infer_correlate_events": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"window_seconds": {"type": "integer", "minimum": 30, "maximum": 3600},
			"min_severity": {"type": "string", "enum": ["info", "low", "medium", "high", "critical"]},
			"platforms": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	"infer_detect_anomalies": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"lookback_minutes": {"type": "integer", "minimum": 5, "maximum": 1440},
			"min_confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
	"infer_predict_failures": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"lookback_minutes": {"type": "integer", "minimum": 5, "maximum": 240}
		}
	}`,
	"infer_get_incident_timeline": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"hours": {"type": "integer", "minimum": 1, "maximum": 168},
			"min_severity": {"type": "string", "enum": ["info", "low", "medium", "high", "critical"]}
		}
	}`,
	"infer_network_risk_score": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"include_anomalies": {"type": "boolean"},
			"include_predictions": {"type": "boolean"}
		}
	}`,
	"infer_root_cause_analysis": `{
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"window_seconds": {"type": "integer", "minimum": 30, "maximum": 3600},
			"correlation_id": {"type": "string"}
		}
	}`,
}

type schemaSet struct {
	compiled map[string]*jsonschema.Schema
}

func newSchemaSet() (*schemaSet, error) {
	set := &schemaSet{compiled: make(map[string]*jsonschema.Schema, len(rawSchemas))}
	for name, raw := range rawSchemas {
		compiler := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
		if err != nil {
			return nil, fmt.Errorf("parse schema for %s: %w", name, err)
		}
		resourceURI := "mem://" + name + ".json"
		if err := compiler.AddResource(resourceURI, doc); err != nil {
			return nil, fmt.Errorf("add schema resource for %s: %w", name, err)
		}
		sch, err := compiler.Compile(resourceURI)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", name, err)
		}
		set.compiled[name] = sch
	}
	return set, nil
}

// Validate checks arguments (already decoded to a generic any via
// json.Unmarshal) against tool's schema, if one is registered. Tools
// without a registered schema are not validated — their arguments are
// either empty or validated structurally by their handler.
func (s *schemaSet) Validate(tool string, arguments any) error {
	sch, ok := s.compiled[tool]
	if !ok {
		return nil
	}
	return sch.Validate(arguments)
}
