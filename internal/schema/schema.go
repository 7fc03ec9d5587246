// Package schema defines the grading output contract: the JSON schema
// passed to the backend when structured output is requested, and a
// compiled validator used to report shape violations as warnings.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Name identifies the structured-output schema on the wire.
const Name = "qc_result"

// defaultPrinter formats schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// compiled is the validator for [Target], built once at init.
var compiled *jsonschema.Schema

func init() {
	compiled = mustCompile()
}

// Target returns the required output shape. The same descriptor is sent
// to the structured-output backend path and embedded textually in the
// JSON-mode fallback instruction; the normalizer enforces the contract
// manually regardless of which path produced the text.
func Target() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score": map[string]any{"type": "number"},
			"verdict": map[string]any{
				"type": "string",
				"enum": []any{"PASS", "NEEDS_REVIEW", "FAIL"},
			},
			"summary": map[string]any{"type": "string"},
			"red_flags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"per_metric": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":        map[string]any{"type": "string"},
						"name":      map[string]any{"type": "string"},
						"weight":    map[string]any{"type": "number"},
						"score":     map[string]any{"type": "number"},
						"rationale": map[string]any{"type": "string"},
						"evidence": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"quote":      map[string]any{"type": "string"},
									"start_time": map[string]any{"type": "string"},
									"end_time":   map[string]any{"type": "string"},
								},
								"required": []any{"quote"},
							},
						},
					},
					"required": []any{"id", "score"},
				},
			},
		},
		"required": []any{"overall_score", "verdict", "per_metric"},
	}
}

// TargetJSON returns the schema serialized for embedding in a prompt.
func TargetJSON() string {
	data, err := json.Marshal(map[string]any{
		"name":   Name,
		"schema": Target(),
	})
	if err != nil {
		// Target is a static literal; marshalling it cannot fail.
		panic(fmt.Sprintf("serializing target schema: %v", err))
	}
	return string(data)
}

// Check validates a decoded value against the target schema and returns
// human-readable failures. An empty slice means the value conforms.
// These are advisory: the normalizer recovers from shape violations
// rather than rejecting them.
func Check(value any) []string {
	err := compiled.Validate(value)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var failures []string
	collectFailures(ve, &failures)
	return failures
}

func collectFailures(ve *jsonschema.ValidationError, failures *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*failures = append(*failures, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectFailures(c, failures)
	}
}

func mustCompile() *jsonschema.Schema {
	// Round-trip through JSON so the compiler sees json.Number-free
	// generic values consistent with decoded model output.
	raw, err := json.Marshal(Target())
	if err != nil {
		panic(fmt.Sprintf("failed to serialize %s schema: %v", Name, err))
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		panic(fmt.Sprintf("failed to parse %s schema: %v", Name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(Name+".schema.json", doc); err != nil {
		panic(fmt.Sprintf("failed to add %s schema resource: %v", Name, err))
	}

	sch, err := compiler.Compile(Name + ".schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s schema: %v", Name, err))
	}
	return sch
}
