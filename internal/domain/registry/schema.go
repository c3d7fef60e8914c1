package registry

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// compiledSchema pairs a tool's input and (optional) output JSON Schema,
// resolved once at registration time so tools/call never pays parse or
// resolution cost on the hot path.
type compiledSchema struct {
	input  *jsonschema.Resolved
	output *jsonschema.Resolved
}

// compileSchema resolves a tool's raw input/output schema documents.
// output may be nil.
func compileSchema(input, output json.RawMessage) (*compiledSchema, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("input schema is required")
	}
	resolvedIn, err := resolveSchema(input)
	if err != nil {
		return nil, fmt.Errorf("input schema: %w", err)
	}
	cs := &compiledSchema{input: resolvedIn}
	if len(output) > 0 {
		resolvedOut, err := resolveSchema(output)
		if err != nil {
			return nil, fmt.Errorf("output schema: %w", err)
		}
		cs.output = resolvedOut
	}
	return cs, nil
}

func resolveSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	return resolved, nil
}

// ValidateArguments checks raw tool-call arguments against the compiled
// input schema. An empty/nil raw is treated as an empty JSON object so
// tools with no required properties accept a bare "tools/call" with no
// "arguments" field.
func (cs *compiledSchema) ValidateArguments(raw json.RawMessage) error {
	if cs == nil || cs.input == nil {
		return nil
	}
	var instance any
	if len(raw) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return cs.input.Validate(instance)
}

// ValidateStructuredOutput checks a handler's structured result against
// the tool's declared output schema, if any.
func (cs *compiledSchema) ValidateStructuredOutput(raw json.RawMessage) error {
	if cs == nil || cs.output == nil || len(raw) == 0 {
		return nil
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("decode structured content: %w", err)
	}
	return cs.output.Validate(instance)
}
