package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the minimal structural contract for a model reply: a JSON
// object carrying an "extracted" object. Field values stay free-form; the
// merger and record builder tolerate nulls and wrong-typed noise.
var responseSchema = map[string]any{
	"type":     "object",
	"required": []string{"extracted"},
	"properties": map[string]any{
		"extracted": map[string]any{"type": "object"},
		"evidence":  map[string]any{"type": "object"},
	},
}

// ValidateAgainstSchema validates a decoded JSON value against a schema map.
func ValidateAgainstSchema(schemaMap map[string]any, v any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
