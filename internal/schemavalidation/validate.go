// Package schemavalidation compiles and validates emitted SecurityEvents
// against the canonical on-disk JSON Schema (§6), grounded on the
// santhosh-tekuri/jsonschema/v5 compiler-and-validate shape used
// elsewhere in the example pack.
package schemavalidation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates arbitrary event payloads against a single compiled
// schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the schema at schemaPath into a Validator.
func New(schemaPath string) (*Validator, error) {
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("schemavalidation: read %s: %w", schemaPath, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schemavalidation: add resource %s: %w", schemaPath, err)
	}
	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("schemavalidation: compile %s: %w", schemaPath, err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateJSON parses payload as JSON and validates it against the
// compiled schema.
func (v *Validator) ValidateJSON(payload []byte) error {
	var instance any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("schemavalidation: unmarshal instance: %w", err)
	}
	return v.Validate(instance)
}

// Validate validates an already-decoded instance (map[string]any etc.)
// against the compiled schema.
func (v *Validator) Validate(instance any) error {
	if err := v.schema.Validate(instance); err != nil {
		return fmt.Errorf("schemavalidation: validation failed: %w", err)
	}
	return nil
}
