package devices

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/fgpanels/switchpanel/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/mapping-v1.json
var mappingSchemaJSON string

type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("mapping-v1.json",
		strings.NewReader(mappingSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("mapping-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDocument validates raw JSON against the mapping schema.
func (v *Validator) ValidateDocument(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// ValidateDefinition validates a decoded mapping, whatever format it came from.
func (v *Validator) ValidateDefinition(def *types.MappingDefinition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	return v.ValidateDocument(data)
}
