package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaValidator checks JSON documents against a compiled JSON schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the schema at path.
func NewSchemaValidator(path string) (*SchemaValidator, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("export: schema path cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read schema %q: %w", path, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("export: parse schema %q: %w", path, err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// ValidateBytes returns the first violation found in raw, if any.
func (v *SchemaValidator) ValidateBytes(raw []byte) error {
	if v == nil || v.schema == nil {
		return nil
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("export: schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return fmt.Errorf("export: schema validation failed")
	}
	return fmt.Errorf("export: schema validation failed: %s", result.Errors()[0])
}
