package templates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/docgen/backend/internal/domain/document"
)

//go:embed definition.schema.json
var definitionSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definitionSchema))
	})
	return compiledSchema, schemaErr
}

// ParseDefinition checks a JSON template definition against the definition
// schema, decodes it and runs the domain consistency checks.
func ParseDefinition(data []byte) (*document.TemplateDefinition, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("definition is not valid JSON: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("definition does not match schema: %s", strings.Join(errs, "; "))
	}

	var def document.TemplateDefinition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	if def.Status == "" {
		def.Status = document.TemplateStatusActive
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// MarshalDefinition encodes a definition in the form ParseDefinition reads
func MarshalDefinition(def *document.TemplateDefinition) ([]byte, error) {
	return json.Marshal(def)
}
