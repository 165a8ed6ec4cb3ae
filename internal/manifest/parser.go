package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "plugin.schema.json"

// JSONParser validates manifests against the embedded schema before
// decoding them.
type JSONParser struct {
	schema *jsonschema.Schema
}

var _ Parser = (*JSONParser)(nil)

// NewJSONParser compiles the embedded manifest schema.
func NewJSONParser() (*JSONParser, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded manifest schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to register manifest schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", err)
	}

	return &JSONParser{schema: schema}, nil
}

// Parse validates data against the manifest schema and decodes it.
func (p *JSONParser) Parse(data []byte) (*Manifest, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if err := p.schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("manifest failed schema validation: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
