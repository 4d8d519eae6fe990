package manifest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://satd.local/schema/sAtddef-v2.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Schema returns the JSON schema the manifest is checked against.
func Schema() string {
	return schemaJSON
}

// Verify reads data back with a standard structured-text reader and checks
// the result against the manifest schema.
func Verify(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("manifest: verify: parse: %w", err)
	}

	// Normalise to JSON values so integer and map types match what the
	// schema validator expects.
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("manifest: verify: normalise: %w", err)
	}
	var instance any
	if err := json.Unmarshal(js, &instance); err != nil {
		return fmt.Errorf("manifest: verify: normalise: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("manifest: verify: compile schema: %w", err)
	}
	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("manifest: verify: %w", err)
	}
	return nil
}

// Decode reads a manifest into a Document.
func Decode(data []byte) (Document, error) {
	var wire struct {
		Document       `yaml:",inline"`
		GenerationDate string `yaml:"generationDate"`
	}
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return Document{}, fmt.Errorf("manifest: decode: %w", err)
	}
	doc := wire.Document
	if wire.GenerationDate != "" {
		ts, err := time.Parse(time.RFC3339, wire.GenerationDate)
		if err != nil {
			return Document{}, fmt.Errorf("manifest: decode generationDate: %w", err)
		}
		doc.GenerationDate = ts
	}
	return doc, nil
}
