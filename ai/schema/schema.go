// Package schema compiles JSON Schema documents used to constrain structured
// completions and validates completion payloads against them.
package schema

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/teranos/newsdesk/errors"
)

// ErrSchemaViolation is returned when a payload does not satisfy its schema
var ErrSchemaViolation = errors.New("payload does not match schema")

// Schema is a compiled JSON Schema together with the document it was built from.
// The document is sent to the completion service; the compiled form validates replies.
type Schema struct {
	name     string
	document map[string]any
	compiled *jsonschema.Schema
}

// Compile builds a Schema from a JSON Schema document
func Compile(name string, document map[string]any) (*Schema, error) {
	if name == "" {
		return nil, errors.New("schema name is required")
	}

	b, err := json.Marshal(document)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal schema %s", name)
	}

	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, errors.Wrapf(err, "failed to add schema %s", name)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile schema %s", name)
	}

	return &Schema{name: name, document: document, compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. Use for package-level schemas.
func MustCompile(name string, document map[string]any) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name
func (s *Schema) Name() string {
	return s.name
}

// Document returns the raw schema document
func (s *Schema) Document() map[string]any {
	return s.document
}

// Validate checks a raw JSON payload against the schema
func (s *Schema) Validate(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Mark(errors.Wrapf(err, "payload for %s is not valid JSON", s.name), ErrSchemaViolation)
	}
	if err := s.compiled.Validate(v); err != nil {
		return errors.Mark(errors.Wrapf(err, "payload for %s", s.name), ErrSchemaViolation)
	}
	return nil
}
