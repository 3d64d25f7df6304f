// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema describes tool inputs as JSON Schema and validates raw
// model-produced arguments against them before a tool runs.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/invopop/jsonschema"

	"github.com/jllopis/scribe/pkg/errors"
)

// Field is the flattened, human-readable view of one top-level input property.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// Schema is a structural validator for tool input.
// A typed schema (built with For) also decodes validated input into its Go type.
type Schema struct {
	root   *jsonschema.Schema
	goType reflect.Type
	check  validator
}

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// For reflects T into a schema. Fields without `omitempty` are required;
// descriptions come from the `jsonschema_description` tag.
func For[T any]() *Schema {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return &Schema{root: &jsonschema.Schema{Type: "object"}}
	}
	root := reflector.ReflectFromType(typ)
	root.Version = ""
	return &Schema{root: root, goType: typ}
}

// FromJSONSchema wraps a hand-built schema. Validated input is passed to the
// tool as map[string]any.
func FromJSONSchema(root *jsonschema.Schema) *Schema {
	if root == nil {
		root = &jsonschema.Schema{Type: "object"}
	}
	return &Schema{root: root}
}

// Root returns the underlying JSON Schema. Treat it as read-only.
func (s *Schema) Root() *jsonschema.Schema {
	return s.root
}

// JSON returns the schema document advertised to models.
func (s *Schema) JSON() json.RawMessage {
	data, err := json.Marshal(s.root)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// Fields lists top-level properties in declaration order.
func (s *Schema) Fields() []Field {
	if s.root == nil || s.root.Properties == nil {
		return nil
	}
	required := make(map[string]bool, len(s.root.Required))
	for _, name := range s.root.Required {
		required[name] = true
	}
	fields := make([]Field, 0, s.root.Properties.Len())
	for pair := s.root.Properties.Oldest(); pair != nil; pair = pair.Next() {
		fields = append(fields, Field{
			Name:        pair.Key,
			Type:        typeName(pair.Value),
			Required:    required[pair.Key],
			Description: pair.Value.Description,
		})
	}
	return fields
}

// Decode validates raw against the schema and returns the coerced input:
// a value of the reflected Go type for typed schemas, map[string]any otherwise.
// Validation failures are reported as a single INVALID_TOOL_INPUT error
// carrying every violation found.
func (s *Schema) Decode(raw any) (any, error) {
	data, value, err := normalize(raw)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidToolInput, "input is not a JSON object", nil).
			WithViolations(errors.Violation{Message: err.Error()})
	}
	violations, err := s.violations(data)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, errors.New(errors.CodeInvalidToolInput, "input does not match schema", nil).
			WithViolations(violations...)
	}
	if s.goType == nil {
		return value, nil
	}

	ptr := reflect.New(s.goType)
	if err := jsonv2.Unmarshal(data, ptr.Interface(), jsonv2.RejectUnknownMembers(true)); err != nil {
		return nil, errors.New(errors.CodeInvalidToolInput, "input could not be decoded", nil).
			WithViolations(errors.Violation{Message: err.Error()})
	}
	return ptr.Elem().Interface(), nil
}

// Validate reports violations without decoding.
func (s *Schema) Validate(raw any) []errors.Violation {
	data, _, err := normalize(raw)
	if err != nil {
		return []errors.Violation{{Message: err.Error()}}
	}
	violations, err := s.violations(data)
	if err != nil {
		return []errors.Violation{{Message: err.Error()}}
	}
	return violations
}

func (s *Schema) violations(data []byte) ([]errors.Violation, error) {
	compiled, err := s.check.get(s.JSON)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "tool input schema does not compile", err)
	}
	violations, err := check(compiled, data)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidToolInput, "input could not be validated", nil).
			WithViolations(errors.Violation{Message: err.Error()})
	}
	return violations, nil
}

func typeName(s *jsonschema.Schema) string {
	if s == nil {
		return "any"
	}
	if s.Type == "array" && s.Items != nil && s.Items.Type != "" {
		return "array<" + s.Items.Type + ">"
	}
	if s.Type == "" {
		return "any"
	}
	return s.Type
}

// normalize turns the accepted raw input shapes into canonical JSON bytes and
// their generic decoded form.
func normalize(raw any) ([]byte, any, error) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		data = []byte("{}")
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("unsupported input type %T", raw)
		}
		data = encoded
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return data, value, nil
}
