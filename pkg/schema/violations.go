// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jllopis/scribe/pkg/errors"
)

const resourceURL = "scribe://tool-input.json"

var printer = message.NewPrinter(language.English)

// compile turns the advertised document into a validator. Formats are
// asserted so date-time fields reject free text.
func compile(doc json.RawMessage) (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(resourceURL, parsed); err != nil {
		return nil, err
	}
	return c.Compile(resourceURL)
}

// check validates data, returning one violation per failed leaf keyword
// sorted by field.
func check(compiled *jsonschema.Schema, data []byte) ([]errors.Violation, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	err = compiled.Validate(instance)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !stderrors.As(err, &ve) {
		return nil, err
	}
	var out []errors.Violation
	collect(ve, instance, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

func collect(ve *jsonschema.ValidationError, instance any, out *[]errors.Violation) {
	switch ve.ErrorKind.(type) {
	case *kind.AnyOf, *kind.OneOf:
		// Report why the first alternative failed rather than every branch.
		if len(ve.Causes) > 0 {
			collect(ve.Causes[0], instance, out)
			return
		}
	}
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			collect(cause, instance, out)
		}
		return
	}
	*out = append(*out, violationsOf(ve, instance)...)
}

func violationsOf(ve *jsonschema.ValidationError, instance any) []errors.Violation {
	field, value := locate(instance, ve.InstanceLocation)
	switch k := ve.ErrorKind.(type) {
	case *kind.Required:
		out := make([]errors.Violation, len(k.Missing))
		for i, name := range k.Missing {
			out[i] = errors.Violation{Field: join(field, name), Message: "is required"}
		}
		return out
	case *kind.AdditionalProperties:
		out := make([]errors.Violation, len(k.Properties))
		for i, name := range k.Properties {
			out[i] = errors.Violation{Field: join(field, name), Message: "is not a known field"}
		}
		return out
	case *kind.Type:
		return []errors.Violation{{
			Field:   field,
			Message: fmt.Sprintf("expected %s, got %s", strings.Join(k.Want, " or "), jsonTypeOf(value)),
		}}
	case *kind.Format:
		msg := "must be a valid " + k.Want
		if k.Want == "date-time" {
			msg = "must be an RFC 3339 date-time"
		}
		return []errors.Violation{{Field: field, Message: msg}}
	case *kind.Enum:
		return []errors.Violation{{Field: field, Message: fmt.Sprintf("must be one of %v", k.Want)}}
	case *kind.FalseSchema:
		return []errors.Violation{{Field: field, Message: "is not allowed"}}
	default:
		return []errors.Violation{{Field: field, Message: ve.ErrorKind.LocalizedString(printer)}}
	}
}

// locate resolves an instance location to a dotted field path ("a.b[2]")
// and the value found there.
func locate(instance any, location []string) (string, any) {
	var path strings.Builder
	value := instance
	for _, token := range location {
		switch v := value.(type) {
		case []any:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(v) {
				return appendKey(&path, token), nil
			}
			fmt.Fprintf(&path, "[%d]", i)
			value = v[i]
		case map[string]any:
			appendKey(&path, token)
			value = v[token]
		default:
			appendKey(&path, token)
			value = nil
		}
	}
	return path.String(), value
}

func appendKey(path *strings.Builder, key string) string {
	if path.Len() > 0 {
		path.WriteByte('.')
	}
	path.WriteString(key)
	return path.String()
}

// jsonTypeOf names the JSON type of a value decoded by jsonschema.UnmarshalJSON.
// Integral numbers report as integer.
func jsonTypeOf(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// validator compiles the schema document on first use.
type validator struct {
	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

func (v *validator) get(doc func() json.RawMessage) (*jsonschema.Schema, error) {
	v.once.Do(func() {
		v.compiled, v.err = compile(doc())
	})
	return v.compiled, v.err
}
