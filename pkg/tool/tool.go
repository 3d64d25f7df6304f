// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package tool holds named, schema-validated capabilities that an
// orchestrator invokes on behalf of a model.
package tool

import (
	"context"
	"fmt"

	"github.com/jllopis/scribe/pkg/llm"
	"github.com/jllopis/scribe/pkg/schema"
)

// ExecuteFunc runs a tool with input already validated and coerced by the
// definition's schema. Expected failures are returned, not panicked.
type ExecuteFunc func(ctx context.Context, input any) (any, error)

// Definition describes a tool registered in a Registry.
type Definition struct {
	// Name is the unique key within a registry (e.g. "search_sessions").
	Name string
	// Description is LLM-facing documentation.
	Description string
	// Schema validates raw input before Execute is called.
	Schema *schema.Schema
	// Execute performs the tool's work.
	Execute ExecuteFunc
}

// New builds a Definition whose schema is reflected from In. Execute receives
// the decoded In value.
func New[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) Definition {
	return Definition{
		Name:        name,
		Description: description,
		Schema:      schema.For[In](),
		Execute: func(ctx context.Context, input any) (any, error) {
			in, ok := input.(In)
			if !ok {
				return nil, fmt.Errorf("tool %s: unexpected input type %T", name, input)
			}
			return fn(ctx, in)
		},
	}
}

// LLMTool converts the definition into a function declaration for a model.
func (d Definition) LLMTool() llm.Tool {
	var params any
	if d.Schema != nil {
		params = d.Schema.JSON()
	}
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		},
	}
}
