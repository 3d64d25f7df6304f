// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/llm"
	"github.com/jllopis/scribe/pkg/telemetry"
)

// Result is the discriminated outcome of an invocation. Exactly one of
// Output (when Err is nil) or Err is meaningful.
type Result struct {
	Tool     string
	Output   any
	Err      *errors.ScribeError
	Duration time.Duration
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Registry maps tool names to definitions.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Definition
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records invocation counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]Definition),
		logger: slog.Default(),
		tracer: otel.Tracer("scribe/tool"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds def. A name that is already present fails with
// DUPLICATE_TOOL_NAME and leaves the existing tool in place.
func (r *Registry) Register(def Definition) error {
	if err := checkDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return errors.New(errors.CodeDuplicateToolName, fmt.Sprintf("tool %q is already registered", def.Name), nil).
			WithContext("tool", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

// Replace registers def, overwriting any tool with the same name.
// Intended for tests that swap a tool's behavior.
func (r *Registry) Replace(def Definition) error {
	if err := checkDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	return nil
}

// Get returns the named definition or TOOL_NOT_FOUND.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	def, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, errors.New(errors.CodeToolNotFound, fmt.Sprintf("tool %q not found", name), nil).
			WithContext("tool", name)
	}
	return def, nil
}

// List returns a snapshot of all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	r.mu.RUnlock()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the registered tool names sorted.
func (r *Registry) Names() []string {
	defs := r.List()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}

// LLMTools advertises every registered tool as a function declaration.
func (r *Registry) LLMTools() []llm.Tool {
	defs := r.List()
	out := make([]llm.Tool, len(defs))
	for i, def := range defs {
		out[i] = def.LLMTool()
	}
	return out
}

// Invoke validates rawInput against the tool's schema and executes it.
// Every failure is returned in Result.Err; Invoke never panics.
func (r *Registry) Invoke(ctx context.Context, name string, rawInput any) Result {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "tool.invoke",
		trace.WithAttributes(attribute.String(telemetry.AttrToolName, name)))
	defer span.End()

	res := r.invoke(ctx, name, rawInput)
	res.Duration = time.Since(start)

	code := ""
	if res.Err != nil {
		code = string(res.Err.Code)
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Message)
		r.logger.WarnContext(ctx, "tool invocation failed",
			slog.String("tool", name),
			slog.String("code", code),
			slog.String("error", res.Err.Error()),
		)
	} else {
		span.SetStatus(codes.Ok, "")
		r.logger.DebugContext(ctx, "tool invoked",
			slog.String("tool", name),
			slog.Duration("duration", res.Duration),
		)
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrToolSuccess, res.OK()))
	r.metrics.RecordToolInvocation(ctx, name, code, res.Duration)
	return res
}

func (r *Registry) invoke(ctx context.Context, name string, rawInput any) Result {
	res := Result{Tool: name}
	def, err := r.Get(name)
	if err != nil {
		res.Err = errors.AsScribeError(err)
		return res
	}

	input := rawInput
	if def.Schema != nil {
		input, err = def.Schema.Decode(rawInput)
		if err != nil {
			res.Err = errors.AsScribeError(err).WithContext("tool", name)
			return res
		}
	}

	out, err := execute(ctx, def, input)
	if err != nil {
		res.Err = errors.New(errors.CodeToolExecutionFailed, fmt.Sprintf("tool %q failed", name), err).
			WithContext("tool", name)
		return res
	}
	res.Output = out
	return res
}

func execute(ctx context.Context, def Definition, input any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return def.Execute(ctx, input)
}

func checkDefinition(def Definition) error {
	if def.Name == "" {
		return errors.New(errors.CodeInternal, "tool name is required", nil)
	}
	if def.Execute == nil {
		return errors.New(errors.CodeInternal, fmt.Sprintf("tool %q has no executor", def.Name), nil)
	}
	return nil
}
