// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator drives a model stream for one task, translating text
// deltas, tool calls and tool results into task store transitions.
package orchestrator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/llm"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/telemetry"
	"github.com/jllopis/scribe/pkg/tool"
)

// DefaultMaxRounds bounds the generate/tool-call loop of one run.
const DefaultMaxRounds = 6

// Request describes one run.
type Request struct {
	Subject string
	Kind    task.Kind
	Prompt  string
	// History is prepended after the system prompt, e.g. earlier chat turns.
	History []llm.Message
}

// Outcome summarizes a finished run.
type Outcome struct {
	ID         task.ID
	Generation task.Generation
	// Status is the terminal status written by this run, empty when
	// Superseded.
	Status task.Status
	Text   string
	Err    *errors.ScribeError
	Rounds int
	// Superseded is set when a newer Start for the same task took over; the
	// run stopped without writing anything further.
	Superseded bool
}

// Runner is the single writer for the tasks it runs.
type Runner struct {
	store     task.Writer
	provider  llm.StreamingProvider
	tools     *tool.Registry
	model     string
	maxRounds int
	prompts   map[task.Kind]string
	toolsets  map[task.Kind][]string
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithModel sets the model name sent to the provider.
func WithModel(model string) Option {
	return func(r *Runner) { r.model = model }
}

// WithMaxRounds bounds the number of model calls per run.
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}

// WithSystemPrompt overrides the system prompt used for kind.
func WithSystemPrompt(kind task.Kind, prompt string) Option {
	return func(r *Runner) { r.prompts[kind] = prompt }
}

// WithKindTools sets which registered tools are offered for kind. No names
// means no tools.
func WithKindTools(kind task.Kind, names ...string) Option {
	return func(r *Runner) { r.toolsets[kind] = names }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner. tools may be nil when no tools are offered.
func New(store task.Writer, provider llm.StreamingProvider, tools *tool.Registry, opts ...Option) *Runner {
	r := &Runner{
		store:     store,
		provider:  provider,
		tools:     tools,
		maxRounds: DefaultMaxRounds,
		prompts:   defaultPrompts(),
		toolsets:  defaultToolsets(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("scribe/orchestrator"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the task and blocks until the run ends. The returned error is
// non-nil only for unusable requests; run failures are stored on the task
// and reported in Outcome.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	id, gen, err := r.begin(req)
	if err != nil {
		return Outcome{}, err
	}
	return r.drive(ctx, req, id, gen), nil
}

// Launch starts the task synchronously, so the run is already current when
// Launch returns, and drives it in a new goroutine. The channel receives
// the outcome and is closed.
func (r *Runner) Launch(ctx context.Context, req Request) (task.ID, <-chan Outcome, error) {
	id, gen, err := r.begin(req)
	if err != nil {
		return "", nil, err
	}
	done := make(chan Outcome, 1)
	go func() {
		defer close(done)
		done <- r.drive(ctx, req, id, gen)
	}()
	return id, done, nil
}

func (r *Runner) begin(req Request) (task.ID, task.Generation, error) {
	if !req.Kind.Valid() {
		return "", 0, errors.New(errors.CodeInternal, fmt.Sprintf("unknown task kind %q", req.Kind), nil)
	}
	id := task.MakeID(req.Subject, req.Kind)
	return id, r.store.Start(id), nil
}

// run holds the per-run state of drive.
type run struct {
	id         task.ID
	gen        task.Generation
	store      task.Writer
	text       strings.Builder
	superseded bool
}

// apply forwards tr and notes when the run lost ownership of the task.
func (rn *run) apply(tr task.Transition) bool {
	if rn.superseded {
		return false
	}
	if !rn.store.Apply(rn.id, rn.gen, tr) {
		rn.superseded = true
		return false
	}
	if t, ok := tr.(task.AppendText); ok {
		rn.text.WriteString(t.Delta)
	}
	return true
}

func (r *Runner) drive(parent context.Context, req Request, id task.ID, gen task.Generation) Outcome {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rn := &run{id: id, gen: gen, store: r.store}
	ctx, span := r.tracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(telemetry.TaskAttributes(string(id), string(req.Kind), uint64(gen), "")...))
	defer span.End()

	log := r.logger.With(
		slog.String("task_id", string(id)),
		slog.Uint64("generation", uint64(gen)),
	)
	log.InfoContext(ctx, "task run started")

	out := Outcome{ID: id, Generation: gen}
	finish := func(status task.Status, err *errors.ScribeError) Outcome {
		out.Status = status
		out.Err = err
		out.Text = rn.text.String()
		out.Superseded = rn.superseded
		switch {
		case rn.superseded:
			span.SetAttributes(attribute.Bool("scribe.task.superseded", true))
			log.InfoContext(ctx, "task run superseded", slog.Int("rounds", out.Rounds))
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Message)
			log.WarnContext(ctx, "task run failed", slog.String("code", string(err.Code)), slog.String("error", err.Error()))
		default:
			span.SetStatus(codes.Ok, "")
			log.InfoContext(ctx, "task run completed", slog.Int("rounds", out.Rounds))
		}
		return out
	}
	fail := func(err *errors.ScribeError) Outcome {
		if stderrors.Is(parent.Err(), context.Canceled) || stderrors.Is(parent.Err(), context.DeadlineExceeded) {
			err = errors.New(errors.CodeCanceled, "run canceled", parent.Err())
		}
		rn.apply(task.Fail{Err: err})
		if rn.superseded {
			return finish("", nil)
		}
		return finish(task.StatusFailed, err)
	}

	messages := r.messages(req)
	tools := r.toolsFor(req.Kind)

	for out.Rounds < r.maxRounds {
		out.Rounds++
		if !rn.apply(task.SetStep{Step: task.StepGenerating{}}) {
			return finish("", nil)
		}

		reply, calls, err := r.stream(ctx, rn, llm.ChatRequest{Model: r.model, Messages: messages, Tools: tools}, span)
		if rn.superseded {
			return finish("", nil)
		}
		if err != nil {
			return fail(err)
		}
		if len(calls) == 0 {
			if !rn.apply(task.Complete{}) {
				return finish("", nil)
			}
			return finish(task.StatusDone, nil)
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply, ToolCalls: calls})
		for _, call := range calls {
			msg, ok := r.callTool(ctx, rn, call, log)
			if !ok {
				return finish("", nil)
			}
			messages = append(messages, msg)
		}
		if err := ctx.Err(); err != nil {
			return fail(errors.New(errors.CodeCanceled, "run canceled", err))
		}
	}
	return fail(errors.New(errors.CodeTaskFailed,
		fmt.Sprintf("model did not finish within %d rounds", r.maxRounds), nil).
		WithContext("max_rounds", r.maxRounds))
}

// stream consumes one model response, appending text as it arrives. It
// returns the round's text and the tool calls requested.
func (r *Runner) stream(ctx context.Context, rn *run, req llm.ChatRequest, span trace.Span) (string, []llm.ToolCall, *errors.ScribeError) {
	chunks, err := r.provider.ChatStream(ctx, req)
	if err != nil {
		return "", nil, errors.New(errors.CodeLLMError, "model stream could not start", err)
	}

	var reply strings.Builder
	var calls []llm.ToolCall
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, errors.New(errors.CodeLLMError, "model stream failed", chunk.Error)
		}
		if chunk.Content != "" {
			if !rn.apply(task.AppendText{Delta: chunk.Content}) {
				return "", nil, nil
			}
			reply.WriteString(chunk.Content)
		}
		calls = append(calls, chunk.ToolCalls...)
		if chunk.Usage != nil {
			span.SetAttributes(telemetry.LLMUsageAttributes(req.Model, chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)...)
		}
		if chunk.Done {
			return reply.String(), calls, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", nil, errors.New(errors.CodeCanceled, "run canceled", err)
	}
	return "", nil, errors.New(errors.CodeLLMError, "model stream ended without completing", nil)
}

// callTool runs one tool call as a tool-call/tool-result step pair and
// returns the message reporting the result to the model. ok is false when
// the run was superseded.
func (r *Runner) callTool(ctx context.Context, rn *run, call llm.ToolCall, log *slog.Logger) (llm.Message, bool) {
	name := call.Function.Name
	args := call.Function.ArgumentsJSON()
	if !rn.apply(task.SetStep{Step: task.StepToolCall{ToolName: name, Input: decodeArgs(args)}}) {
		return llm.Message{}, false
	}

	var res tool.Result
	if r.tools == nil {
		res = tool.Result{Tool: name, Err: errors.New(errors.CodeToolNotFound, fmt.Sprintf("tool %q not found", name), nil)}
	} else {
		res = r.tools.Invoke(ctx, name, args)
	}

	step := task.StepToolResult{ToolName: name, Output: res.Output}
	if !res.OK() {
		step.Output = res.Err
		step.Failed = true
		log.DebugContext(ctx, "tool result reported to model", slog.String("tool", name), slog.String("code", string(res.Err.Code)))
	}
	if !rn.apply(task.SetStep{Step: step}) {
		return llm.Message{}, false
	}

	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		ToolName:   name,
		Content:    toolContent(res),
	}, true
}

func (r *Runner) messages(req Request) []llm.Message {
	var msgs []llm.Message
	if prompt := r.prompts[req.Kind]; prompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: prompt})
	}
	msgs = append(msgs, req.History...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Prompt})
}

func (r *Runner) toolsFor(kind task.Kind) []llm.Tool {
	if r.tools == nil {
		return nil
	}
	names := r.toolsets[kind]
	var out []llm.Tool
	for _, t := range r.tools.LLMTools() {
		if slices.Contains(names, t.Function.Name) {
			out = append(out, t)
		}
	}
	return out
}

func decodeArgs(args json.RawMessage) any {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return string(args)
	}
	return v
}

// toolContent renders a result for the model. Failures are reported as
// {"error": ...} so the model can correct its call.
func toolContent(res tool.Result) string {
	var payload any = res.Output
	if !res.OK() {
		payload = map[string]any{"error": res.Err}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":{"code":%q,"message":"result is not serializable"}}`, errors.CodeInternal)
	}
	return string(data)
}
