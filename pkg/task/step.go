// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

// Step is a snapshot of what a running task is currently doing. The set of
// variants is closed: StepGenerating, StepToolCall, StepToolResult, StepDone.
// A nil Step means no step has happened yet.
type Step interface {
	isStep()
}

// StepGenerating means the model is producing text.
type StepGenerating struct{}

// StepToolCall means a tool invocation has started.
type StepToolCall struct {
	ToolName string
	Input    any
}

// StepToolResult means a tool invocation completed.
type StepToolResult struct {
	ToolName string
	Output   any
	// Failed is set when the tool returned an error result.
	Failed bool
}

// StepDone means the task finished successfully.
type StepDone struct{}

func (StepGenerating) isStep() {}
func (StepToolCall) isStep()   {}
func (StepToolResult) isStep() {}
func (StepDone) isStep()       {}

// StepVisitor handles every Step variant. Adding a variant adds a method
// here, so every consumer implementing the visitor stops compiling until it
// handles the new case.
type StepVisitor[R any] interface {
	None() R
	Generating(StepGenerating) R
	ToolCall(StepToolCall) R
	ToolResult(StepToolResult) R
	Done(StepDone) R
}

// Visit dispatches step to the matching visitor method.
func Visit[R any](step Step, v StepVisitor[R]) R {
	switch s := step.(type) {
	case StepGenerating:
		return v.Generating(s)
	case StepToolCall:
		return v.ToolCall(s)
	case StepToolResult:
		return v.ToolResult(s)
	case StepDone:
		return v.Done(s)
	default:
		return v.None()
	}
}

// StepView is the wire form of a Step.
type StepView struct {
	Type     string `json:"type"`
	ToolName string `json:"toolName,omitempty"`
	Input    any    `json:"input,omitempty"`
	Output   any    `json:"output,omitempty"`
	Failed   bool   `json:"failed,omitempty"`
}

// ViewOf converts a step to its wire form; nil yields nil.
func ViewOf(step Step) *StepView {
	return Visit[*StepView](step, viewVisitor{})
}

type viewVisitor struct{}

func (viewVisitor) None() *StepView { return nil }
func (viewVisitor) Generating(StepGenerating) *StepView {
	return &StepView{Type: "generating"}
}
func (viewVisitor) ToolCall(s StepToolCall) *StepView {
	return &StepView{Type: "tool-call", ToolName: s.ToolName, Input: s.Input}
}
func (viewVisitor) ToolResult(s StepToolResult) *StepView {
	return &StepView{Type: "tool-result", ToolName: s.ToolName, Output: s.Output, Failed: s.Failed}
}
func (viewVisitor) Done(StepDone) *StepView {
	return &StepView{Type: "done"}
}
