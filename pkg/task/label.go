// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "sync"

var (
	labelsMu   sync.RWMutex
	toolLabels = map[string]string{}
)

// RegisterToolLabel sets the progress label shown while toolName runs. Tool
// packages register their labels when their tools are registered.
func RegisterToolLabel(toolName, label string) {
	labelsMu.Lock()
	defer labelsMu.Unlock()
	toolLabels[toolName] = label
}

// Label maps a step to a short progress label. Tools without a registered
// label render as "Running <tool>...".
func Label(step Step) string {
	return Visit[string](step, labelVisitor{})
}

// Busy reports whether a step shows a spinner rather than a completion
// mark. A task with no step yet is loading and therefore busy.
func Busy(step Step) bool {
	return Visit[bool](step, busyVisitor{})
}

func toolLabel(name string) string {
	labelsMu.RLock()
	label, ok := toolLabels[name]
	labelsMu.RUnlock()
	if ok {
		return label
	}
	return "Running " + name + "..."
}

type labelVisitor struct{}

func (labelVisitor) None() string                       { return "Loading" }
func (labelVisitor) Generating(StepGenerating) string   { return "Generating" }
func (labelVisitor) ToolCall(s StepToolCall) string     { return toolLabel(s.ToolName) }
func (labelVisitor) ToolResult(s StepToolResult) string { return toolLabel(s.ToolName) }
func (labelVisitor) Done(StepDone) string               { return "Done" }

type busyVisitor struct{}

func (busyVisitor) None() bool                     { return true }
func (busyVisitor) Generating(StepGenerating) bool { return true }
func (busyVisitor) ToolCall(StepToolCall) bool     { return true }
func (busyVisitor) ToolResult(StepToolResult) bool { return false }
func (busyVisitor) Done(StepDone) bool             { return false }
