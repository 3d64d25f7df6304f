// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics for Scribe's task
// store and tool registry.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Scribe telemetry.
const (
	// Task attributes
	AttrTaskID         = "scribe.task.id"
	AttrTaskKind       = "scribe.task.kind"
	AttrTaskSubject    = "scribe.task.subject"
	AttrTaskStatus     = "scribe.task.status"
	AttrTaskGeneration = "scribe.task.generation"
	AttrTaskRunID      = "scribe.task.run_id"
	AttrTransition     = "scribe.task.transition"
	AttrStep           = "scribe.task.step"

	// Tool attributes
	AttrToolName    = "scribe.tool.name"
	AttrToolArgs    = "scribe.tool.arguments"
	AttrToolResult  = "scribe.tool.result"
	AttrToolSuccess = "scribe.tool.success"
	AttrErrorCode   = "scribe.error.code"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMRound        = "scribe.llm.round"
)

// TaskAttributes returns common attributes for task spans and metrics.
func TaskAttributes(id, kind string, generation uint64, runID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTaskID, id),
		attribute.Int64(AttrTaskGeneration, int64(generation)),
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(AttrTaskKind, kind))
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrTaskRunID, runID))
	}
	return attrs
}

// ToolCallArgsResult returns attributes with tool arguments and result, each
// cut to maxLen runes.
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, clip(args, maxLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, clip(result, maxLen)))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(model string, inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	return attrs
}

func clip(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
