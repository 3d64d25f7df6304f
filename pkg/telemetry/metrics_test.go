// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}

	ctx := context.Background()
	m.RecordToolInvocation(ctx, "search_sessions", "", 12*time.Millisecond)
	m.RecordToolInvocation(ctx, "search_sessions", "TOOL_EXECUTION_FAILED", time.Millisecond)
	m.RecordTransition(ctx, "enhance", "append_text", true)
	m.RecordTransition(ctx, "enhance", "set_step", false)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordToolInvocation(ctx, "x", "", time.Second)
	m.RecordTransition(ctx, "enhance", "complete", true)
}

func TestToolCallArgsResultClips(t *testing.T) {
	attrs := ToolCallArgsResult("ñandú", "", 2)
	if len(attrs) != 1 {
		t.Fatalf("expected one attribute, got %d", len(attrs))
	}
	if got := attrs[0].Value.AsString(); got != "ña..." {
		t.Fatalf("expected rune-safe clip, got %q", got)
	}
}
