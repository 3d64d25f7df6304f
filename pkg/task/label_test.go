// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "testing"

func TestLabel(t *testing.T) {
	RegisterToolLabel("analyze_structure", "Analyzing structure...")
	RegisterToolLabel("search_sessions", "Searching sessions...")
	tests := []struct {
		name      string
		step      Step
		wantLabel string
		wantBusy  bool
	}{
		{name: "no step", step: nil, wantLabel: "Loading", wantBusy: true},
		{name: "generating", step: StepGenerating{}, wantLabel: "Generating", wantBusy: true},
		{name: "analyze call", step: StepToolCall{ToolName: "analyze_structure"}, wantLabel: "Analyzing structure...", wantBusy: true},
		{name: "search result", step: StepToolResult{ToolName: "search_sessions"}, wantLabel: "Searching sessions..."},
		{name: "unknown tool", step: StepToolCall{ToolName: "translate"}, wantLabel: "Running translate...", wantBusy: true},
		{name: "done", step: StepDone{}, wantLabel: "Done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.step); got != tt.wantLabel {
				t.Fatalf("Label = %q, want %q", got, tt.wantLabel)
			}
			if got := Busy(tt.step); got != tt.wantBusy {
				t.Fatalf("Busy = %v, want %v", got, tt.wantBusy)
			}
		})
	}
}

func TestRegisterToolLabel(t *testing.T) {
	RegisterToolLabel("summarize_thread", "Summarizing thread...")
	if got := Label(StepToolCall{ToolName: "summarize_thread"}); got != "Summarizing thread..." {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestViewOfState(t *testing.T) {
	id := MakeID("note-9", KindEnhance)
	v := ViewOfState(id, State{})
	if v.Status != StatusIdle || v.Busy || v.Step != nil {
		t.Fatalf("unexpected idle view: %+v", v)
	}

	v = ViewOfState(id, State{Status: StatusRunning, CurrentStep: StepToolCall{ToolName: "search_sessions", Input: map[string]any{"query": "q"}}})
	if v.Kind != KindEnhance || v.Subject != "note-9" {
		t.Fatalf("id not decoded: %+v", v)
	}
	if v.Step == nil || v.Step.Type != "tool-call" || v.Step.ToolName != "search_sessions" {
		t.Fatalf("unexpected step view: %+v", v.Step)
	}
}
