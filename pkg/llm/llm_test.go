// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func collect(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var out []StreamChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestArgumentsJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "object", raw: `{"query":"standup"}`, want: `{"query":"standup"}`},
		{name: "string encoded", raw: `"{\"query\":\"standup\"}"`, want: `{"query":"standup"}`},
		{name: "empty", raw: ``, want: `{}`},
		{name: "empty string", raw: `""`, want: `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := FunctionCall{Name: "x", Arguments: json.RawMessage(tt.raw)}
			if got := string(fc.ArgumentsJSON()); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestScriptedStreamProvider(t *testing.T) {
	p := NewScriptedStreamProvider(TextRound("Hello", " world"))
	ch, err := p.ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 3 || chunks[0].Content != "Hello" || !chunks[2].Done {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if p.Remaining() != 0 {
		t.Fatalf("expected no remaining rounds")
	}
	if _, err := p.ChatStream(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error when script is exhausted")
	}
	if len(p.Requests) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(p.Requests))
	}
}

func TestOllamaChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Sum"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"mary"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"search_sessions","arguments":{"query":"q3"}}}]},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":5,"eval_count":7}`)
	}))
	defer srv.Close()

	p := NewOllama(srv.URL)
	ch, err := p.ChatStream(context.Background(), ChatRequest{Model: "llama3.1"})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Content+chunks[1].Content != "Summary" {
		t.Fatalf("unexpected content: %+v", chunks)
	}
	last := chunks[2]
	if !last.Done || len(last.ToolCalls) != 1 || last.ToolCalls[0].Function.Name != "search_sessions" {
		t.Fatalf("unexpected final chunk: %+v", last)
	}
	if string(last.ToolCalls[0].Function.ArgumentsJSON()) != `{"query":"q3"}` {
		t.Fatalf("unexpected args: %s", last.ToolCalls[0].Function.Arguments)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected usage: %+v", last.Usage)
	}
}

func TestOllamaStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
	}))
	defer srv.Close()

	ch, err := NewOllama(srv.URL).ChatStream(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	chunks := collect(t, ch)
	if len(chunks) != 2 || chunks[1].Error == nil {
		t.Fatalf("expected content then error, got %+v", chunks)
	}
}

func TestOllamaStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewOllama(srv.URL).ChatStream(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected status error")
	}
}
