// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jllopis/scribe/pkg/chattools"
	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/llm"
	"github.com/jllopis/scribe/pkg/search"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/tool"
)

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: llm.ToolTypeFunction, Function: llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)}}
}

// recordSteps collects the type of every distinct step the task goes through.
func recordSteps(s *task.Store, id task.ID) (*[]string, func()) {
	var steps []string
	unsubscribe := task.Subscribe(s, func(r task.Reader) string {
		st, _ := r.Get(id)
		if v := task.ViewOf(st.CurrentStep); v != nil {
			return v.Type + ":" + v.ToolName
		}
		return ""
	}, func(step string) {
		if step != "" {
			steps = append(steps, strings.TrimSuffix(step, ":"))
		}
	})
	return &steps, unsubscribe
}

func sessionsRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	idx := search.NewInMemory()
	if err := idx.Index(context.Background(),
		search.Document{ID: "s1", Title: "Deploy review", Content: "We agreed to deploy on Friday.", CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		search.Document{ID: "s2", Title: "Hiring", Content: "Two candidates left."},
	); err != nil {
		t.Fatal(err)
	}
	r, err := chattools.Build(chattools.Deps{Search: idx})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunTextOnly(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider(llm.TextRound("# Sync", "\n- shipped"))
	runner := New(store, provider, nil, WithModel("llama3"))

	id := task.MakeID("note-1", task.KindEnhance)
	steps, unsubscribe := recordSteps(store, id)
	defer unsubscribe()

	out, err := runner.Run(context.Background(), Request{Subject: "note-1", Kind: task.KindEnhance, Prompt: "raw notes"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != task.StatusDone || out.Text != "# Sync\n- shipped" || out.Rounds != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	st, _ := store.Get(id)
	if st.Status != task.StatusDone || st.StreamedText != out.Text {
		t.Fatalf("unexpected state: %+v", st)
	}
	if diff := cmp.Diff([]string{"generating", "done"}, *steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}

	req := provider.Requests[0]
	if req.Model != "llama3" || req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Content != "raw notes" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestRunWithToolCall(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider(
		llm.ToolCallRound(toolCall("c1", chattools.SearchSessionsName, `{"query":"deploy"}`)),
		llm.TextRound("You agreed to deploy on Friday."),
	)
	runner := New(store, provider, sessionsRegistry(t))
	id := task.MakeID("thread-1", task.KindChat)
	steps, unsubscribe := recordSteps(store, id)
	defer unsubscribe()

	out, err := runner.Run(context.Background(), Request{
		Subject: "thread-1",
		Kind:    task.KindChat,
		Prompt:  "When do we deploy?",
		History: []llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != task.StatusDone || out.Rounds != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	want := []string{
		"generating",
		"tool-call:search_sessions",
		"tool-result:search_sessions",
		"generating",
		"done",
	}
	if diff := cmp.Diff(want, *steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}

	var offered []string
	for _, tl := range provider.Requests[0].Tools {
		offered = append(offered, tl.Function.Name)
	}
	if diff := cmp.Diff([]string{chattools.AnalyzeStructureName, chattools.SearchSessionsName}, offered); diff != "" {
		t.Fatalf("offered tools mismatch (-want +got):\n%s", diff)
	}

	second := provider.Requests[1].Messages
	if len(second) != 6 {
		t.Fatalf("expected 6 messages in second round, got %d", len(second))
	}
	toolMsg := second[5]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "c1" || toolMsg.ToolName != chattools.SearchSessionsName {
		t.Fatalf("unexpected tool message: %+v", toolMsg)
	}
	var payload chattools.SearchSessionsOutput
	if err := json.Unmarshal([]byte(toolMsg.Content), &payload); err != nil {
		t.Fatalf("tool message is not JSON: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].ID != "s1" {
		t.Fatalf("unexpected tool payload: %+v", payload)
	}
}

func TestRunReportsToolErrorsToModel(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider(
		llm.ToolCallRound(toolCall("c1", chattools.SearchSessionsName, `{"text":"deploy"}`)),
		llm.TextRound("Sorry."),
	)
	runner := New(store, provider, sessionsRegistry(t))

	var failedStep bool
	id := task.MakeID("thread-2", task.KindChat)
	defer task.SubscribeID(store, id, func(st task.State) {
		if res, ok := st.CurrentStep.(task.StepToolResult); ok && res.Failed {
			failedStep = true
		}
	})()

	out, err := runner.Run(context.Background(), Request{Subject: "thread-2", Kind: task.KindChat, Prompt: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != task.StatusDone {
		t.Fatalf("tool error must not fail the task: %+v", out)
	}
	if !failedStep {
		t.Fatal("expected a failed tool-result step")
	}
	content := provider.Requests[1].Messages[len(provider.Requests[1].Messages)-1].Content
	if !strings.Contains(content, string(errors.CodeInvalidToolInput)) {
		t.Fatalf("model was not told about the invalid input: %s", content)
	}
}

func TestRunStreamErrorKeepsPartialText(t *testing.T) {
	store := task.NewStore()
	boom := stderrors.New("connection reset")
	provider := llm.NewScriptedStreamProvider([]llm.StreamChunk{{Content: "Partial "}, {Content: "answer"}, {Error: boom}})
	runner := New(store, provider, nil)

	out, _ := runner.Run(context.Background(), Request{Subject: "note-2", Kind: task.KindTitle, Prompt: "notes"})
	if out.Status != task.StatusFailed || out.Err.Code != errors.CodeLLMError || !stderrors.Is(out.Err, boom) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	st, _ := store.Get(out.ID)
	if st.Status != task.StatusFailed || st.StreamedText != "Partial answer" || st.Err != out.Err {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestRunStreamStartError(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider()
	provider.Err = stderrors.New("model not found")
	out, _ := New(store, provider, nil).Run(context.Background(), Request{Subject: "n", Kind: task.KindTitle})
	if out.Status != task.StatusFailed || out.Err.Code != errors.CodeLLMError {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRunTruncatedStream(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider([]llm.StreamChunk{{Content: "cut"}})
	out, _ := New(store, provider, nil).Run(context.Background(), Request{Subject: "n", Kind: task.KindTitle})
	if out.Status != task.StatusFailed || out.Err.Code != errors.CodeLLMError || out.Text != "cut" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRunMaxRounds(t *testing.T) {
	store := task.NewStore()
	call := toolCall("c", chattools.AnalyzeStructureName, `{"content":"# a"}`)
	provider := llm.NewScriptedStreamProvider(llm.ToolCallRound(call), llm.ToolCallRound(call), llm.ToolCallRound(call))
	runner := New(store, provider, sessionsRegistry(t), WithMaxRounds(2))

	out, _ := runner.Run(context.Background(), Request{Subject: "n", Kind: task.KindEnhance})
	if out.Status != task.StatusFailed || out.Err.Code != errors.CodeTaskFailed || out.Rounds != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if provider.Remaining() != 1 {
		t.Fatalf("expected one unplayed round, got %d", provider.Remaining())
	}
}

// blockingRegistry registers a "slow" tool that signals when it starts and
// waits for release or cancellation.
func blockingRegistry(t *testing.T, started chan<- struct{}, release <-chan struct{}) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	err := r.Register(tool.Definition{
		Name: "slow",
		Execute: func(ctx context.Context, _ any) (any, error) {
			started <- struct{}{}
			select {
			case <-release:
				return "late result", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestSupersededRunIsDropped(t *testing.T) {
	store := task.NewStore()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	provider := llm.NewScriptedStreamProvider(
		llm.ToolCallRound(toolCall("c1", "slow", `{}`)),
		llm.TextRound("never streamed"),
	)
	runner := New(store, provider, blockingRegistry(t, started, release), WithKindTools(task.KindChat, "slow"))

	id, done, err := runner.Launch(context.Background(), Request{Subject: "thread-3", Kind: task.KindChat, Prompt: "q"})
	if err != nil {
		t.Fatal(err)
	}
	<-started

	gen2 := store.Start(id)
	store.Apply(id, gen2, task.AppendText{Delta: "second run"})
	before, _ := store.Get(id)

	close(release)
	out := <-done
	if !out.Superseded || out.Status != "" {
		t.Fatalf("expected superseded outcome, got %+v", out)
	}

	after, _ := store.Get(id)
	if after.Generation != gen2 || after.StreamedText != "second run" || after.Status != task.StatusRunning || after.CurrentStep != before.CurrentStep {
		t.Fatalf("stale run touched the new generation: %+v", after)
	}
	if provider.Remaining() != 1 {
		t.Fatal("superseded run kept calling the model")
	}
}

func TestCanceledRunFails(t *testing.T) {
	store := task.NewStore()
	started := make(chan struct{}, 1)
	provider := llm.NewScriptedStreamProvider(llm.ToolCallRound(toolCall("c1", "slow", `{}`)))
	runner := New(store, provider, blockingRegistry(t, started, nil), WithKindTools(task.KindEnhance, "slow"))

	ctx, cancel := context.WithCancel(context.Background())
	_, done, err := runner.Launch(ctx, Request{Subject: "note-5", Kind: task.KindEnhance})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	cancel()

	out := <-done
	if out.Status != task.StatusFailed || out.Err.Code != errors.CodeCanceled {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	st, _ := store.Get(out.ID)
	if st.Status != task.StatusFailed {
		t.Fatalf("task not failed: %+v", st)
	}
}

func TestRunRejectsUnknownKind(t *testing.T) {
	_, err := New(task.NewStore(), llm.NewScriptedStreamProvider(), nil).Run(context.Background(), Request{Kind: "summary"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
