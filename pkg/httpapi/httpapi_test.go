// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/scribe/pkg/chattools"
	"github.com/jllopis/scribe/pkg/errors"
	"github.com/jllopis/scribe/pkg/llm"
	"github.com/jllopis/scribe/pkg/orchestrator"
	"github.com/jllopis/scribe/pkg/search"
	"github.com/jllopis/scribe/pkg/task"
	"github.com/jllopis/scribe/pkg/tool"
)

func newTestServer(t *testing.T, store *task.Store, opts ...Option) *httptest.Server {
	t.Helper()
	registry, err := chattools.Build(chattools.Deps{Search: search.NewInMemory()})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(store, registry, "test", opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

// readEvent reads one SSE event and decodes its data as a task view.
func readEvent(t *testing.T, r *bufio.Reader) (string, task.View) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name == "" && data == "" {
				continue
			}
			var v task.View
			if err := json.Unmarshal([]byte(data), &v); err != nil {
				t.Fatalf("decode event data %q: %v", data, err)
			}
			return name, v
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func TestGetTask(t *testing.T) {
	store := task.NewStore()
	srv := newTestServer(t, store)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if code := getJSON(t, srv.URL+"/v1/tasks/enhance/note-1", &body); code != http.StatusNotFound {
		t.Fatalf("expected 404 before start, got %d", code)
	}
	if body.Error.Code != string(errors.CodeNotFound) {
		t.Fatalf("unexpected error body %+v", body)
	}

	id := task.MakeID("note-1", task.KindEnhance)
	gen := store.Start(id)
	store.Apply(id, gen, task.AppendText{Delta: "draft"})
	store.Apply(id, gen, task.SetStep{Step: task.StepToolCall{ToolName: chattools.SearchSessionsName}})

	var view task.View
	if code := getJSON(t, srv.URL+"/v1/tasks/enhance/note-1", &view); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if view.ID != id || view.Status != task.StatusRunning || view.StreamedText != "draft" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Label != "Searching sessions..." || !view.Busy {
		t.Fatalf("unexpected label %q busy=%v", view.Label, view.Busy)
	}
}

func TestGetTaskInvalidKind(t *testing.T) {
	srv := newTestServer(t, task.NewStore())
	if code := getJSON(t, srv.URL+"/v1/tasks/summarize/note-1", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestListTasks(t *testing.T) {
	store := task.NewStore()
	srv := newTestServer(t, store)
	for _, id := range []task.ID{
		task.MakeID("note-2", task.KindTitle),
		task.MakeID("note-1", task.KindEnhance),
		task.MakeID("note-1", task.KindTitle),
	} {
		store.Start(id)
	}

	var body struct {
		Tasks []task.View `json:"tasks"`
	}
	if code := getJSON(t, srv.URL+"/v1/tasks", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var ids []string
	for _, v := range body.Tasks {
		ids = append(ids, string(v.ID))
	}
	if got := strings.Join(ids, ","); got != "enhance:note-1,title:note-1,title:note-2" {
		t.Fatalf("unexpected tasks %s", got)
	}

	body.Tasks = nil
	if code := getJSON(t, srv.URL+"/v1/tasks?kind=enhance", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body.Tasks) != 1 || body.Tasks[0].ID != task.MakeID("note-1", task.KindEnhance) {
		t.Fatalf("unexpected filtered tasks %+v", body.Tasks)
	}

	if code := getJSON(t, srv.URL+"/v1/tasks?kind=summarize", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", code)
	}
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, task.NewStore())
	var body struct {
		Tools []toolView `json:"tools"`
	}
	if code := getJSON(t, srv.URL+"/v1/tools", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var names []string
	for _, tv := range body.Tools {
		names = append(names, tv.Name)
	}
	if strings.Join(names, ",") != "analyze_structure,search_sessions" {
		t.Fatalf("unexpected tools %v", names)
	}
}

func TestStreamTaskEvents(t *testing.T) {
	store := task.NewStore()
	srv := newTestServer(t, store)
	id := task.MakeID("chat-9", task.KindChat)
	gen := store.Start(id)
	store.Apply(id, gen, task.AppendText{Delta: "Hel"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/tasks/chat/chat-9/events?until=done", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	name, first := readEvent(t, r)
	if name != eventState || first.StreamedText != "Hel" || first.Status != task.StatusRunning {
		t.Fatalf("unexpected first event %s %+v", name, first)
	}

	store.Apply(id, gen, task.AppendText{Delta: "lo"})
	store.Apply(id, gen, task.Complete{})

	var last task.View
	for last.Status != task.StatusDone {
		_, last = readEvent(t, r)
	}
	if last.StreamedText != "Hello" || last.Label != "Done" || last.Busy {
		t.Fatalf("unexpected final event %+v", last)
	}
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("stream did not end cleanly: %v", err)
	}
}

func TestRunTask(t *testing.T) {
	store := task.NewStore()
	provider := llm.NewScriptedStreamProvider(llm.TextRound("Weekly ", "sync"))
	runner := orchestrator.New(store, provider, tool.NewRegistry())
	srv := newTestServer(t, store, WithLauncher(runner))

	resp, err := http.Post(srv.URL+"/v1/tasks/title/note-2/run", "application/json", strings.NewReader(`{"prompt":"notes"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	events, err := http.Get(srv.URL + "/v1/tasks/title/note-2/events?until=done")
	if err != nil {
		t.Fatal(err)
	}
	defer events.Body.Close()
	r := bufio.NewReader(events.Body)
	var last task.View
	for !last.Status.Terminal() {
		_, last = readEvent(t, r)
	}
	if last.Status != task.StatusDone || last.StreamedText != "Weekly sync" {
		t.Fatalf("unexpected final view %+v", last)
	}
}

func TestRunTaskRequiresLauncher(t *testing.T) {
	srv := newTestServer(t, task.NewStore())
	resp, err := http.Post(srv.URL+"/v1/tasks/title/note-2/run", "application/json", strings.NewReader(`{"prompt":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRunTaskRejectsEmptyPrompt(t *testing.T) {
	store := task.NewStore()
	runner := orchestrator.New(store, llm.NewScriptedStreamProvider(), tool.NewRegistry())
	srv := newTestServer(t, store, WithLauncher(runner))
	resp, err := http.Post(srv.URL+"/v1/tasks/chat/c1/run", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if _, ok := store.Get(task.MakeID("c1", task.KindChat)); ok {
		t.Fatal("rejected request must not start a task")
	}
}
