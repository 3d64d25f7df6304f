// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "testing"

func streamedText(id ID) func(Reader) string {
	return func(r Reader) string {
		st, _ := r.Get(id)
		return st.StreamedText
	}
}

func TestSubscribeIgnoresUnselectedChanges(t *testing.T) {
	s := NewStore()
	id := MakeID("note-1", KindEnhance)
	gen := s.Start(id)

	var got []string
	unsubscribe := Subscribe(s, streamedText(id), func(text string) { got = append(got, text) })
	defer unsubscribe()

	s.Apply(id, gen, SetStep{Step: StepGenerating{}})
	s.Apply(id, gen, SetStep{Step: StepToolCall{ToolName: "search_sessions"}})
	if len(got) != 0 {
		t.Fatalf("callback fired on step-only change: %v", got)
	}

	s.Apply(id, gen, AppendText{Delta: "ab"})
	s.Apply(id, gen, AppendText{Delta: ""})
	s.Apply(id, gen, AppendText{Delta: "cd"})
	if len(got) != 2 || got[0] != "ab" || got[1] != "abcd" {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := NewStore()
	id := MakeID("note-1", KindChat)
	gen := s.Start(id)

	calls := 0
	unsubscribe := Subscribe(s, streamedText(id), func(string) { calls++ })
	s.Apply(id, gen, AppendText{Delta: "a"})
	unsubscribe()
	unsubscribe()
	s.Apply(id, gen, AppendText{Delta: "b"})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSubscribeOtherTaskUntouched(t *testing.T) {
	s := NewStore()
	a := MakeID("a", KindEnhance)
	b := MakeID("b", KindEnhance)
	genA := s.Start(a)
	s.Start(b)

	calls := 0
	defer Subscribe(s, streamedText(b), func(string) { calls++ })()
	s.Apply(a, genA, AppendText{Delta: "only a"})
	if calls != 0 {
		t.Fatalf("subscriber of b notified by a: %d", calls)
	}
}

func TestSubscribeProjection(t *testing.T) {
	type progress struct {
		Status Status
		Label  string
	}
	RegisterToolLabel("analyze_structure", "Analyzing structure...")
	s := NewStore()
	id := MakeID("note-2", KindEnhance)
	gen := s.Start(id)

	var got []progress
	defer Subscribe(s, func(r Reader) progress {
		st, _ := r.Get(id)
		return progress{Status: st.Status, Label: Label(st.CurrentStep)}
	}, func(p progress) { got = append(got, p) })()

	s.Apply(id, gen, AppendText{Delta: "text"})
	s.Apply(id, gen, SetStep{Step: StepToolCall{ToolName: "analyze_structure"}})
	s.Apply(id, gen, SetStep{Step: StepToolResult{ToolName: "analyze_structure"}})
	s.Apply(id, gen, Complete{})

	want := []progress{
		{Status: StatusRunning, Label: "Analyzing structure..."},
		{Status: StatusDone, Label: "Done"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notification %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSubscribeIDAndWatch(t *testing.T) {
	s := NewStore()
	id := MakeID("note-3", KindTitle)

	var statuses []Status
	var observer Observer = s
	unsubscribe := observer.Watch(id, func(st State) { statuses = append(statuses, st.Status) })
	defer unsubscribe()

	gen := s.Start(id)
	s.Apply(id, gen, AppendText{Delta: "Weekly sync"})
	s.Apply(id, gen, Complete{})
	s.Apply(id, gen, AppendText{Delta: "dropped"})

	want := []Status{StatusRunning, StatusRunning, StatusDone}
	if len(statuses) != len(want) {
		t.Fatalf("expected %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, statuses)
		}
	}
}

func TestCallbackMayWrite(t *testing.T) {
	s := NewStore()
	src := MakeID("note-4", KindEnhance)
	dst := MakeID("note-4", KindTitle)
	genSrc := s.Start(src)

	defer Subscribe(s, func(r Reader) Status {
		st, _ := r.Get(src)
		return st.Status
	}, func(status Status) {
		if status == StatusDone {
			gen := s.Start(dst)
			s.Apply(dst, gen, Complete{})
		}
	})()

	s.Apply(src, genSrc, Complete{})
	st, ok := s.Get(dst)
	if !ok || st.Status != StatusDone {
		t.Fatalf("expected dependent task done, got %+v", st)
	}
}

func TestShallow(t *testing.T) {
	type pair struct {
		Name  string
		Value any
	}
	shared := &pair{Name: "p"}

	if !Shallow(pair{"a", 1}, pair{"a", 1}) {
		t.Fatal("equal structs reported different")
	}
	if Shallow(pair{"a", 1}, pair{"a", 2}) {
		t.Fatal("different structs reported equal")
	}
	if !Shallow(pair{"a", []int{1}}, pair{"a", []int{1}}) {
		t.Fatal("non-comparable field should fall back to deep equality")
	}
	if !Shallow([]*pair{shared}, []*pair{shared}) {
		t.Fatal("same pointers reported different")
	}
	if Shallow([]*pair{shared}, []*pair{{Name: "p"}}) {
		t.Fatal("shallow comparison must not follow pointers")
	}
	if !Shallow(map[string]int{"a": 1}, map[string]int{"a": 1}) {
		t.Fatal("equal maps reported different")
	}
	var nilStep, otherNil Step
	if !Shallow(nilStep, otherNil) {
		t.Fatal("nil steps reported different")
	}
	if Shallow[Step](StepGenerating{}, StepDone{}) {
		t.Fatal("different step variants reported equal")
	}
}
