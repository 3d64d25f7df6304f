// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit keeps the history of task transitions that the task store
// itself discards.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jllopis/scribe/pkg/task"
)

// Event is one recorded transition.
type Event struct {
	TaskID     string         `json:"task_id"`
	Kind       string         `json:"kind"`
	Subject    string         `json:"subject"`
	RunID      string         `json:"run_id"`
	Generation uint64         `json:"generation"`
	Transition string         `json:"transition"`
	Applied    bool           `json:"applied"`
	Status     string         `json:"status"`
	Step       *task.StepView `json:"step,omitempty"`
	// TextLength is the streamed text length after the transition.
	TextLength int       `json:"text_length"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Filter limits List results. Zero fields match everything.
type Filter struct {
	TaskID     string
	RunID      string
	Transition string
	Limit      int
}

func (f Filter) match(ev Event) bool {
	if f.TaskID != "" && ev.TaskID != f.TaskID {
		return false
	}
	if f.RunID != "" && ev.RunID != f.RunID {
		return false
	}
	if f.Transition != "" && ev.Transition != f.Transition {
		return false
	}
	return true
}

// Store persists audit events.
type Store interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// MemoryStore keeps events in memory, in record order.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends event.
func (s *MemoryStore) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.At = normalizeTime(event.At)
	s.events = append(s.events, event)
	return nil
}

// List returns events matching filter.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func encodeStep(step *task.StepView) (string, error) {
	if step == nil {
		return "", nil
	}
	data, err := json.Marshal(step)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStep(raw string) *task.StepView {
	if raw == "" {
		return nil
	}
	var step task.StepView
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return nil
	}
	return &step
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
