// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jllopis/scribe/pkg/task"
)

// Recorder turns task store changes into audit events. Hook it into a store
// with task.WithObserver(recorder.Observe).
type Recorder struct {
	store         Store
	logger        *slog.Logger
	timeout       time.Duration
	recordDeltas  bool
	recordDropped bool
	redactor      Redactor
}

// Redactor scrubs text and decoded JSON values before they are stored.
type Redactor interface {
	Redact(s string) string
	RedactValue(v any) any
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTextDeltas also records every append_text transition.
func WithTextDeltas(enabled bool) RecorderOption {
	return func(r *Recorder) { r.recordDeltas = enabled }
}

// WithDropped also records transitions the store rejected.
func WithDropped(enabled bool) RecorderOption {
	return func(r *Recorder) { r.recordDropped = enabled }
}

// WithRedactor scrubs tool inputs, tool outputs and error messages.
func WithRedactor(redactor Redactor) RecorderOption {
	return func(r *Recorder) { r.redactor = redactor }
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe records change. Write failures are logged, never returned: the
// audit log must not affect task execution.
func (r *Recorder) Observe(change task.Change) {
	if !change.Applied && !r.recordDropped {
		return
	}
	if _, ok := change.Transition.(task.AppendText); ok && !r.recordDeltas {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ev := EventOf(change)
	if r.redactor != nil {
		ev = redact(ev, r.redactor)
	}
	if err := r.store.Record(ctx, ev); err != nil {
		r.logger.Error("audit record failed",
			slog.String("task_id", ev.TaskID),
			slog.String("transition", ev.Transition),
			slog.String("error", err.Error()),
		)
	}
}

// EventOf converts a change to an event.
func EventOf(change task.Change) Event {
	st := change.State
	ev := Event{
		TaskID:     string(change.ID),
		Kind:       string(change.ID.Kind()),
		Subject:    change.ID.Subject(),
		RunID:      st.RunID,
		Generation: uint64(change.Generation),
		Transition: "none",
		Applied:    change.Applied,
		Status:     string(st.Status),
		Step:       task.ViewOf(st.CurrentStep),
		TextLength: len(st.StreamedText),
		At:         change.At,
	}
	if change.Transition != nil {
		ev.Transition = change.Transition.Name()
	}
	if st.Err != nil {
		ev.Error = st.Err.Error()
	}
	return ev
}

func redact(ev Event, redactor Redactor) Event {
	if ev.Step != nil {
		step := *ev.Step
		step.Input = redactor.RedactValue(step.Input)
		step.Output = redactor.RedactValue(step.Output)
		ev.Step = &step
	}
	ev.Error = redactor.Redact(ev.Error)
	return ev
}
