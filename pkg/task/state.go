// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"time"

	"github.com/jllopis/scribe/pkg/errors"
)

// Status is the lifecycle phase of a task.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions are accepted until the
// next Start.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Generation numbers the attempts of one task. Start bumps it; a transition
// carrying an older generation is dropped.
type Generation uint64

// State is the observable state of one task. Values returned by the store
// are snapshots; mutating them has no effect on the store.
type State struct {
	Status       Status
	StreamedText string
	CurrentStep  Step
	Err          *errors.ScribeError

	Generation Generation
	RunID      string
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// View is the wire form of a State.
type View struct {
	ID           ID                  `json:"id"`
	Kind         Kind                `json:"kind"`
	Subject      string              `json:"subject"`
	Status       Status              `json:"status"`
	StreamedText string              `json:"streamedText"`
	Step         *StepView           `json:"currentStep,omitempty"`
	Label        string              `json:"label"`
	Busy         bool                `json:"busy"`
	Error        *errors.ScribeError `json:"error,omitempty"`
	Generation   Generation          `json:"generation"`
	RunID        string              `json:"runId,omitempty"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	UpdatedAt    *time.Time          `json:"updatedAt,omitempty"`
}

// ViewOfState converts a state snapshot to its wire form. A task that was
// never started is reported with the zero State and shows as idle.
func ViewOfState(id ID, s State) View {
	if s.Status == "" {
		s.Status = StatusIdle
	}
	v := View{
		ID:           id,
		Kind:         id.Kind(),
		Subject:      id.Subject(),
		Status:       s.Status,
		StreamedText: s.StreamedText,
		Step:         ViewOf(s.CurrentStep),
		Label:        Label(s.CurrentStep),
		Busy:         s.Status == StatusRunning && Busy(s.CurrentStep),
		Error:        s.Err,
		Generation:   s.Generation,
		RunID:        s.RunID,
	}
	if !s.StartedAt.IsZero() {
		started := s.StartedAt
		v.StartedAt = &started
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		v.UpdatedAt = &updated
	}
	return v
}
