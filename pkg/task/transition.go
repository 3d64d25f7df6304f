// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package task

import "github.com/jllopis/scribe/pkg/errors"

// Transition is one event applied to a task. The variants are Start,
// AppendText, SetStep, Complete and Fail.
type Transition interface {
	// Name is the stable identifier used in logs, metrics and audit records.
	Name() string
	isTransition()
}

// Start resets a task into a fresh running attempt. It is applied through
// Store.Start, which hands back the generation for later transitions.
type Start struct{}

// AppendText appends a streamed text fragment.
type AppendText struct {
	Delta string
}

// SetStep replaces the current step. SetStep{Step: StepDone{}} completes the
// task.
type SetStep struct {
	Step Step
}

// Complete marks the task done.
type Complete struct{}

// Fail marks the task failed with Err.
type Fail struct {
	Err *errors.ScribeError
}

func (Start) Name() string      { return "start" }
func (AppendText) Name() string { return "append_text" }
func (SetStep) Name() string    { return "set_step" }
func (Complete) Name() string   { return "complete" }
func (Fail) Name() string       { return "fail" }

func (Start) isTransition()      {}
func (AppendText) isTransition() {}
func (SetStep) isTransition()    {}
func (Complete) isTransition()   {}
func (Fail) isTransition()       {}
