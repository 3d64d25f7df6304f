// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for Scribe.
// Tool and task failures are represented as data so callers can render them
// instead of unwinding.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode classifies Scribe errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeDuplicateToolName indicates a tool with the same name is already registered.
	CodeDuplicateToolName ErrorCode = "DUPLICATE_TOOL_NAME"

	// CodeToolNotFound indicates an invocation named an unknown tool.
	CodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"

	// CodeInvalidToolInput indicates the tool input did not match its schema.
	CodeInvalidToolInput ErrorCode = "INVALID_TOOL_INPUT"

	// CodeToolExecutionFailed indicates the tool's own logic failed.
	CodeToolExecutionFailed ErrorCode = "TOOL_EXECUTION_FAILED"

	// CodeTaskFailed is the terminal task-level error stored on a failed task.
	CodeTaskFailed ErrorCode = "TASK_FAILED"

	// CodeCanceled indicates the operation context was canceled.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeLLMError indicates the LLM stream failed.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeUnavailable indicates a backend is temporarily rejecting calls.
	CodeUnavailable ErrorCode = "UNAVAILABLE"

	// CodeNotFound indicates a requested task or resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeInvalidArgument indicates a malformed request.
	CodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Violation is a single field-level schema mismatch.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ScribeError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ScribeError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Violations  []Violation
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *ScribeError) Error() string {
	msg := e.Message
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ScribeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScribeError with the same code.
func (e *ScribeError) Is(target error) bool {
	t, ok := target.(*ScribeError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// MarshalJSON implements json.Marshaler for structured logging and HTTP payloads.
func (e *ScribeError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Violations  []Violation            `json:"violations,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Violations:  e.Violations,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new ScribeError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ScribeError {
	return &ScribeError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Context:     make(map[string]interface{}),
		Recoverable: defaultRecoverable(code),
		StatusCode:  codeToStatusCode(code),
	}
}

// Code returns a sentinel usable with errors.Is to match any error of that code.
func Code(code ErrorCode) *ScribeError {
	return &ScribeError{Code: code}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ScribeError) WithContext(key string, value interface{}) *ScribeError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithViolations attaches field-level violations.
func (e *ScribeError) WithViolations(v ...Violation) *ScribeError {
	e.Violations = append(e.Violations, v...)
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ScribeError) WithRecoverable(recoverable bool) *ScribeError {
	e.Recoverable = recoverable
	return e
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *ScribeError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// AsScribeError attempts to convert an error to a ScribeError.
// Returns the error as ScribeError if it is one, or wraps it otherwise.
func AsScribeError(err error) *ScribeError {
	if err == nil {
		return nil
	}
	var se *ScribeError
	if stderrors.As(err, &se) {
		return se
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of err, or "" when err is nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsScribeError(err).Code
}

func defaultRecoverable(code ErrorCode) bool {
	switch code {
	case CodeToolNotFound, CodeInvalidToolInput, CodeToolExecutionFailed, CodeUnavailable:
		return true
	default:
		return false
	}
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeToolNotFound, CodeNotFound:
		return 404
	case CodeInvalidToolInput, CodeInvalidArgument:
		return 400
	case CodeDuplicateToolName:
		return 409
	case CodeCanceled:
		return 499
	case CodeToolExecutionFailed, CodeLLMError:
		return 502
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}
