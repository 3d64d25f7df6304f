// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/scribe/pkg/errors"
)

// CLIError adds an operator hint to a ScribeError.
type CLIError struct {
	*errors.ScribeError
	Hint string
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	msg := e.ScribeError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Print writes the error the way the CLI shows it.
func (e *CLIError) Print(w io.Writer) {
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.ScribeError.Error())
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// asCLIError returns err with a hint when it carries a ScribeError, nil otherwise.
func asCLIError(err error) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}
	var se *errors.ScribeError
	if !stderrors.As(err, &se) {
		return nil
	}
	return &CLIError{ScribeError: se, Hint: hintFor(se.Code)}
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeUnavailable, errors.CodeLLMError:
		return "check that the model server (and qdrant, when configured) is reachable"
	case errors.CodeToolNotFound:
		return "run 'scribe tools list' to see registered tools"
	case errors.CodeInvalidToolInput, errors.CodeInvalidArgument:
		return "run 'scribe help' for usage information"
	case errors.CodeCanceled:
		return "the run was interrupted or exceeded --timeout"
	case errors.CodeTaskFailed:
		return "inspect the run with 'scribe audit --task <id>' when audit is enabled"
	default:
		return ""
	}
}
