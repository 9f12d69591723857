// SPDX-License-Identifier: MPL-2.0

// Package issue provides errors that carry remediation context. A release
// run that aborts should tell the user which configuration key or file was
// at fault and what to do about it, not just dump an error chain.
package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Error is an error with user-facing context: the operation that failed,
// the resource involved, and suggestions for fixing it.
type Error struct {
	// Operation is a verb phrase, e.g. "load configuration" or "publish to modrinth".
	Operation string

	// Resource identifies the file, target, or config key involved (optional).
	Resource string

	// Suggestions are remediation hints shown under the error message.
	Suggestions []string

	// Cause is the wrapped underlying error (optional).
	Cause error
}

// New creates an Error for the given operation.
func New(operation string) *Error {
	return &Error{Operation: operation}
}

// Wrap attaches an operation to an underlying error. Returns nil when err is
// nil so it can be used unconditionally on call results.
func Wrap(err error, operation string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Operation: operation, Cause: err}
}

// WithResource sets the resource and returns the error for chaining.
func (e *Error) WithResource(res string) *Error {
	e.Resource = res
	return e
}

// WithSuggestion appends a remediation hint and returns the error for chaining.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

// Error implements the error interface with the concise single-line form.
func (e *Error) Error() string {
	var msg strings.Builder
	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap exposes the cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format renders the error for terminal display. Suggestions are listed as
// bullets; verbose mode additionally prints the full error chain.
func (e *Error) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, s := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}
