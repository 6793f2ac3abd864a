// Package sdkerr is the error taxonomy shared by the execution engine, the
// comm handler, and the public client surface. Step bodies run inside a
// single process per invocation, but their errors must still survive a
// round trip through JSON (across an HTTP boundary, or between SDK major
// versions) without losing the distinction between "stop retrying" and
// "try again after the given delay".
package sdkerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
)

// maxCauseDepth bounds how many cause links get serialized. A step body
// that wraps an error nine levels deep has a bug; five is enough context
// to diagnose it without the wire payload growing unbounded.
const maxCauseDepth = 5

// Sentinel tags a JSON object as a serialized StepError so a decoder on
// the other side of an HTTP call can tell it apart from arbitrary step
// output that merely happens to have a "name" field.
const Sentinel = "stepflow.error/v1"

// Named is implemented by error types whose identity must survive being
// constructed in one module version and classified in another. Matching
// on ErrorName() rather than a type assertion lets a user-thrown
// NonRetriableError keep working even if the SDK that classifies it is a
// different build than the one that defined the type.
type Named interface {
	ErrorName() string
}

// StepError is the concrete error type the engine produces for any
// failure it classifies: a user step body's return value, a panic it
// recovered, or a transport failure it observed directly.
type StepError struct {
	Name       string
	Message    string
	Stack      string
	Cause      error
	Code       Code
	Retriable  bool
	RetryAfter string // non-empty only when Code == CodeRetryAfter
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *StepError) Unwrap() error { return e.Cause }

// ErrorName satisfies Named.
func (e *StepError) ErrorName() string { return e.Name }

// New builds a StepError directly, useful when the engine itself needs to
// raise one (e.g. step-not-found) rather than classify a user error.
func New(name string, code Code, message string) *StepError {
	return &StepError{Name: name, Message: message, Code: code, Retriable: code.IsRetryable(), Stack: captureStack()}
}

// Wrap classifies err into a StepError, preserving it unchanged if it
// already is one.
func Wrap(err error) *StepError {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return Classify(err)
}

// Classify inspects err and assigns it a Code and retry disposition.
// Errors implementing Named are matched by name first (this is how
// NonRetriableError / RetryAfterError are recognized); everything else
// falls through to a handful of well-known stdlib sentinels, defaulting
// to retriable if nothing more specific applies — a step that fails for
// an unrecognized reason is assumed to be transient.
func Classify(err error) *StepError {
	if err == nil {
		return nil
	}

	stack := captureStack()

	if named, ok := asNamed(err); ok {
		switch named.ErrorName() {
		case "NonRetriableError":
			return &StepError{Name: named.ErrorName(), Message: err.Error(), Code: CodeNonRetriable, Retriable: false, Cause: errors.Unwrap(err), Stack: stack}
		case "RetryAfterError":
			ra := ""
			if rae, ok := err.(interface{ RetryAfterValue() string }); ok {
				ra = rae.RetryAfterValue()
			}
			return &StepError{Name: named.ErrorName(), Message: err.Error(), Code: CodeRetryAfter, Retriable: true, RetryAfter: ra, Cause: errors.Unwrap(err), Stack: stack}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &StepError{Name: "DeadlineExceededError", Message: err.Error(), Code: CodeTransport, Retriable: true, Stack: stack}
	case errors.Is(err, context.Canceled):
		return &StepError{Name: "CanceledError", Message: err.Error(), Code: CodeNonRetriable, Retriable: false, Stack: stack}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &StepError{Name: "NetworkError", Message: err.Error(), Code: CodeTransport, Retriable: true, Stack: stack}
	}

	return &StepError{Name: "Error", Message: err.Error(), Code: CodeRetriable, Retriable: true, Stack: stack}
}

func asNamed(err error) (Named, bool) {
	var n Named
	if errors.As(err, &n) {
		return n, true
	}
	return nil, false
}

// FormatSafe renders err for a log line: redacted, and using the step
// error's own message rather than any wrapped internal detail once one
// is available.
func FormatSafe(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := err.(*StepError); ok {
		return Redact(fmt.Sprintf("%s: %s", se.Name, se.Message))
	}
	return Redact(err.Error())
}

// captureStack renders the calling goroutine's stack (up to 4096 bytes),
// including this package's own frames. Called at classification time so the stack
// reflects where the error surfaced, not where some shared helper
// constructed the original value.
func captureStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
