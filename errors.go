package stepflow

import "fmt"

// NonRetriableError stops a step (or a whole run, if returned from the
// function body itself) from being retried. Its identity is recognized
// by name via ErrorName(), not by a type assertion, so it survives
// being constructed by one build of this module and classified by
// another.
type NonRetriableError struct {
	Message string
	Cause   error
}

// NewNonRetriableError returns a NonRetriableError wrapping an optional
// cause.
func NewNonRetriableError(message string, cause error) *NonRetriableError {
	return &NonRetriableError{Message: message, Cause: cause}
}

func (e *NonRetriableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *NonRetriableError) Unwrap() error { return e.Cause }

// ErrorName satisfies sdkerr.Named.
func (e *NonRetriableError) ErrorName() string { return "NonRetriableError" }

// RetryAfterError tells the engine to retry the failing step, but not
// before the given delay has elapsed.
type RetryAfterError struct {
	Message    string
	RetryAfter string // e.g. "30s", or an RFC3339 timestamp
	Cause      error
}

// NewRetryAfterError returns a RetryAfterError requesting a retry no
// sooner than after.
func NewRetryAfterError(message, after string, cause error) *RetryAfterError {
	return &RetryAfterError{Message: message, RetryAfter: after, Cause: cause}
}

func (e *RetryAfterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RetryAfterError) Unwrap() error { return e.Cause }

// ErrorName satisfies sdkerr.Named.
func (e *RetryAfterError) ErrorName() string { return "RetryAfterError" }

// RetryAfterValue is read by sdkerr.Classify to recover the requested
// delay.
func (e *RetryAfterError) RetryAfterValue() string { return e.RetryAfter }
