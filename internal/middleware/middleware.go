// Package middleware runs the ordered hook pipeline wrapped around
// function execution, individual step execution, and outbound event
// sends. Hooks are invoked in registration order on the way in and in
// reverse order on the way out, the same onion pattern net/http
// middleware chains use.
package middleware

import (
	"context"

	"stepflow/step"
)

// Cleanup is returned by a hook's "before" call and invoked once the
// wrapped operation completes, in reverse registration order. A nil
// Cleanup is fine if a hook has nothing to do afterward.
type Cleanup func(ctx context.Context, result any, err error)

// FunctionRunInfo describes the function invocation a hook is wrapping.
type FunctionRunInfo struct {
	FunctionID string
	RunID      string
	Event      *step.Event
	Attempt    int
}

// StepRunInfo describes the single step a hook is wrapping.
type StepRunInfo struct {
	FunctionID string
	RunID      string
	StepID     string
	StepName   string
}

// Hook is implemented by anything that wants to observe or short-circuit
// function runs, step runs, or outbound event sends. Any method may be a
// no-op (return nil, nil, nil) if that hook doesn't care about that
// lifecycle point. Client.Invoke calls OnFunctionRun through
// Pipeline.RunFunction; OnStepRun and OnSendEvent are called only through
// Pipeline.RunStep and Pipeline.RunSendEvent, which the engine does not
// call, so they do not run around step bodies or step.SendEvent.
type Hook interface {
	Name() string
	OnFunctionRun(ctx context.Context, info FunctionRunInfo) (context.Context, Cleanup, error)
	OnStepRun(ctx context.Context, info StepRunInfo) (context.Context, Cleanup, error)
	OnSendEvent(ctx context.Context, events []step.Event) (context.Context, Cleanup, error)
}

// Pipeline runs a fixed, ordered set of hooks.
type Pipeline struct {
	hooks []Hook
}

// New returns a Pipeline running hooks in the given order.
func New(hooks ...Hook) *Pipeline {
	return &Pipeline{hooks: hooks}
}

// RunFunction wraps body with every hook's OnFunctionRun, innermost hook
// running closest to body.
func (p *Pipeline) RunFunction(ctx context.Context, info FunctionRunInfo, body func(context.Context) (any, error)) (any, error) {
	cleanups := make([]Cleanup, len(p.hooks))
	for i, h := range p.hooks {
		next, cleanup, err := h.OnFunctionRun(ctx, info)
		if err != nil {
			runCleanups(ctx, cleanups[:i], nil, err)
			return nil, err
		}
		if next != nil {
			ctx = next
		}
		cleanups[i] = cleanup
	}

	result, err := body(ctx)
	runCleanups(ctx, cleanups, result, err)
	return result, err
}

// RunStep wraps a single step execution the same way RunFunction wraps
// the whole run.
func (p *Pipeline) RunStep(ctx context.Context, info StepRunInfo, body func(context.Context) (any, error)) (any, error) {
	cleanups := make([]Cleanup, len(p.hooks))
	for i, h := range p.hooks {
		next, cleanup, err := h.OnStepRun(ctx, info)
		if err != nil {
			runCleanups(ctx, cleanups[:i], nil, err)
			return nil, err
		}
		if next != nil {
			ctx = next
		}
		cleanups[i] = cleanup
	}

	result, err := body(ctx)
	runCleanups(ctx, cleanups, result, err)
	return result, err
}

// RunSendEvent wraps an outbound event dispatch.
func (p *Pipeline) RunSendEvent(ctx context.Context, events []step.Event, body func(context.Context) (any, error)) (any, error) {
	cleanups := make([]Cleanup, len(p.hooks))
	for i, h := range p.hooks {
		next, cleanup, err := h.OnSendEvent(ctx, events)
		if err != nil {
			runCleanups(ctx, cleanups[:i], nil, err)
			return nil, err
		}
		if next != nil {
			ctx = next
		}
		cleanups[i] = cleanup
	}

	result, err := body(ctx)
	runCleanups(ctx, cleanups, result, err)
	return result, err
}

func runCleanups(ctx context.Context, cleanups []Cleanup, result any, err error) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		if cleanups[i] != nil {
			cleanups[i](ctx, result, err)
		}
	}
}
