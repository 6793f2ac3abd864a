package stepflow

import (
	"context"

	"stepflow/internal/engine"
	"stepflow/internal/registry"
)

// RunContext is what a function body sees: the triggering event(s) and
// a Tools handle for declaring steps.
type RunContext = engine.RunContext

// Handler is a function body: given a context and a RunContext, produce
// the run's result or an error.
type Handler func(ctx context.Context, run *RunContext) (any, error)

// Function is a registered function definition.
type Function = registry.FunctionDefinition

// Trigger is one event name, cron schedule, or conditional expression
// that starts a run.
type Trigger = registry.Trigger

// CancelOn cancels an in-flight run when a matching event arrives.
type CancelOn = registry.CancelOn

// Concurrency bounds how many runs of a function may execute at once,
// and is reused for RateLimit too.
type Concurrency = registry.Concurrency

// FunctionOpts configures CreateFunction.
type FunctionOpts struct {
	ID          string
	Name        string
	Triggers    []Trigger
	Retries     int
	Cancel      []CancelOn
	Concurrency *Concurrency
	RateLimit   *Concurrency
	OnFailure   Handler
}

// CreateFunction builds a Function from opts and handler, converting
// handler (and opts.OnFailure) to the engine's Body type, which has the
// same (ctx, run) -> (any, error) signature.
func CreateFunction(opts FunctionOpts, handler Handler) Function {
	fn := Function{
		ID:          opts.ID,
		Name:        opts.Name,
		Triggers:    opts.Triggers,
		Retries:     opts.Retries,
		Cancel:      opts.Cancel,
		Concurrency: opts.Concurrency,
		RateLimit:   opts.RateLimit,
		Body: engine.Body(handler),
	}
	if opts.OnFailure != nil {
		fn.OnFailure = engine.Body(opts.OnFailure)
	}
	return fn
}
