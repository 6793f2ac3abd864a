package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"stepflow/internal/eventsender"
	"stepflow/internal/sdkerr"
	"stepflow/internal/telemetry"
	"stepflow/step"
)

// Body is the user-supplied function executed for a run. It receives a
// RunContext carrying the triggering event(s) and a Tools handle for
// declaring steps, and returns either the run's final result or an
// error.
type Body func(ctx context.Context, run *RunContext) (any, error)

// RunContext is what a function body sees.
type RunContext struct {
	Step   step.Tools
	Event  *step.Event
	Events []step.Event
	RunID  string
	Attempt int
	Logger *telemetry.Logger
}

// Engine drives one function body through one invocation's worth of
// replay.
type Engine struct {
	Logger  *telemetry.Logger
	Sender  eventsender.Sender
	Invoker FunctionInvoker
}

// New returns an Engine with the given collaborators. Logger, Sender,
// and Invoker may all be nil; a nil Logger disables warning emission,
// and a nil Sender/Invoker simply makes SendEvent/Invoke fail if a body
// actually calls them.
func New(logger *telemetry.Logger, sender eventsender.Sender, invoker FunctionInvoker) *Engine {
	return &Engine{Logger: logger, Sender: sender, Invoker: invoker}
}

// Run executes body exactly far enough to produce one Result: either
// the function has fully resolved or rejected, a single step has just
// been run, a requested step could not be found, or a new batch of
// steps has been discovered and is being reported back for scheduling.
func (e *Engine) Run(ctx context.Context, body Body, req Request) Result {
	inv := newInvocation(ctx, req, e.Logger, e.Sender, e.Invoker)
	run := &RunContext{
		Step:    &proxy{inv: inv},
		Event:   req.Event,
		Events:  req.Events,
		RunID:   req.Ctx.RunID,
		Attempt: req.Ctx.Attempt,
		Logger:  e.Logger,
	}

	outcome, rejectErr, pending := e.invokeBody(ctx, body, run)

	if pending {
		return e.resolvePending(ctx, inv, req)
	}

	if rejectErr != nil {
		se := sdkerr.Classify(rejectErr)
		return Result{Kind: ResultFunctionRejected, Error: sdkerr.Serialize(se)}
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		se := sdkerr.Classify(fmt.Errorf("engine: marshaling function result: %w", err))
		return Result{Kind: ResultFunctionRejected, Error: sdkerr.Serialize(se)}
	}
	return Result{Kind: ResultFunctionResolved, Data: data}
}

// invokeBody runs body, converting both the stepPending control-flow
// panic and any other recovered panic (a user "throw") into ordinary
// return values.
func (e *Engine) invokeBody(ctx context.Context, body Body, run *RunContext) (result any, rejectErr error, pending bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stepPending); ok {
				pending = true
				return
			}
			rejectErr = panicToError(r)
		}
	}()
	result, rejectErr = body(ctx, run)
	return result, rejectErr, false
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// resolvePending implements the decision table once a batch of steps
// has been discovered:
//
//   - a requested step id that isn't in the found set and isn't already
//     in step state is reported as step-not-found
//   - a requested step id that is in the found set is executed now
//   - exactly one newly found step, with immediate execution allowed and
//     no step requested, is executed now
//   - otherwise every found step is reported back as steps-found, for
//     the platform to schedule
func (e *Engine) resolvePending(ctx context.Context, inv *invocation, req Request) Result {
	found := inv.sh.found

	if req.Ctx.StepID != "" {
		if fs := findByID(found, req.Ctx.StepID); fs != nil {
			return e.executeStep(ctx, fs)
		}
		if _, memoized := req.Steps[req.Ctx.StepID]; !memoized {
			se := sdkerr.New("StepNotFoundError", sdkerr.CodeStepNotFound, fmt.Sprintf("requested step %q was not found in this run", req.Ctx.StepID))
			return Result{Kind: ResultStepNotFound, Error: sdkerr.Serialize(se)}
		}
	}

	if len(found) == 1 && !req.Ctx.DisableImmediateExecution && req.Ctx.StepID == "" {
		return e.executeStep(ctx, found[0])
	}

	descs := make([]StepDescriptor, len(found))
	for i, fs := range found {
		descs[i] = fs.desc
	}
	return Result{Kind: ResultStepsFound, Steps: descs}
}

func findByID(found []*foundStep, id string) *foundStep {
	for _, fs := range found {
		if fs.desc.ID == id {
			return fs
		}
	}
	return nil
}

// executeStep runs fs's side effect (if it has one) and reports the
// outcome as a step-ran result; a failing step is still step-ran, with
// the classified error on the descriptor (the caller is responsible for
// only calling this for ops the decision table says should run now).
func (e *Engine) executeStep(ctx context.Context, fs *foundStep) Result {
	if fs == nil {
		se := sdkerr.New("StepNotFoundError", sdkerr.CodeStepNotFound, "requested step could not be resolved")
		return Result{Kind: ResultStepNotFound, Error: sdkerr.Serialize(se)}
	}

	desc := fs.desc
	if fs.exec == nil {
		// Sleep / WaitForEvent have no user body to run now; the platform
		// schedules the wait itself. Report the descriptor as-is so it
		// can be scheduled.
		return Result{Kind: ResultStepRan, Step: &desc}
	}

	data, err := fs.exec(ctx)
	if err != nil {
		se := sdkerr.Classify(err)
		desc.Error = sdkerr.Serialize(se)
		return Result{Kind: ResultStepRan, Step: &desc}
	}
	desc.Data = data
	return Result{Kind: ResultStepRan, Step: &desc}
}
