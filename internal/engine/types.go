// Package engine is the replay runtime at the heart of a durable
// function: given the step state accumulated so far, it runs a
// function's body exactly far enough to discover the next step(s) to
// execute, execute at most one of them if appropriate, and report back
// what it found — never more than that in a single invocation.
package engine

import (
	"encoding/json"

	"stepflow/internal/sdkerr"
	"stepflow/step"
)

// Op identifies the kind of operation a step descriptor represents.
type Op string

const (
	OpRun          Op = "Step"
	OpSleep        Op = "Sleep"
	OpWaitForEvent Op = "WaitForEvent"
	OpInvoke       Op = "InvokeFunction"
	OpSendEvent    Op = "StepSendEvent"
)

// StepDescriptor is the wire shape of one step, either newly discovered
// (found, with Op + Opts but no Data) or already executed (with Data or
// Error populated).
type StepDescriptor struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Op          Op              `json:"op"`
	Opts        map[string]any  `json:"opts,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       *sdkerr.Wire    `json:"error,omitempty"`
}

// StepStateEntry is one previously recorded step outcome, keyed by
// hashed step id in StepState.
type StepStateEntry struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	Error *sdkerr.Wire    `json:"error,omitempty"`
}

// StepState is the full set of previously recorded step outcomes for a
// run, keyed by hashed step id.
type StepState map[string]StepStateEntry

// Version is the wire protocol version an invocation request was sent
// with. V2 is this engine's native format; V0 and V1 are decoded for
// compatibility but never produced.
type Version int

const (
	V0 Version = iota
	V1
	V2
)

// InvocationCtx carries run metadata that isn't step state but that a
// function body or middleware may need: the attempt number, any
// configured attempt cap, and flags controlling replay behavior.
type InvocationCtx struct {
	RunID                     string
	Attempt                   int
	MaxAttempts               *int
	DisableImmediateExecution bool
	UseAPI                    bool
	StepID                    string // requested_run_step, if the platform has already chosen one
}

// Request is the full input to one invocation.
type Request struct {
	Event  *step.Event
	Events []step.Event
	Steps  StepState
	Ctx    InvocationCtx
	Version Version
}

// ResultKind tags which variant a Result holds.
type ResultKind string

const (
	ResultFunctionResolved ResultKind = "function-resolved"
	ResultFunctionRejected ResultKind = "function-rejected"
	ResultStepsFound       ResultKind = "steps-found"
	ResultStepRan          ResultKind = "step-ran"
	ResultStepNotFound     ResultKind = "step-not-found"
)

// Result is the tagged outcome of one invocation.
type Result struct {
	Kind ResultKind

	// ResultFunctionResolved
	Data json.RawMessage

	// ResultFunctionRejected / ResultStepNotFound
	Error *sdkerr.Wire

	// ResultStepsFound
	Steps []StepDescriptor

	// ResultStepRan
	Step *StepDescriptor
}
