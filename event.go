package stepflow

import "stepflow/step"

// Event is the data the platform sends in or a function sends out. It
// is a plain alias for step.Event so callers never need to import the
// step package just to build one.
type Event = step.Event

// Tools is the handle a function body uses to declare steps. Alias of
// step.Tools.
type Tools = step.Tools

// WaitForEventOpts configures Tools.WaitForEvent.
type WaitForEventOpts = step.WaitForEventOpts

// InvokeOpts configures Tools.Invoke.
type InvokeOpts = step.InvokeOpts

// ParallelResult is one branch's outcome from Tools.Parallel.
type ParallelResult = step.ParallelResult
