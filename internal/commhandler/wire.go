// Package commhandler implements the wire protocol between the
// platform and a function's serve endpoint: decoding an invocation
// request (across the V0/V1/V2 protocol versions the platform may still
// send) and encoding an engine.Result back into the right HTTP status,
// headers, and body.
package commhandler

import (
	"encoding/json"
	"fmt"

	"stepflow/internal/engine"
	"stepflow/internal/sdkerr"
	"stepflow/step"
)

// wireStepEntry is the JSON shape of one step state entry on the wire,
// shared by V1 and V2 payloads.
type wireStepEntry struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	Error *sdkerr.Wire    `json:"error,omitempty"`
}

type wireCtx struct {
	RunID                     string `json:"run_id"`
	Attempt                   int    `json:"attempt"`
	MaxAttempts               *int   `json:"max_attempts,omitempty"`
	DisableImmediateExecution bool   `json:"disable_immediate_execution,omitempty"`
	UseAPI                    bool   `json:"use_api,omitempty"`
}

type wireRequest struct {
	Event  *step.Event              `json:"event"`
	Events []step.Event             `json:"events"`
	Steps  map[string]wireStepEntry `json:"steps"`
	Ctx    wireCtx                  `json:"ctx"`
}

// ParseInvocationRequest decodes body into an engine.Request. headerVersion
// is the value of the request version header ("0", "1", or "2"); an
// empty or unrecognized value is treated as V0, the oldest format this
// handler still accepts. V0 and V1 payloads decode into the same
// engine.Request shape as V2; V0's rejection of non-deterministic
// top-level work is not enforced, and every version is replayed the
// same way.
//
// stepID is the platform's requested_run_step, carried as the `stepId`
// query parameter rather than a body field; a blank value or the
// sentinel "step" both mean "no specific step requested", per spec.
func ParseInvocationRequest(body []byte, headerVersion string, stepID string) (engine.Request, error) {
	var wr wireRequest
	if err := json.Unmarshal(body, &wr); err != nil {
		return engine.Request{}, fmt.Errorf("commhandler: invalid request body: %w", err)
	}

	version := parseVersion(headerVersion)

	steps := make(engine.StepState, len(wr.Steps))
	for id, entry := range wr.Steps {
		steps[id] = engine.StepStateEntry{Data: entry.Data, Input: entry.Input, Error: entry.Error}
	}

	if stepID == "step" {
		stepID = ""
	}

	return engine.Request{
		Event:  wr.Event,
		Events: wr.Events,
		Steps:  steps,
		Ctx: engine.InvocationCtx{
			RunID:                     wr.Ctx.RunID,
			Attempt:                   wr.Ctx.Attempt,
			MaxAttempts:               wr.Ctx.MaxAttempts,
			StepID:                    stepID,
			DisableImmediateExecution: wr.Ctx.DisableImmediateExecution,
			UseAPI:                    wr.Ctx.UseAPI,
		},
		Version: version,
	}, nil
}

func parseVersion(v string) engine.Version {
	switch v {
	case "2":
		return engine.V2
	case "1":
		return engine.V1
	default:
		return engine.V0
	}
}
