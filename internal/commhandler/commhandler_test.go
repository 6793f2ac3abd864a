package commhandler_test

import (
	"encoding/json"
	"testing"

	"stepflow/internal/commhandler"
	"stepflow/internal/engine"
	"stepflow/internal/sdkerr"
)

func TestParseInvocationRequestDecodesSteps(t *testing.T) {
	body := []byte(`{
		"event": {"name": "user.signed_up"},
		"steps": {"abc123": {"data": 42}},
		"ctx": {"run_id": "run-1", "attempt": 2}
	}`)

	req, err := commhandler.ParseInvocationRequest(body, "2", "")
	if err != nil {
		t.Fatalf("ParseInvocationRequest: %v", err)
	}
	if req.Event.Name != "user.signed_up" {
		t.Fatalf("expected event name to decode, got %q", req.Event.Name)
	}
	if req.Ctx.RunID != "run-1" || req.Ctx.Attempt != 2 {
		t.Fatalf("unexpected ctx: %+v", req.Ctx)
	}
	entry, ok := req.Steps["abc123"]
	if !ok {
		t.Fatalf("expected step abc123 to decode")
	}
	var data int
	if err := json.Unmarshal(entry.Data, &data); err != nil || data != 42 {
		t.Fatalf("expected step data 42, got %s (err %v)", entry.Data, err)
	}
}

func TestParseInvocationRequestDefaultsToV0OnUnknownVersion(t *testing.T) {
	req, err := commhandler.ParseInvocationRequest([]byte(`{}`), "bogus", "")
	if err != nil {
		t.Fatalf("ParseInvocationRequest: %v", err)
	}
	if req.Version != engine.V0 {
		t.Fatalf("expected unknown version header to default to V0, got %v", req.Version)
	}
}

func TestParseInvocationRequestReadsStepIDFromQueryParam(t *testing.T) {
	req, err := commhandler.ParseInvocationRequest([]byte(`{}`), "2", "abc123")
	if err != nil {
		t.Fatalf("ParseInvocationRequest: %v", err)
	}
	if req.Ctx.StepID != "abc123" {
		t.Fatalf("expected stepId query param to populate Ctx.StepID, got %q", req.Ctx.StepID)
	}
}

func TestParseInvocationRequestStepSentinelMeansNoSpecificStep(t *testing.T) {
	req, err := commhandler.ParseInvocationRequest([]byte(`{}`), "2", "step")
	if err != nil {
		t.Fatalf("ParseInvocationRequest: %v", err)
	}
	if req.Ctx.StepID != "" {
		t.Fatalf("expected the \"step\" sentinel to mean no specific step, got %q", req.Ctx.StepID)
	}
}

func TestEncodeResultStatusCodes(t *testing.T) {
	nonRetriable := &sdkerr.Wire{Retriable: false}
	retriable := &sdkerr.Wire{Retriable: true}
	retryAfter := &sdkerr.Wire{Retriable: true, RetryAfter: "30"}

	cases := []struct {
		name   string
		result engine.Result
		status int
	}{
		{"function-resolved", engine.Result{Kind: engine.ResultFunctionResolved, Data: []byte(`"ok"`)}, 200},
		{"function-rejected retriable", engine.Result{Kind: engine.ResultFunctionRejected, Error: retriable}, 500},
		{"function-rejected non-retriable", engine.Result{Kind: engine.ResultFunctionRejected, Error: nonRetriable}, 400},
		{"function-rejected retry-after", engine.Result{Kind: engine.ResultFunctionRejected, Error: retryAfter}, 500},
		{"steps-found", engine.Result{Kind: engine.ResultStepsFound}, 206},
		{"step-ran", engine.Result{Kind: engine.ResultStepRan, Step: &engine.StepDescriptor{ID: "x"}}, 206},
		{"step-not-found", engine.Result{Kind: engine.ResultStepNotFound}, 500},
	}
	for _, c := range cases {
		enc, err := commhandler.EncodeResult(c.result)
		if err != nil {
			t.Fatalf("EncodeResult(%s): %v", c.name, err)
		}
		if enc.Status != c.status {
			t.Fatalf("%s: expected status %d, got %d", c.name, c.status, enc.Status)
		}
	}
}

func TestEncodeResultSetsRetryHeaders(t *testing.T) {
	enc, err := commhandler.EncodeResult(engine.Result{
		Kind:  engine.ResultFunctionRejected,
		Error: &sdkerr.Wire{Retriable: true, RetryAfter: "30"},
	})
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	if enc.Headers["No-Retry"] != "false" {
		t.Fatalf("expected No-Retry: false, got %q", enc.Headers["No-Retry"])
	}
	if enc.Headers["Retry-After"] != "30" {
		t.Fatalf("expected Retry-After: 30, got %q", enc.Headers["Retry-After"])
	}

	enc, err = commhandler.EncodeResult(engine.Result{
		Kind:  engine.ResultFunctionRejected,
		Error: &sdkerr.Wire{Retriable: false},
	})
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	if enc.Headers["No-Retry"] != "true" {
		t.Fatalf("expected No-Retry: true, got %q", enc.Headers["No-Retry"])
	}

	enc, err = commhandler.EncodeResult(engine.Result{Kind: engine.ResultStepNotFound})
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	if enc.Headers["No-Retry"] != "false" {
		t.Fatalf("expected step-not-found No-Retry: false, got %q", enc.Headers["No-Retry"])
	}
}
