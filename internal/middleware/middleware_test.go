package middleware

import (
	"context"
	"testing"

	"stepflow/step"
)

type recordingHook struct {
	name  string
	trace *[]string
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnFunctionRun(ctx context.Context, info FunctionRunInfo) (context.Context, Cleanup, error) {
	*h.trace = append(*h.trace, "in:"+h.name)
	return ctx, func(ctx context.Context, result any, err error) {
		*h.trace = append(*h.trace, "out:"+h.name)
	}, nil
}

func (h *recordingHook) OnStepRun(ctx context.Context, info StepRunInfo) (context.Context, Cleanup, error) {
	return ctx, nil, nil
}

func (h *recordingHook) OnSendEvent(ctx context.Context, events []step.Event) (context.Context, Cleanup, error) {
	return ctx, nil, nil
}

func TestPipelineRunsHooksForwardThenReverse(t *testing.T) {
	var trace []string
	p := New(
		&recordingHook{name: "a", trace: &trace},
		&recordingHook{name: "b", trace: &trace},
	)

	_, err := p.RunFunction(context.Background(), FunctionRunInfo{}, func(ctx context.Context) (any, error) {
		trace = append(trace, "body")
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RunFunction: %v", err)
	}

	want := []string{"in:a", "in:b", "body", "out:b", "out:a"}
	if len(trace) != len(want) {
		t.Fatalf("trace length mismatch: got %v, want %v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace mismatch at %d: got %q, want %q (full: %v)", i, trace[i], want[i], trace)
		}
	}
}

type shortCircuitHook struct{}

func (shortCircuitHook) Name() string { return "short-circuit" }
func (shortCircuitHook) OnFunctionRun(ctx context.Context, info FunctionRunInfo) (context.Context, Cleanup, error) {
	return ctx, nil, context.Canceled
}
func (shortCircuitHook) OnStepRun(ctx context.Context, info StepRunInfo) (context.Context, Cleanup, error) {
	return ctx, nil, nil
}
func (shortCircuitHook) OnSendEvent(ctx context.Context, events []step.Event) (context.Context, Cleanup, error) {
	return ctx, nil, nil
}

func TestPipelineShortCircuitsOnHookError(t *testing.T) {
	called := false
	p := New(shortCircuitHook{})

	_, err := p.RunFunction(context.Background(), FunctionRunInfo{}, func(ctx context.Context) (any, error) {
		called = true
		return nil, nil
	})
	if err == nil {
		t.Fatalf("expected hook error to propagate")
	}
	if called {
		t.Fatalf("expected body not to run when a hook errors")
	}
}
