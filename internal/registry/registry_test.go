package registry_test

import (
	"context"
	"testing"

	"stepflow/internal/engine"
	"stepflow/internal/registry"
)

func noopBody(ctx context.Context, run *engine.RunContext) (any, error) {
	return "ok", nil
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := registry.New()
	if err := r.Register(registry.FunctionDefinition{ID: "send-email", Body: noopBody}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(registry.FunctionDefinition{ID: "send-email", Body: noopBody})
	if err == nil {
		t.Fatalf("expected duplicate id to be rejected")
	}
}

func TestRegisterRejectsCollisionWithImplicitFailureID(t *testing.T) {
	r := registry.New()
	if err := r.Register(registry.FunctionDefinition{ID: "send-email-failure", Body: noopBody}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(registry.FunctionDefinition{ID: "send-email", Body: noopBody, OnFailure: noopBody})
	if err == nil {
		t.Fatalf("expected collision with implicit failure id to be rejected")
	}
}

func TestBuildConfigsIncludesFailureHandler(t *testing.T) {
	r := registry.New()
	_ = r.Register(registry.FunctionDefinition{
		ID:        "send-email",
		Name:      "Send Email",
		Triggers:  []registry.Trigger{{Event: "user.signed_up"}},
		Body:      noopBody,
		OnFailure: noopBody,
	})

	configs := r.BuildConfigs(func(id string) string { return "https://example.test/api/stepflow?fnId=" + id })
	if len(configs) != 2 {
		t.Fatalf("expected main + failure config, got %d", len(configs))
	}

	ids := map[string]bool{}
	for _, c := range configs {
		ids[c.ID] = true
	}
	if !ids["send-email"] || !ids["send-email-failure"] {
		t.Fatalf("expected both send-email and send-email-failure configs, got %v", ids)
	}
}

func TestInvokeRunsRegisteredFunctionSynchronously(t *testing.T) {
	r := registry.New()
	_ = r.Register(registry.FunctionDefinition{
		ID: "double",
		Body: func(ctx context.Context, run *engine.RunContext) (any, error) {
			return 42, nil
		},
	})

	data, err := r.Invoke(context.Background(), "double", nil, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(data) != "42" {
		t.Fatalf("expected 42, got %s", data)
	}
}

func TestInvokeUnknownFunctionErrors(t *testing.T) {
	r := registry.New()
	_, err := r.Invoke(context.Background(), "missing", nil, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered function")
	}
}

func TestHashIsStableForIdenticalConfigs(t *testing.T) {
	r := registry.New()
	_ = r.Register(registry.FunctionDefinition{ID: "a", Body: noopBody})
	configs := r.BuildConfigs(func(id string) string { return "https://x/" + id })

	h1 := registry.Hash(configs)
	h2 := registry.Hash(configs)
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
}
