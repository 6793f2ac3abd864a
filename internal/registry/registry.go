// Package registry holds the set of functions a client has registered
// and builds the configuration payload the platform uses to schedule
// them.
package registry

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"stepflow/internal/engine"
	"stepflow/internal/middleware"
	"stepflow/step"
)

// Trigger is one event name, cron schedule, or conditional expression
// that starts a run of a function.
type Trigger struct {
	Event      string `json:"event,omitempty"`
	Expression string `json:"expression,omitempty"`
	Cron       string `json:"cron,omitempty"`
}

// CancelOn describes an event that, if seen while a run is in flight,
// cancels it.
type CancelOn struct {
	Event   string `json:"event"`
	If      string `json:"if,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// Concurrency bounds how many runs of a function may execute at once.
type Concurrency struct {
	Limit int    `json:"limit"`
	Key   string `json:"key,omitempty"`
}

// FunctionDefinition is everything the engine and the comm handler need
// to run and describe one registered function.
type FunctionDefinition struct {
	ID          string
	Name        string
	Triggers    []Trigger
	Retries     int
	Cancel      []CancelOn
	Concurrency *Concurrency
	RateLimit   *Concurrency

	Body      engine.Body
	OnFailure engine.Body
	Hooks     []middleware.Hook
}

// FunctionConfig is the JSON shape of one function in the register
// payload sent to the platform.
type FunctionConfig struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name,omitempty"`
	Triggers    []Trigger              `json:"triggers"`
	Steps       map[string]StepConfig  `json:"steps"`
	Retries     *int                   `json:"retries,omitempty"`
	Cancel      []CancelOn             `json:"cancel,omitempty"`
	Concurrency *Concurrency           `json:"concurrency,omitempty"`
	RateLimit   *Concurrency           `json:"rateLimit,omitempty"`
}

// StepConfig is the single-entry "step" the platform dispatches to for
// a function's main execution path (the comm handler itself fans this
// out into however many real steps the body discovers).
type StepConfig struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Runtime StepRuntime `json:"runtime"`
}

// StepRuntime names the transport a step is dispatched over and the URL
// to dispatch it to; spec.md requires this as a nested object, not a
// flat string, so a runtime change never needs a new top-level field.
type StepRuntime struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Registry holds registered functions, keyed by ID.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*FunctionDefinition
	order []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]*FunctionDefinition)}
}

// ErrDuplicateID is returned by Register when a function ID has already
// been registered on this Registry.
type ErrDuplicateID struct{ ID string }

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("registry: function id %q is already registered", e.ID)
}

// Register adds fn to the registry. Registering a function whose ID is
// already taken, or whose ID collides with another function's implicit
// "<id>-failure" handler slot, is rejected.
func (r *Registry) Register(fn FunctionDefinition) error {
	if fn.ID == "" {
		return fmt.Errorf("registry: function must have a non-empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[fn.ID]; exists {
		return &ErrDuplicateID{ID: fn.ID}
	}
	failureID := fn.ID + "-failure"
	if _, exists := r.funcs[failureID]; exists {
		return &ErrDuplicateID{ID: failureID}
	}
	for id, existing := range r.funcs {
		if existing.OnFailure != nil && id+"-failure" == fn.ID {
			return &ErrDuplicateID{ID: fn.ID}
		}
	}

	copied := fn
	r.funcs[fn.ID] = &copied
	r.order = append(r.order, fn.ID)
	return nil
}

// Get returns the registered function with the given id.
func (r *Registry) Get(id string) (*FunctionDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[id]
	return fn, ok
}

// List returns every registered function, in registration order.
func (r *Registry) List() []*FunctionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FunctionDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.funcs[id])
	}
	return out
}

// Invoke satisfies engine.FunctionInvoker: it runs another registered
// function's body to completion in-process and returns its resolved
// value, for use with step.Invoke in a single-process deployment.
func (r *Registry) Invoke(ctx context.Context, functionID string, data, user map[string]any) (json.RawMessage, error) {
	fn, ok := r.Get(functionID)
	if !ok {
		return nil, fmt.Errorf("registry: invoke target %q is not registered", functionID)
	}

	eng := engine.New(nil, nil, r)
	req := engine.Request{
		Event: &step.Event{Data: data, User: user},
		Steps: engine.StepState{},
		Ctx:   engine.InvocationCtx{RunID: functionID + "-" + uuid.NewString()},
	}
	result := eng.Run(ctx, fn.Body, req)
	switch result.Kind {
	case engine.ResultFunctionResolved:
		return result.Data, nil
	case engine.ResultFunctionRejected:
		return nil, fmt.Errorf("registry: invoked function %q rejected: %s", functionID, result.Error.Message)
	default:
		return nil, fmt.Errorf("registry: invoked function %q did not resolve synchronously (contains its own unresolved steps)", functionID)
	}
}

// BuildConfigs produces the register payload for every registered
// function. serveURL builds the URL the platform should call back for a
// given function id.
func (r *Registry) BuildConfigs(serveURL func(functionID string) string) []FunctionConfig {
	fns := r.List()
	out := make([]FunctionConfig, 0, len(fns))
	for _, fn := range fns {
		var retries *int
		if fn.Retries > 0 {
			retries = &fn.Retries
		}
		out = append(out, FunctionConfig{
			ID:       fn.ID,
			Name:     fn.Name,
			Triggers: fn.Triggers,
			Steps: map[string]StepConfig{
				"step": {ID: "step", Name: fn.Name, Runtime: StepRuntime{Type: "http", URL: serveURL(fn.ID)}},
			},
			Retries:     retries,
			Cancel:      fn.Cancel,
			Concurrency: fn.Concurrency,
			RateLimit:   fn.RateLimit,
		})
		if fn.OnFailure != nil {
			failureID := fn.ID + "-failure"
			out = append(out, FunctionConfig{
				ID:   failureID,
				Name: fn.Name + " (failure handler)",
				Triggers: []Trigger{
					{Event: "stepflow/function.failed", Expression: fmt.Sprintf("event.data.function_id == %q", fn.ID)},
				},
				Steps: map[string]StepConfig{
					"step": {ID: "step", Name: failureID, Runtime: StepRuntime{Type: "http", URL: serveURL(failureID)}},
				},
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hash returns a stable content hash of the register payload, used by
// the comm handler to detect when the platform's cached registration is
// stale.
func Hash(configs []FunctionConfig) string {
	b, _ := json.Marshal(configs)
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
