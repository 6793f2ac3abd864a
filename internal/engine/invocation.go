package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stepflow/internal/eventsender"
	"stepflow/internal/hashing"
	"stepflow/internal/sdkerr"
	"stepflow/internal/telemetry"
	"stepflow/step"
)

// FunctionInvoker calls another registered function by id and waits for
// its result, used to implement Tools.Invoke. The engine depends on
// this narrow interface rather than a concrete registry type to avoid a
// package import cycle between engine and registry.
type FunctionInvoker interface {
	Invoke(ctx context.Context, functionID string, data, user map[string]any) (json.RawMessage, error)
}

// stepPending is panicked by the step proxy whenever a step call is not
// yet resolved in the current step state. It unwinds the body back to
// the recover in Engine.invokeBody (or, inside Parallel, to the branch's
// recover in runBranch), carrying nothing: the set of
// steps discovered so far is already recorded on the invocation, not on
// the panic value.
type stepPending struct{}

// execFunc performs a discovered step's side effect, if it has one (Run,
// Invoke, and SendEvent do — SendEvent's execution dispatches the events
// right now; Sleep and WaitForEvent don't, since the platform itself
// performs the wait).
type execFunc func(ctx context.Context) (json.RawMessage, error)

type foundStep struct {
	desc StepDescriptor
	exec execFunc
}

// shared is the state that must stay identical across every branch of a
// Parallel call: the indexer (so occurrence counts are shared) and the
// accumulated found-step list (so every branch's discoveries land in
// one place). invocation values are cheap to copy per branch; shared is
// always accessed through a pointer so those copies still mutate the
// same underlying state.
type shared struct {
	indexer   *hashing.Indexer
	found     []*foundStep
	foundSet  map[string]*foundStep
	nextBatch int
}

// invocation holds the state threaded through one Run call. A Parallel
// branch gets its own invocation value (so it can carry its own batch
// number) backed by the same *shared.
type invocation struct {
	ctx   context.Context
	req   Request
	sh    *shared
	batch int

	logger  *telemetry.Logger
	sender  eventsender.Sender
	invoker FunctionInvoker
}

func newInvocation(ctx context.Context, req Request, logger *telemetry.Logger, sender eventsender.Sender, invoker FunctionInvoker) *invocation {
	return &invocation{
		ctx: ctx,
		req: req,
		sh: &shared{
			indexer:  hashing.NewIndexer(),
			foundSet: make(map[string]*foundStep),
		},
		logger:  logger,
		sender:  sender,
		invoker: invoker,
	}
}

func (inv *invocation) resolve(name string) hashing.Occurrence {
	occ := inv.sh.indexer.Next(name, inv.batch)
	if occ.ParallelIndexing && inv.logger != nil {
		inv.logger.WarnCode("AUTOMATIC_PARALLEL_INDEXING",
			fmt.Sprintf("step id %q was seen in more than one discovery batch; its automatic index is order-dependent and should be given an explicit id", name))
	}
	return occ
}

// lookup returns the recorded outcome for hashedID, if any.
func (inv *invocation) lookup(hashedID string) (StepStateEntry, bool) {
	entry, ok := inv.req.Steps[hashedID]
	return entry, ok
}

// discover records a newly seen, not-yet-resolved step exactly once per
// hashed id per invocation, preserving first-seen order.
func (inv *invocation) discover(hashedID, name string, op Op, opts map[string]any, exec execFunc) {
	if _, exists := inv.sh.foundSet[hashedID]; exists {
		return
	}
	fs := &foundStep{desc: StepDescriptor{ID: hashedID, Name: name, Op: op, Opts: opts}, exec: exec}
	inv.sh.found = append(inv.sh.found, fs)
	inv.sh.foundSet[hashedID] = fs
}

func entryValue(entry StepStateEntry) (any, error) {
	if entry.Error != nil {
		return nil, sdkerr.Deserialize(entry.Error)
	}
	if len(entry.Data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(entry.Data, &v); err != nil {
		return nil, fmt.Errorf("engine: decoding memoized step data: %w", err)
	}
	return v, nil
}

// proxy implements step.Tools against one invocation.
type proxy struct {
	inv *invocation
}

var _ step.Tools = (*proxy)(nil)

func (p *proxy) Run(id string, fn step.RunFunc) (any, error) {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		return entryValue(entry)
	}
	p.inv.discover(occ.HashedID, id, OpRun, nil, func(ctx context.Context) (json.RawMessage, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(val)
	})
	panic(stepPending{})
}

func (p *proxy) Sleep(id string, d time.Duration) error {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		if entry.Error != nil {
			return sdkerr.Deserialize(entry.Error)
		}
		return nil
	}
	p.inv.discover(occ.HashedID, id, OpSleep, map[string]any{"duration": d.String()}, nil)
	panic(stepPending{})
}

func (p *proxy) SleepUntil(id string, at time.Time) error {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		if entry.Error != nil {
			return sdkerr.Deserialize(entry.Error)
		}
		return nil
	}
	p.inv.discover(occ.HashedID, id, OpSleep, map[string]any{"until": at.Format(time.RFC3339)}, nil)
	panic(stepPending{})
}

func (p *proxy) WaitForEvent(id string, opts step.WaitForEventOpts) (*step.Event, error) {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		if entry.Error != nil {
			return nil, sdkerr.Deserialize(entry.Error)
		}
		if len(entry.Data) == 0 {
			return nil, nil // timed out
		}
		var ev step.Event
		if err := json.Unmarshal(entry.Data, &ev); err != nil {
			return nil, fmt.Errorf("engine: decoding waited-for event: %w", err)
		}
		return &ev, nil
	}
	p.inv.discover(occ.HashedID, id, OpWaitForEvent, map[string]any{
		"event":   opts.Event,
		"timeout": opts.Timeout.String(),
		"if":      opts.If,
	}, nil)
	panic(stepPending{})
}

func (p *proxy) Invoke(id string, opts step.InvokeOpts) (any, error) {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		return entryValue(entry)
	}
	p.inv.discover(occ.HashedID, id, OpInvoke, map[string]any{
		"function_id": opts.FunctionID,
		"data":        opts.Data,
	}, func(ctx context.Context) (json.RawMessage, error) {
		if p.inv.invoker == nil {
			return nil, fmt.Errorf("engine: step.Invoke called but no function invoker is configured")
		}
		return p.inv.invoker.Invoke(ctx, opts.FunctionID, opts.Data, opts.User)
	})
	panic(stepPending{})
}

func (p *proxy) SendEvent(id string, events ...step.Event) error {
	occ := p.inv.resolve(id)
	if entry, ok := p.inv.lookup(occ.HashedID); ok {
		if entry.Error != nil {
			return sdkerr.Deserialize(entry.Error)
		}
		return nil
	}
	p.inv.discover(occ.HashedID, id, OpSendEvent, map[string]any{"count": len(events)}, func(ctx context.Context) (json.RawMessage, error) {
		if p.inv.sender == nil {
			return nil, fmt.Errorf("engine: step.SendEvent called but no event sender is configured")
		}
		if err := p.inv.sender.Send(ctx, events...); err != nil {
			return nil, err
		}
		return json.Marshal(nil)
	})
	panic(stepPending{})
}

// Parallel evaluates each fn in call order, letting every branch
// register any steps it discovers before deciding whether to propagate
// a pending signal upward. This is what lets `step.Parallel(a, b)`
// discover both a and b's steps in one invocation, the way a JS
// `Promise.all` would discover both promises before awaiting either.
func (p *proxy) Parallel(fns ...func(step.Tools) (any, error)) []step.ParallelResult {
	p.inv.sh.nextBatch++
	batch := p.inv.sh.nextBatch
	results := make([]step.ParallelResult, len(fns))
	anyPending := false

	for i, fn := range fns {
		results[i] = p.runBranch(batch, fn)
		if results[i].Pending {
			anyPending = true
		}
	}

	if anyPending {
		panic(stepPending{})
	}
	return results
}

func (p *proxy) runBranch(batch int, fn func(step.Tools) (any, error)) (result step.ParallelResult) {
	branchInv := *p.inv // shares *shared (indexer/found/foundSet); only batch differs
	branchInv.batch = batch
	branchProxy := &proxy{inv: &branchInv}

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stepPending); ok {
				result = step.ParallelResult{Pending: true}
				return
			}
			panic(r)
		}
	}()

	val, err := fn(branchProxy)
	return step.ParallelResult{Value: val, Err: err}
}
