package tools

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCallTimeout bounds a single tool call.
	DefaultCallTimeout = 30 * time.Second

	// DefaultBatchTimeout bounds an entire batch of parallel calls.
	DefaultBatchTimeout = 2 * time.Minute
)

// Executor runs batches of tool calls in parallel while preserving the order
// of results. A failing call yields a failed observation in its slot; it
// never cancels its siblings. Tools are read-only, so there is no retry.
type Executor struct {
	registry     *Registry
	callTimeout  time.Duration
	batchTimeout time.Duration
}

// NewExecutor creates an executor over the given registry with default
// timeouts.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:     registry,
		callTimeout:  DefaultCallTimeout,
		batchTimeout: DefaultBatchTimeout,
	}
}

// WithTimeouts overrides the per-call and batch timeouts. Zero values keep
// the current setting.
func (e *Executor) WithTimeouts(call, batch time.Duration) *Executor {
	if call > 0 {
		e.callTimeout = call
	}
	if batch > 0 {
		e.batchTimeout = batch
	}
	return e
}

// Execute runs all calls concurrently and returns one observation per call,
// in the same order as the input. The returned slice always has len(calls)
// entries.
func (e *Executor) Execute(ctx context.Context, calls []Call) []Observation {
	results := make([]Observation, len(calls))
	if len(calls) == 0 {
		return results
	}

	batchCtx, cancel := context.WithTimeout(ctx, e.batchTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(batchCtx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.executeOne(gctx, call)
			// Failures are recorded in the slot; returning an error here
			// would cancel sibling calls.
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return results
}

// executeOne runs a single call with its own timeout and panic recovery.
func (e *Executor) executeOne(ctx context.Context, call Call) (obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			obs = Failure(call, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	if err := e.registry.ValidateCall(call); err != nil {
		return Failure(call, err.Error())
	}
	tool, _ := e.registry.Get(call.Tool)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	output, err := tool.Execute(callCtx, call.Args)
	if err != nil {
		return Failure(call, err.Error())
	}
	return Observation{
		CallID:  call.CallID,
		Tool:    call.Tool,
		Output:  output,
		Success: true,
	}
}
