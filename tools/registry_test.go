package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeTool is a scriptable tool for registry and executor tests.
type fakeTool struct {
	name    string
	params  []Parameter
	execute func(ctx context.Context, args Args) (string, error)
}

func (f *fakeTool) Metadata() Metadata {
	return Metadata{Name: f.name, Description: "fake tool", Parameters: f.params}
}

func (f *fakeTool) Execute(ctx context.Context, args Args) (string, error) {
	if f.execute == nil {
		return "ok", nil
	}
	return f.execute(ctx, args)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "alpha"})
	r.Register(&fakeTool{name: "beta"})

	if !r.Has("alpha") {
		t.Error("expected alpha to be registered")
	}
	if r.Has("gamma") {
		t.Error("gamma should not be registered")
	}
	if _, ok := r.Get("beta"); !ok {
		t.Error("expected to get beta")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "zeta"})
	r.Register(&fakeTool{name: "alpha"})
	r.Register(&fakeTool{name: "mu"})

	names := r.Names()
	want := []string{"alpha", "mu", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRegistryValidateCall(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "reader",
		params: []Parameter{
			{Name: "path", Type: "string", Required: true},
			{Name: "limit", Type: "integer"},
		},
	})

	tests := []struct {
		name    string
		call    Call
		wantErr string
	}{
		{
			name: "valid call",
			call: Call{Tool: "reader", Args: Args{"path": "main.go"}},
		},
		{
			name:    "unknown tool",
			call:    Call{Tool: "nope", Args: Args{}},
			wantErr: "unknown tool",
		},
		{
			name:    "missing required arg",
			call:    Call{Tool: "reader", Args: Args{"limit": "5"}},
			wantErr: "missing required argument",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidateCall(tt.call)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got error %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryDescribeListsParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "reader",
		params: []Parameter{
			{Name: "path", Type: "string", Description: "a path", Required: true},
		},
	})

	desc := r.Describe()
	if !strings.Contains(desc, "reader") {
		t.Errorf("description missing tool name: %q", desc)
	}
	if !strings.Contains(desc, "path (string, required)") {
		t.Errorf("description missing parameter line: %q", desc)
	}
}

func TestArgsTypedGetters(t *testing.T) {
	args := Args{"n": "42", "bad": "xyz", "flag": "true"}

	if got := args.String("missing", "def"); got != "def" {
		t.Errorf("String default = %q, want def", got)
	}
	n, err := args.Int("n", 0)
	if err != nil || n != 42 {
		t.Errorf("Int = %d, %v; want 42, nil", n, err)
	}
	if d, err := args.Int("missing", 7); err != nil || d != 7 {
		t.Errorf("Int default = %d, %v; want 7, nil", d, err)
	}
	if _, err := args.Int("bad", 0); err == nil {
		t.Error("expected error for unparseable integer")
	}
	if !args.Bool("flag") {
		t.Error("Bool(flag) = false, want true")
	}
	if args.Bool("missing") {
		t.Error("Bool(missing) = true, want false")
	}
}

func TestExecutorPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "echo",
		params: []Parameter{{Name: "msg", Type: "string", Required: true}},
		execute: func(ctx context.Context, args Args) (string, error) {
			// Later calls finish first to prove ordering is positional,
			// not completion order.
			if args["msg"] == "first" {
				time.Sleep(50 * time.Millisecond)
			}
			return args["msg"], nil
		},
	})

	calls := []Call{
		{CallID: "c1", Tool: "echo", Args: Args{"msg": "first"}},
		{CallID: "c2", Tool: "echo", Args: Args{"msg": "second"}},
		{CallID: "c3", Tool: "echo", Args: Args{"msg": "third"}},
	}
	obs := NewExecutor(r).Execute(context.Background(), calls)

	if len(obs) != len(calls) {
		t.Fatalf("got %d observations, want %d", len(obs), len(calls))
	}
	for i, want := range []string{"first", "second", "third"} {
		if obs[i].Output != want {
			t.Errorf("obs[%d].Output = %q, want %q", i, obs[i].Output, want)
		}
		if obs[i].CallID != calls[i].CallID {
			t.Errorf("obs[%d].CallID = %q, want %q", i, obs[i].CallID, calls[i].CallID)
		}
	}
}

func TestExecutorIsolatesFailures(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "flaky",
		execute: func(ctx context.Context, args Args) (string, error) {
			if args["fail"] == "yes" {
				return "", errors.New("boom")
			}
			return "fine", nil
		},
	})

	calls := []Call{
		{CallID: "a", Tool: "flaky", Args: Args{}},
		{CallID: "b", Tool: "flaky", Args: Args{"fail": "yes"}},
		{CallID: "c", Tool: "flaky", Args: Args{}},
	}
	obs := NewExecutor(r).Execute(context.Background(), calls)

	if !obs[0].Success || !obs[2].Success {
		t.Error("sibling calls should succeed when one fails")
	}
	if obs[1].Success {
		t.Error("failing call should be marked unsuccessful")
	}
	if !strings.Contains(obs[1].ErrorDetail, "boom") {
		t.Errorf("ErrorDetail = %q, want containing boom", obs[1].ErrorDetail)
	}
}

func TestExecutorUnknownToolYieldsFailure(t *testing.T) {
	r := NewRegistry()
	obs := NewExecutor(r).Execute(context.Background(), []Call{
		{CallID: "x", Tool: "ghost", Args: Args{}},
	})
	if len(obs) != 1 || obs[0].Success {
		t.Fatalf("expected one failed observation, got %+v", obs)
	}
	if !strings.Contains(obs[0].ErrorDetail, "unknown tool") {
		t.Errorf("ErrorDetail = %q", obs[0].ErrorDetail)
	}
}

func TestExecutorRecoversFromPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "bomb",
		execute: func(ctx context.Context, args Args) (string, error) {
			panic("kaboom")
		},
	})
	r.Register(&fakeTool{name: "calm"})

	obs := NewExecutor(r).Execute(context.Background(), []Call{
		{CallID: "a", Tool: "bomb", Args: Args{}},
		{CallID: "b", Tool: "calm", Args: Args{}},
	})
	if obs[0].Success {
		t.Error("panicking tool should yield a failed observation")
	}
	if !strings.Contains(obs[0].ErrorDetail, "kaboom") {
		t.Errorf("ErrorDetail = %q", obs[0].ErrorDetail)
	}
	if !obs[1].Success {
		t.Error("sibling of a panicking call should still succeed")
	}
}

func TestExecutorPerCallTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name: "slow",
		execute: func(ctx context.Context, args Args) (string, error) {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	})

	exec := NewExecutor(r).WithTimeouts(20*time.Millisecond, time.Second)
	obs := exec.Execute(context.Background(), []Call{
		{CallID: "s", Tool: "slow", Args: Args{}},
	})
	if obs[0].Success {
		t.Fatal("slow call should time out")
	}
	if !strings.Contains(obs[0].ErrorDetail, "deadline") {
		t.Errorf("ErrorDetail = %q, want deadline exceeded", obs[0].ErrorDetail)
	}
}

func TestExecutorEmptyBatch(t *testing.T) {
	obs := NewExecutor(NewRegistry()).Execute(context.Background(), nil)
	if len(obs) != 0 {
		t.Fatalf("empty batch should yield no observations, got %d", len(obs))
	}
}

func TestFailureHelper(t *testing.T) {
	call := Call{CallID: "id-1", Tool: "reader"}
	obs := Failure(call, "nope")
	if obs.Success || obs.CallID != "id-1" || obs.Tool != "reader" || obs.ErrorDetail != "nope" {
		t.Errorf("unexpected failure observation: %+v", obs)
	}
}
