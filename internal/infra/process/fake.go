package process

import (
	"context"
	"sync"
)

// Call records one invocation made through a FakeRunner.
type Call struct {
	Name string
	Args []string
}

// Line returns the call as a command line.
func (c Call) Line() string {
	return CommandLine(c.Name, c.Args...)
}

// FakeRunner records commands instead of executing them. Handler, when set,
// decides the result of each call; otherwise every call succeeds.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(name string, args []string) (Result, error)
}

// Run records the call and returns the handler's result.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Name: name, Args: append([]string(nil), args...)})
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return Result{}, nil
	}
	return handler(name, args)
}

// Calls returns a copy of the recorded calls in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Lines returns the recorded calls as command lines.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Line()
	}
	return out
}
