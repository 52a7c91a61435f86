// Package proctest provides a scriptable proc.Runner for tests.
package proctest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"hostkit/internal/proc"
)

// Call records a single invocation.
type Call struct {
	Command string
	Args    []string
	Dir     string
}

// Line renders the call as "base arg1 arg2".
func (c Call) Line() string {
	parts := append([]string{filepath.Base(c.Command)}, c.Args...)
	return strings.Join(parts, " ")
}

// Handler decides the outcome of a call.
type Handler func(call Call) (proc.Result, error)

// Runner records calls and delegates to Handler. A nil Handler succeeds with
// empty output.
type Runner struct {
	Handler Handler

	mu    sync.Mutex
	calls []Call
}

func (r *Runner) Run(_ context.Context, command string, args []string, opts proc.Options) (proc.Result, error) {
	call := Call{Command: command, Args: append([]string(nil), args...), Dir: opts.Dir}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.Handler == nil {
		return proc.Result{}, nil
	}
	res, err := r.Handler(call)
	if opts.Stdout != nil && len(res.Stdout) > 0 {
		_, _ = opts.Stdout.Write(res.Stdout)
	}
	if opts.Stderr != nil && len(res.Stderr) > 0 {
		_, _ = opts.Stderr.Write(res.Stderr)
	}
	return res, err
}

// Calls returns a copy of the recorded invocations.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Lines returns Line() for every recorded call.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Line()
	}
	return out
}

var _ proc.Runner = (*Runner)(nil)
