// Package sandbox runs untrusted programs in an isolated worker process and
// turns whatever the worker manages to report into a well-formed Trace.
package sandbox

import (
	"context"
	"time"

	"github.com/michaelbrown/decipher/internal/trace"
)

// ExecOpts describes a traced execution request.
type ExecOpts struct {
	Source  string
	Inputs  []string
	Timeout time.Duration // zero means the policy default
	Seed    int64

	// OnStep, if set, receives each step as the worker reports it. It runs
	// on the supervising goroutine and must not block for long.
	OnStep func(trace.Step)
}

// ExecResult is the outcome of one execution. Trace is always set.
type ExecResult struct {
	Trace          *trace.Trace
	State          State
	Duration       time.Duration
	ExitCode       int
	Stderr         string
	Degradations   int
	InputsConsumed int
}

// Sandbox runs code in an isolated environment. Exec returns an error only
// for requests it refuses to run; failures of the run itself are reported
// in the trace.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}
