package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/tracer"
)

// ErrRejected wraps every policy refusal so callers can map it to a client
// error.
var ErrRejected = errors.New("request rejected")

// Policy defines resource limits for sandboxed execution.
type Policy struct {
	DefaultTimeout time.Duration // used when a request names none
	MaxTimeout     time.Duration // requests asking for more are clamped
	MaxSteps       int
	MaxDepth       int
	MaxOutput      int   // bytes of program output
	MaxSource      int   // bytes of program text
	MaxInputs      int   // scripted input values
	MaxMemory      int64 // worker memory, bytes
	StderrTail     int   // bytes of worker stderr kept for diagnostics
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     30 * time.Second,
		MaxSteps:       tracer.DefaultMaxSteps,
		MaxDepth:       serialize.DefaultDepth,
		MaxOutput:      tracer.DefaultMaxOutput,
		MaxSource:      64 << 10,
		MaxInputs:      1000,
		MaxMemory:      256 << 20,
		StderrTail:     4 << 10,
	}
}

// Check refuses requests that exceed the policy.
func (p Policy) Check(opts ExecOpts) error {
	if p.MaxSource > 0 && len(opts.Source) > p.MaxSource {
		return fmt.Errorf("%w: source is %d bytes, limit is %d", ErrRejected, len(opts.Source), p.MaxSource)
	}
	if p.MaxInputs > 0 && len(opts.Inputs) > p.MaxInputs {
		return fmt.Errorf("%w: %d inputs, limit is %d", ErrRejected, len(opts.Inputs), p.MaxInputs)
	}
	if opts.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrRejected, opts.Timeout)
	}
	return nil
}

// Timeout returns the wall-clock limit for a request asking for d.
func (p Policy) Timeout(d time.Duration) time.Duration {
	if d <= 0 {
		d = p.DefaultTimeout
	}
	if p.MaxTimeout > 0 && d > p.MaxTimeout {
		d = p.MaxTimeout
	}
	return d
}

// request builds the worker request for opts under this policy.
func (p Policy) request(opts ExecOpts) workerRequest {
	return workerRequest{
		Request: tracer.Request{
			Source:    opts.Source,
			Inputs:    opts.Inputs,
			MaxSteps:  p.MaxSteps,
			MaxDepth:  p.MaxDepth,
			MaxOutput: p.MaxOutput,
			Seed:      opts.Seed,
		},
		MemoryLimit: p.MaxMemory,
	}
}
