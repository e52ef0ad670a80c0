// Package tracer runs a program under observation. It wires an output
// buffer, an input mocker and a frame interceptor into a fresh interpreter
// and emits one step per executed statement.
package tracer

import (
	"context"
	"errors"
	"fmt"

	"github.com/michaelbrown/decipher/internal/pylite"
	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/trace"
)

// Defaults applied to zero-valued Request limits.
const (
	DefaultMaxSteps  = 2000
	DefaultMaxOutput = 64 << 10
)

// Request describes one traced run.
type Request struct {
	Source    string   `json:"source"`
	Inputs    []string `json:"inputs"`
	MaxSteps  int      `json:"max_steps,omitempty"`
	MaxDepth  int      `json:"max_depth,omitempty"`
	MaxOutput int      `json:"max_output,omitempty"`
	Seed      int64    `json:"seed,omitempty"`
}

func (r *Request) applyDefaults() {
	if r.MaxSteps <= 0 {
		r.MaxSteps = DefaultMaxSteps
	}
	if r.MaxDepth <= 0 {
		r.MaxDepth = serialize.DefaultDepth
	}
	if r.MaxOutput <= 0 {
		r.MaxOutput = DefaultMaxOutput
	}
}

func (r Request) stepLimit() int {
	if r.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return r.MaxSteps
}

// Outcome summarizes a finished run. Err is the program-level error, if the
// program did not complete.
type Outcome struct {
	Err            *trace.ExecError `json:"error,omitempty"`
	FinalOutput    string           `json:"final_output"`
	Steps          int              `json:"steps"`
	Capped         bool             `json:"capped,omitempty"` // statements ran after the step cap
	Degradations   int              `json:"degradations"`
	InputsConsumed int              `json:"inputs_consumed"`
}

// Run executes req.Source and passes each recorded step to emit, in order.
// A program that completes ends with a finished step; one that raises ends
// with the step of the statement that raised. Program failures are reported
// in Outcome.Err. The returned error is reserved for failures outside the
// program: cancellation of ctx or an error from emit.
func Run(ctx context.Context, req Request, emit func(trace.Step) error) (*Outcome, error) {
	req.applyDefaults()

	out := NewOutputBuffer(req.MaxOutput)
	mocker := NewInputMocker(req.Inputs, out)
	ic := newInterceptor(out, emit, req.MaxDepth, req.MaxSteps)
	defer ic.detach()

	in := pylite.New(pylite.Options{
		Stdout: out,
		Input:  mocker.Read,
		Tracer: ic,
		Seed:   req.Seed,
	})
	runErr := in.Run(ctx, req.Source)

	outcome := &Outcome{FinalOutput: out.String()}
	defer func() {
		outcome.Steps = ic.steps
		outcome.Capped = ic.capped
		outcome.Degradations = ic.degraded
		outcome.InputsConsumed = mocker.Consumed()
	}()

	if runErr == nil {
		if err := ic.finish(in.Globals()); err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	execErr, ok := programError(runErr)
	if !ok {
		return outcome, runErr
	}
	outcome.Err = execErr
	if ic.steps == 0 && execErr.Line > 0 {
		if err := ic.record(trace.Step{Line: trace.LineAt(execErr.Line), Event: trace.EventLine, Function: "<module>"}); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// programError classifies err as a failure of the program itself.
func programError(err error) (*trace.ExecError, bool) {
	var se *pylite.SyntaxError
	if errors.As(err, &se) {
		return &trace.ExecError{Kind: trace.KindUserProgram, Type: se.Kind, Message: se.Msg, Line: se.Line}, true
	}
	var exc *pylite.Exception
	if errors.As(err, &exc) {
		kind := trace.KindUserProgram
		if errors.Is(err, pylite.ErrEndOfInput) {
			kind = trace.KindEndOfInput
		}
		return &trace.ExecError{Kind: kind, Type: exc.TypeName(), Message: exc.Message(), Line: exc.Line}, true
	}
	return nil, false
}

// Collect runs req in the calling goroutine and gathers the steps into a
// Trace. It offers no isolation; the sandbox package runs untrusted code.
func Collect(ctx context.Context, req Request) (*trace.Trace, *Outcome, error) {
	tr := trace.New()
	outcome, err := Run(ctx, req, func(s trace.Step) error {
		tr.Append(s)
		return nil
	})
	if err != nil {
		return nil, outcome, fmt.Errorf("running program: %w", err)
	}
	tr.FinalOutput = outcome.FinalOutput
	tr.Truncated = outcome.Capped
	// The closing step is recorded past the cap; keep the total within it.
	tr.Truncate(req.stepLimit())
	if outcome.Err != nil {
		tr.Fail(outcome.Err)
	}
	return tr, outcome, nil
}
