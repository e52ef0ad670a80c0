package sandbox

import (
	"context"
	"time"

	"github.com/michaelbrown/decipher/internal/trace"
	"github.com/michaelbrown/decipher/internal/tracer"
)

// InProcess runs programs on the calling goroutine with the same limits
// and result shape as Supervisor, but without a worker process. A runaway
// program that ignores cancellation, or exhausts memory, takes the caller
// down with it. Use it for trusted code and tests only.
type InProcess struct {
	Policy   Policy
	Recorder Recorder // optional
}

// NewInProcess creates an in-process runner with the given policy.
func NewInProcess(policy Policy) *InProcess {
	return &InProcess{Policy: policy}
}

func (p *InProcess) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if err := p.Policy.Check(opts); err != nil {
		return nil, err
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, p.Policy.Timeout(opts.Timeout))
	defer cancel()

	tr := trace.New()
	res := &ExecResult{Trace: tr}
	start := time.Now()
	out, err := tracer.Run(ctx, p.Policy.request(opts).Request, func(s trace.Step) error {
		tr.Append(s)
		if opts.OnStep != nil {
			opts.OnStep(tr.Steps[len(tr.Steps)-1])
		}
		return nil
	})
	res.Duration = time.Since(start)

	switch {
	case err != nil && parent.Err() != nil:
		res.State = StateCanceled
		tr.Fail(trace.Canceled())
		if last := tr.Last(); last != nil {
			tr.FinalOutput = last.Output
		}
	case err != nil && ctx.Err() != nil:
		res.State = StateTimedOut
		tr.Fail(trace.Timeout())
		if last := tr.Last(); last != nil {
			tr.FinalOutput = last.Output
		}
	case err != nil:
		res.State = StateWorkerCrashed
		tr.Fail(trace.WorkerFailure("%v", err))
	default:
		tr.FinalOutput = out.FinalOutput
		tr.Truncated = out.Capped
		res.Degradations = out.Degradations
		res.InputsConsumed = out.InputsConsumed
		res.State = StateCompleted
		if out.Err != nil {
			res.State = StateErrored
			tr.Fail(out.Err)
		}
	}
	tr.Truncate(p.Policy.MaxSteps)

	if p.Recorder != nil {
		p.Recorder.ObserveRun(res.State.String(), res.Duration, len(tr.Steps), res.Degradations, tr.Truncated)
	}
	return res, nil
}
