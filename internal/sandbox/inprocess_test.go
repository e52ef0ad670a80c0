package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/trace"
)

type countingRecorder struct {
	runs      int
	states    []string
	truncated int
}

func (c *countingRecorder) ObserveRun(state string, _ time.Duration, _, _ int, truncated bool) {
	c.runs++
	c.states = append(c.states, state)
	if truncated {
		c.truncated++
	}
}

func TestInProcess(t *testing.T) {
	rec := &countingRecorder{}
	p := NewInProcess(DefaultPolicy())
	p.Recorder = rec

	tests := []struct {
		name  string
		opts  ExecOpts
		state State
		kind  trace.ErrorKind
	}{
		{"completes", ExecOpts{Source: "x = 1\nprint(x)\n"}, StateCompleted, ""},
		{"raises", ExecOpts{Source: "x = 1 / 0\n"}, StateErrored, trace.KindUserProgram},
		{"runs out of input", ExecOpts{Source: "a = input()\nb = input()\n", Inputs: []string{"1"}}, StateErrored, trace.KindEndOfInput},
		{"times out", ExecOpts{Source: "while True: pass", Timeout: 200 * time.Millisecond}, StateTimedOut, trace.KindTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Exec(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("Exec: %v", err)
			}
			if res.State != tt.state {
				t.Errorf("State = %s, want %s", res.State, tt.state)
			}
			if res.Trace.ErrorKind != tt.kind {
				t.Errorf("ErrorKind = %q, want %q", res.Trace.ErrorKind, tt.kind)
			}
			if err := res.Trace.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
	if rec.runs != len(tests) {
		t.Errorf("recorder saw %d runs, want %d", rec.runs, len(tests))
	}
}

func TestInProcessCallerCancels(t *testing.T) {
	tests := []struct {
		name  string
		ctx   func() (context.Context, context.CancelFunc)
		state State
		kind  trace.ErrorKind
	}{
		{"canceled before start", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}, StateCanceled, trace.KindCanceled},
		{"caller deadline", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 100*time.Millisecond)
		}, StateCanceled, trace.KindCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()
			res, err := NewInProcess(DefaultPolicy()).Exec(ctx, ExecOpts{Source: "while True: pass", Timeout: 10 * time.Second})
			if err != nil {
				t.Fatalf("Exec: %v", err)
			}
			if res.State != tt.state || res.Trace.ErrorKind != tt.kind {
				t.Errorf("got %s/%q, want %s/%q", res.State, res.Trace.ErrorKind, tt.state, tt.kind)
			}
			if res.Trace.Finished() {
				t.Error("canceled run has a finished step")
			}
		})
	}
}

func TestInProcessRecordsTruncation(t *testing.T) {
	rec := &countingRecorder{}
	policy := DefaultPolicy()
	policy.MaxSteps = 5
	p := NewInProcess(policy)
	p.Recorder = rec

	for _, src := range []string{"x = 1\n", "n = 0\nwhile n < 50:\n    n += 1\n"} {
		if _, err := p.Exec(context.Background(), ExecOpts{Source: src}); err != nil {
			t.Fatalf("Exec: %v", err)
		}
	}
	if rec.runs != 2 || rec.truncated != 1 {
		t.Errorf("recorder saw %d runs, %d truncated; want 2 and 1", rec.runs, rec.truncated)
	}
}

func TestInProcessStreamsSteps(t *testing.T) {
	var seen []int
	res, err := NewInProcess(DefaultPolicy()).Exec(context.Background(), ExecOpts{
		Source: "a = 1\nb = 2\nc = 3\n",
		OnStep: func(s trace.Step) { seen = append(seen, s.Seq) },
	})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(seen) != len(res.Trace.Steps) {
		t.Fatalf("streamed %d steps, trace has %d", len(seen), len(res.Trace.Steps))
	}
	for i, seq := range seen {
		if seq != i {
			t.Errorf("step %d has seq %d", i, seq)
		}
	}
}

func TestInProcessRejects(t *testing.T) {
	p := DefaultPolicy()
	p.MaxSource = 4
	if _, err := NewInProcess(p).Exec(context.Background(), ExecOpts{Source: "x = 12345"}); err == nil {
		t.Error("expected policy rejection")
	}
}

var (
	_ Sandbox = (*Supervisor)(nil)
	_ Sandbox = (*InProcess)(nil)
)
