package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/michaelbrown/decipher/internal/trace"
)

// handoffSize bounds how many worker messages may be queued ahead of the
// supervisor. A worker that outpaces it blocks on its stdout.
const handoffSize = 64

// Recorder receives one observation per finished execution.
type Recorder interface {
	ObserveRun(state string, duration time.Duration, steps, degradations int, truncated bool)
}

// Supervisor runs each execution in a fresh worker, enforces the wall-clock
// limit, and always resolves to a Trace.
type Supervisor struct {
	Launcher Launcher
	Policy   Policy
	Recorder Recorder // optional

	// Grace bounds how long a worker may linger after posting its result,
	// and how long output may take to drain after a kill.
	Grace time.Duration
}

// NewSupervisor creates a supervisor that starts workers with l.
func NewSupervisor(l Launcher, policy Policy) *Supervisor {
	return &Supervisor{Launcher: l, Policy: policy, Grace: time.Second}
}

// Exec runs opts.Source in an isolated worker. It returns an error only when
// the policy rejects the request.
func (s *Supervisor) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if err := s.Policy.Check(opts); err != nil {
		return nil, err
	}
	r := &run{
		id:       uuid.NewString(),
		tr:       trace.New(),
		onStep:   opts.OnStep,
		maxSteps: s.Policy.MaxSteps,
	}
	start := time.Now()
	res := s.execute(ctx, r, s.Policy.request(opts), s.Policy.Timeout(opts.Timeout))
	res.Duration = time.Since(start)
	res.Trace.Truncate(s.Policy.MaxSteps)

	log.Printf("sandbox run %s: %s in %s (%d steps, exit %d)", r.id, res.State, res.Duration.Round(time.Millisecond), len(res.Trace.Steps), res.ExitCode)
	if s.Recorder != nil {
		s.Recorder.ObserveRun(res.State.String(), res.Duration, len(res.Trace.Steps), res.Degradations, res.Trace.Truncated)
	}
	r.moveTo(StateReaped)
	return res, nil
}

// run is the supervisor's view of one execution.
type run struct {
	id       string
	state    State
	tr       *trace.Trace
	onStep   func(trace.Step)
	maxSteps int
}

func (r *run) moveTo(to State) {
	if !r.state.canMoveTo(to) {
		log.Printf("sandbox run %s: unexpected transition %s -> %s", r.id, r.state, to)
	}
	r.state = to
}

// addStep keeps at most maxSteps+1 steps: enough for a capped trace plus
// its finished step.
func (r *run) addStep(s trace.Step) {
	if r.maxSteps > 0 && len(r.tr.Steps) > r.maxSteps {
		r.tr.Truncated = true
		return
	}
	r.tr.Append(s)
	if r.onStep != nil {
		r.onStep(r.tr.Steps[len(r.tr.Steps)-1])
	}
}

// lastOutput is the output as of the last captured step. Runs that never
// reported a result end with what was observed, nothing more.
func (r *run) lastOutput() string {
	if last := r.tr.Last(); last != nil {
		return last.Output
	}
	return ""
}

func (s *Supervisor) execute(ctx context.Context, r *run, req workerRequest, timeout time.Duration) *ExecResult {
	res := &ExecResult{Trace: r.tr}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	r.moveTo(StateSpawning)
	cmd, err := s.Launcher.Command(r.id)
	if err != nil {
		return s.crashed(r, res, "building worker command: %v", err)
	}
	setupProcessGroup(cmd)
	cmd.WaitDelay = s.Grace
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return s.crashed(r, res, "worker stdin: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.crashed(r, res, "worker stdout: %v", err)
	}
	stderr := newTailBuffer(s.Policy.StderrTail)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return s.crashed(r, res, "starting worker: %v", err)
	}

	go func() {
		_ = json.NewEncoder(stdin).Encode(message{Type: msgRequest, Request: &req})
		stdin.Close()
	}()

	msgs := make(chan message, handoffSize)
	done := make(chan struct{})
	readerExited := make(chan struct{})
	go readMessages(stdout, msgs, done, readerExited)

	var (
		result   *message
		timedOut bool
		canceled bool
	)
loop:
	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				break loop
			}
			switch m.Type {
			case msgReady:
				r.moveTo(StateRunning)
			case msgStep:
				if m.Step != nil {
					r.addStep(*m.Step)
				}
			case msgResult:
				result = &m
				break loop
			}
		case <-deadline.C:
			timedOut = true
			break loop
		case <-ctx.Done():
			log.Printf("sandbox run %s: caller gave up: %v", r.id, ctx.Err())
			canceled = true
			break loop
		}
	}
	close(done)

	if !timedOut && !canceled {
		grace := time.NewTimer(s.Grace)
		select {
		case <-readerExited:
		case <-grace.C:
			s.kill(r, cmd)
		}
		grace.Stop()
	} else {
		s.kill(r, cmd)
	}
	<-readerExited
	waitErr := cmd.Wait()
	res.ExitCode = cmd.ProcessState.ExitCode()
	res.Stderr = stderr.String()

	switch {
	case timedOut:
		r.moveTo(StateTimedOut)
		r.tr.Fail(trace.Timeout())
		r.tr.FinalOutput = r.lastOutput()
	case canceled:
		r.moveTo(StateCanceled)
		r.tr.Fail(trace.Canceled())
		r.tr.FinalOutput = r.lastOutput()
	case result == nil:
		detail := fmt.Sprintf("worker exited with code %d without a result", res.ExitCode)
		if waitErr != nil {
			detail = fmt.Sprintf("worker exited without a result: %v", waitErr)
		}
		if tail := stderr.String(); tail != "" {
			detail += ": " + lastLine(tail)
		}
		return s.crashed(r, res, "%s", detail)
	case result.Error != "" || result.Outcome == nil:
		return s.crashed(r, res, "worker failed: %s", result.Error)
	default:
		out := result.Outcome
		r.tr.FinalOutput = out.FinalOutput
		if out.Capped {
			r.tr.Truncated = true
		}
		res.Degradations = out.Degradations
		res.InputsConsumed = out.InputsConsumed
		if out.Err != nil {
			r.moveTo(StateErrored)
			r.tr.Fail(out.Err)
		} else {
			r.moveTo(StateCompleted)
		}
	}
	res.State = r.state
	return res
}

func (s *Supervisor) crashed(r *run, res *ExecResult, format string, args ...any) *ExecResult {
	r.moveTo(StateWorkerCrashed)
	r.tr.Fail(trace.WorkerFailure(format, args...))
	r.tr.FinalOutput = r.lastOutput()
	res.State = r.state
	return res
}

// kill takes down the worker's process group and anything the launcher
// placed outside it.
func (s *Supervisor) kill(r *run, cmd *exec.Cmd) {
	if cmd.Process != nil {
		if err := killProcessGroup(cmd.Process.Pid); err != nil {
			log.Printf("sandbox run %s: killing worker: %v", r.id, err)
			_ = cmd.Process.Kill()
		}
	}
	if err := s.Launcher.Kill(r.id); err != nil {
		log.Printf("sandbox run %s: %v", r.id, err)
	}
}

// readMessages decodes worker messages until stdout closes or done is
// closed. Malformed output ends the stream.
func readMessages(stdout io.Reader, msgs chan<- message, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	defer close(msgs)
	dec := json.NewDecoder(stdout)
	for {
		var m message
		if err := dec.Decode(&m); err != nil {
			if err != io.EOF {
				log.Printf("sandbox: reading worker output: %v", err)
			}
			// Keep the pipe drained so the worker is never blocked on a
			// full stdout while it is being reaped.
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
		select {
		case msgs <- m:
		case <-done:
			_, _ = io.Copy(io.Discard, stdout)
			return
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 4 << 10
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
