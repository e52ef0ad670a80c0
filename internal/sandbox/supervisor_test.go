package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/trace"
)

// The test binary doubles as the worker: the supervisor re-executes it with
// DECIPHER_TEST_WORKER set.
func TestMain(m *testing.M) {
	switch os.Getenv("DECIPHER_TEST_WORKER") {
	case "":
		os.Exit(m.Run())
	case "serve":
		if err := ServeWorker(context.Background(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	case "crash":
		fmt.Println(`{"type":"ready"}`)
		fmt.Fprintln(os.Stderr, "fatal error: runtime: out of memory")
		os.Exit(2)
	case "silent":
		time.Sleep(time.Hour)
	}
	os.Exit(3)
}

func testSupervisor(t *testing.T, mode string) *Supervisor {
	t.Helper()
	l := &ProcessLauncher{
		Path: os.Args[0],
		Env:  []string{"DECIPHER_TEST_WORKER=" + mode},
	}
	s := NewSupervisor(l, DefaultPolicy())
	s.Grace = 2 * time.Second
	return s
}

func mustExec(t *testing.T, s *Supervisor, opts ExecOpts) *ExecResult {
	t.Helper()
	res, err := s.Exec(context.Background(), opts)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := res.Trace.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return res
}

func TestExecCompleted(t *testing.T) {
	var streamed []trace.Step
	res := mustExec(t, testSupervisor(t, "serve"), ExecOpts{
		Source: "x = 1\nx = x + 1\nprint(x)",
		OnStep: func(s trace.Step) { streamed = append(streamed, s) },
	})

	if res.State != StateCompleted {
		t.Errorf("State = %s, want %s (stderr %q)", res.State, StateCompleted, res.Stderr)
	}
	tr := res.Trace
	if tr.Error != nil {
		t.Fatalf("error = %q, want nil", *tr.Error)
	}
	if len(tr.Steps) != 3 || !tr.Finished() {
		t.Fatalf("got %d steps (finished %v), want 3 ending in finished", len(tr.Steps), tr.Finished())
	}
	if tr.FinalOutput != "2\n" {
		t.Errorf("FinalOutput = %q, want %q", tr.FinalOutput, "2\n")
	}
	if x, _ := tr.Last().Variables["x"].Scalar.(int64); x != 2 {
		t.Errorf("final x = %v, want 2", tr.Last().Variables["x"])
	}
	if len(streamed) != len(tr.Steps) {
		t.Errorf("OnStep saw %d steps, trace has %d", len(streamed), len(tr.Steps))
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestExecTimeout(t *testing.T) {
	start := time.Now()
	res := mustExec(t, testSupervisor(t, "serve"), ExecOpts{
		Source:  "while True: pass",
		Timeout: 2 * time.Second,
	})
	elapsed := time.Since(start)

	if res.State != StateTimedOut {
		t.Errorf("State = %s, want %s", res.State, StateTimedOut)
	}
	if res.Trace.Error == nil || *res.Trace.Error != "Timeout" {
		t.Fatalf("error = %v, want Timeout", res.Trace.Error)
	}
	if res.Trace.Finished() {
		t.Error("timed out run has a finished step")
	}
	if elapsed > 4*time.Second {
		t.Errorf("Exec took %s, want about 2s", elapsed)
	}
}

func TestExecEndOfInput(t *testing.T) {
	res := mustExec(t, testSupervisor(t, "serve"), ExecOpts{
		Source:  "a = input('a? ')\nb = input('b? ')\n",
		Inputs:  []string{"1"},
		Timeout: 5 * time.Second,
	})
	if res.State != StateErrored {
		t.Errorf("State = %s, want %s", res.State, StateErrored)
	}
	if res.Trace.ErrorKind != trace.KindEndOfInput {
		t.Errorf("ErrorKind = %q, want %q", res.Trace.ErrorKind, trace.KindEndOfInput)
	}
	if res.InputsConsumed != 1 {
		t.Errorf("InputsConsumed = %d, want 1", res.InputsConsumed)
	}
}

func TestExecProgramError(t *testing.T) {
	res := mustExec(t, testSupervisor(t, "serve"), ExecOpts{Source: "a = [1]\nb = a[5]\n"})
	if res.State != StateErrored {
		t.Errorf("State = %s, want %s", res.State, StateErrored)
	}
	tr := res.Trace
	if tr.Error == nil || !strings.Contains(*tr.Error, "IndexError") {
		t.Fatalf("error = %v, want IndexError", tr.Error)
	}
	if last := tr.Last(); last == nil || last.Line == nil || *last.Line != 2 {
		t.Errorf("last step = %+v, want line 2", last)
	}
}

func TestExecTruncates(t *testing.T) {
	s := testSupervisor(t, "serve")
	s.Policy.MaxSteps = 5
	res := mustExec(t, s, ExecOpts{Source: "i = 0\nwhile i < 50:\n    i += 1\n"})

	tr := res.Trace
	if !tr.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(tr.Steps) != 5 || !tr.Finished() {
		t.Errorf("got %d steps (finished %v), want 5 ending in finished", len(tr.Steps), tr.Finished())
	}
}

func TestExecWorkerCrash(t *testing.T) {
	res := mustExec(t, testSupervisor(t, "crash"), ExecOpts{Source: "x = 1\n"})
	if res.State != StateWorkerCrashed {
		t.Errorf("State = %s, want %s", res.State, StateWorkerCrashed)
	}
	if res.Trace.ErrorKind != trace.KindWorkerFailure {
		t.Errorf("ErrorKind = %q, want %q", res.Trace.ErrorKind, trace.KindWorkerFailure)
	}
	if !strings.Contains(*res.Trace.Error, "out of memory") {
		t.Errorf("error = %q, want the stderr tail", *res.Trace.Error)
	}
	if res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", res.ExitCode)
	}
	if len(res.Trace.Steps) != 0 {
		t.Errorf("crashed run fabricated %d steps", len(res.Trace.Steps))
	}
}

func TestExecCallerCancels(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := testSupervisor(t, "serve").Exec(ctx, ExecOpts{Source: "while True: pass", Timeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.State != StateCanceled {
		t.Errorf("State = %s, want %s", res.State, StateCanceled)
	}
	if res.Trace.Error == nil || *res.Trace.Error != "Canceled" || res.Trace.ErrorKind != trace.KindCanceled {
		t.Errorf("error = %v (%q), want Canceled", res.Trace.Error, res.Trace.ErrorKind)
	}
	if res.Trace.Finished() {
		t.Error("canceled run has a finished step")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Exec took %s after the caller gave up", elapsed)
	}
}

func TestExecSilentWorkerTimesOut(t *testing.T) {
	res := mustExec(t, testSupervisor(t, "silent"), ExecOpts{Source: "x = 1\n", Timeout: 500 * time.Millisecond})
	if res.State != StateTimedOut {
		t.Errorf("State = %s, want %s", res.State, StateTimedOut)
	}
}

func TestExecBadLauncher(t *testing.T) {
	s := NewSupervisor(&ProcessLauncher{Path: "/nonexistent/decipher"}, DefaultPolicy())
	res := mustExec(t, s, ExecOpts{Source: "x = 1\n"})
	if res.State != StateWorkerCrashed || res.Trace.ErrorKind != trace.KindWorkerFailure {
		t.Errorf("State = %s, kind %q, want a worker failure", res.State, res.Trace.ErrorKind)
	}
}

func TestPolicyCheck(t *testing.T) {
	p := DefaultPolicy()
	p.MaxSource = 10
	p.MaxInputs = 1

	tests := []struct {
		name string
		opts ExecOpts
		ok   bool
	}{
		{"within limits", ExecOpts{Source: "x = 1", Inputs: []string{"a"}}, true},
		{"source too large", ExecOpts{Source: strings.Repeat("x", 11)}, false},
		{"too many inputs", ExecOpts{Source: "x", Inputs: []string{"a", "b"}}, false},
		{"negative timeout", ExecOpts{Source: "x", Timeout: -time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.opts)
			if (err == nil) != tt.ok {
				t.Fatalf("Check = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrRejected) {
				t.Errorf("Check error %v does not wrap ErrRejected", err)
			}
		})
	}

	if got := p.Timeout(0); got != 5*time.Second {
		t.Errorf("Timeout(0) = %s, want 5s", got)
	}
	if got := p.Timeout(time.Minute); got != 30*time.Second {
		t.Errorf("Timeout(1m) = %s, want 30s", got)
	}
}

func TestDockerLauncherCommand(t *testing.T) {
	d := NewDockerLauncher("decipher:latest", DefaultPolicy())
	cmd, err := d.Command("abc")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	args := strings.Join(cmd.Args, " ")
	for _, want := range []string{"--name decipher-abc", "--memory 256m", "--network=none", "decipher:latest decipher worker"} {
		if !strings.Contains(args, want) {
			t.Errorf("docker args %q missing %q", args, want)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	if !StateRunning.canMoveTo(StateTimedOut) {
		t.Error("running should be able to time out")
	}
	if StateCompleted.canMoveTo(StateRunning) {
		t.Error("completed must not return to running")
	}
	if !StateRunning.canMoveTo(StateCanceled) || !StateCanceled.canMoveTo(StateReaped) {
		t.Error("running should be able to end canceled and then be reaped")
	}
	for _, s := range []State{StateCompleted, StateErrored, StateTimedOut, StateWorkerCrashed, StateCanceled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(5)
	fmt.Fprint(b, "hello ")
	fmt.Fprint(b, "world")
	if got := b.String(); got != "world" {
		t.Errorf("tail = %q, want %q", got, "world")
	}
}
