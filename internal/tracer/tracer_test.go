package tracer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/pylite"
	"github.com/michaelbrown/decipher/internal/trace"
)

func collect(t *testing.T, req Request) *trace.Trace {
	t.Helper()
	tr, _, err := Collect(context.Background(), req)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return tr
}

func variable(t *testing.T, s trace.Step, name string) string {
	t.Helper()
	v, ok := s.Variables[name]
	if !ok {
		t.Fatalf("step %d has no variable %q (have %v)", s.Seq, name, s.Variables)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(b)
}

func TestRunStraightLine(t *testing.T) {
	tr := collect(t, Request{Source: "x = 1\nx = x + 1\nprint(x)"})

	if len(tr.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(tr.Steps))
	}
	if tr.Error != nil {
		t.Errorf("error = %q, want nil", *tr.Error)
	}
	for i, want := range []int{2, 3} {
		s := tr.Steps[i]
		if s.Event != trace.EventLine || s.Line == nil || *s.Line != want {
			t.Errorf("step %d = %+v, want line step at %d", i, s, want)
		}
	}
	last := tr.Steps[2]
	if last.Event != trace.EventFinished || last.Line != nil {
		t.Errorf("last step = %+v, want finished without a line", last)
	}
	if got := variable(t, last, "x"); got != "2" {
		t.Errorf("final x = %s, want 2", got)
	}
	if tr.FinalOutput != "2\n" || last.Output != "2\n" {
		t.Errorf("final output = %q / %q, want %q", tr.FinalOutput, last.Output, "2\n")
	}
}

func TestRunSelfReference(t *testing.T) {
	tr := collect(t, Request{Source: "v = []\nv.append(v)\n"})
	got := variable(t, *tr.Last(), "v")
	if !strings.HasPrefix(got, `[{"__circular__":`) {
		t.Errorf("v = %s, want a circular marker in its only slot", got)
	}
}

func TestRunHidesInternals(t *testing.T) {
	src := `import math
from collections import deque

class Box:
    pass

def helper(n):
    x = n * 2
    return x

x = 1
y = helper(5)
b = Box()
`
	tr := collect(t, Request{Source: src})
	final := tr.Last()
	for _, name := range []string{"math", "deque", "Box", "helper", "print", "input", "__name__"} {
		if _, ok := final.Variables[name]; ok {
			t.Errorf("final step shows %q", name)
		}
	}
	for _, name := range []string{"x", "y", "b"} {
		if _, ok := final.Variables[name]; !ok {
			t.Errorf("final step is missing %q", name)
		}
	}

	// Inside helper, the local x shadows the global x.
	var inside *trace.Step
	for i := range tr.Steps {
		s := &tr.Steps[i]
		if s.Function == "helper" && s.Line != nil && *s.Line == 9 {
			inside = s
		}
	}
	if inside == nil {
		t.Fatal("no step recorded at the return inside helper")
	}
	if got := variable(t, *inside, "x"); got != "10" {
		t.Errorf("x inside helper = %s, want 10", got)
	}
	if got := variable(t, *inside, "n"); got != "5" {
		t.Errorf("n inside helper = %s, want 5", got)
	}
}

func TestRunInputs(t *testing.T) {
	src := `name = input("Name: ")
age = int(input("Age: "))
print(name, age + 1)`
	tr := collect(t, Request{Source: src, Inputs: []string{"Ada", "36"}})
	want := "Name: Ada\nAge: 36\nAda 37\n"
	if tr.FinalOutput != want {
		t.Errorf("output = %q, want %q", tr.FinalOutput, want)
	}
	if tr.Error != nil {
		t.Errorf("error = %q, want nil", *tr.Error)
	}
}

func TestRunEndOfInput(t *testing.T) {
	src := `a = input("first: ")
b = input("second: ")
print(a, b)`
	done := make(chan *trace.Trace, 1)
	go func() {
		tr, _, _ := Collect(context.Background(), Request{Source: src, Inputs: []string{"1"}})
		done <- tr
	}()

	var tr *trace.Trace
	select {
	case tr = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run blocked waiting for input")
	}
	if tr.ErrorKind != trace.KindEndOfInput {
		t.Fatalf("error kind = %q, want %q", tr.ErrorKind, trace.KindEndOfInput)
	}
	if !strings.Contains(*tr.Error, "More inputs were requested by the code than were provided") {
		t.Errorf("error = %q", *tr.Error)
	}
	if tr.Finished() {
		t.Error("errored run ended with a finished step")
	}
	if got := *tr.Last().Line; got != 2 {
		t.Errorf("last step line = %d, want 2", got)
	}
	if tr.FinalOutput != "first: 1\nsecond: " {
		t.Errorf("output = %q", tr.FinalOutput)
	}
}

func TestRunProgramErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		line     int
		contains string
	}{
		{"runtime error", "a = 1\nb = 0\nc = a / b\n", 3, "ZeroDivisionError: division by zero"},
		{"error on first line", "x = undefined\n", 1, "NameError"},
		{"error inside function", "def f():\n    return [][1]\n\nf()\n", 2, "IndexError"},
		{"syntax error", "x = 1\nif x\n    pass\n", 2, "SyntaxError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := collect(t, Request{Source: tt.src})
			if tr.Error == nil {
				t.Fatal("error = nil, want an error")
			}
			if tr.ErrorKind != trace.KindUserProgram {
				t.Errorf("kind = %q, want %q", tr.ErrorKind, trace.KindUserProgram)
			}
			if !strings.Contains(*tr.Error, tt.contains) {
				t.Errorf("error = %q, want it to mention %q", *tr.Error, tt.contains)
			}
			if len(tr.Steps) == 0 {
				t.Fatal("errored run has no steps")
			}
			if last := tr.Last(); last.Line == nil || *last.Line != tt.line || tr.ErrorLine != tt.line {
				t.Errorf("last step line %v, error line %d, want %d", last.Line, tr.ErrorLine, tt.line)
			}
		})
	}
}

func TestRunOutputMonotonic(t *testing.T) {
	src := `total = 0
for i in range(5):
    total += i
    print(i, total)
`
	tr := collect(t, Request{Source: src})
	for i := 1; i < len(tr.Steps); i++ {
		if !strings.HasPrefix(tr.Steps[i].Output, tr.Steps[i-1].Output) {
			t.Fatalf("step %d output %q does not extend %q", i, tr.Steps[i].Output, tr.Steps[i-1].Output)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	src := `import random
s = {5, 3, 9, 1}
d = {}
for k in "hello":
    d[k] = d.get(k, 0) + 1
r = random.randint(1, 100)
`
	first, err := json.Marshal(collect(t, Request{Source: src}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := json.Marshal(collect(t, Request{Source: src}))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("two runs differ:\n%s\n%s", first, second)
	}
}

func TestRunStepCap(t *testing.T) {
	loop := "n = 0\nwhile n < 5000:\n    n += 1\n"
	tests := []struct {
		name      string
		req       Request
		wantSteps int
		truncated bool
		final     string
	}{
		{"explicit cap", Request{Source: loop, MaxSteps: 10}, 10, true, "5000"},
		{"default cap", Request{Source: loop}, DefaultMaxSteps, true, "5000"},
		{"under the cap", Request{Source: "n = 1\nn += 1\n", MaxSteps: 10}, 2, false, "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := collect(t, tt.req)
			if len(tr.Steps) != tt.wantSteps {
				t.Errorf("got %d steps, want %d", len(tr.Steps), tt.wantSteps)
			}
			if tr.Truncated != tt.truncated {
				t.Errorf("truncated = %v, want %v", tr.Truncated, tt.truncated)
			}
			if !tr.Finished() {
				t.Fatal("run lost its finished step")
			}
			if got := variable(t, *tr.Last(), "n"); got != tt.final {
				t.Errorf("final n = %s, want %s", got, tt.final)
			}
		})
	}
}

func TestRunOutputLimit(t *testing.T) {
	tr := collect(t, Request{Source: "while True:\n    print('spam')\n", MaxOutput: 12})
	if tr.Error == nil || !strings.Contains(*tr.Error, "OutputLimitError") {
		t.Fatalf("error = %v, want OutputLimitError", tr.Error)
	}
	if len(tr.FinalOutput) != 12 {
		t.Errorf("output length = %d, want 12", len(tr.FinalOutput))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := Collect(ctx, Request{Source: "while True:\n    pass\n"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestRunEmitError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	_, err := Run(context.Background(), Request{Source: "a = 1\nb = 2\nc = 3\n"}, func(trace.Step) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want the emit error", err)
	}
	if calls != 1 {
		t.Errorf("emit called %d times, want 1", calls)
	}
}

func TestInputMocker(t *testing.T) {
	out := NewOutputBuffer(0)
	m := NewInputMocker([]string{"x"}, out)
	if v, err := m.Read("? "); err != nil || v != "x" {
		t.Fatalf("Read = %q, %v", v, err)
	}
	if _, err := m.Read("? "); !errors.Is(err, pylite.ErrEndOfInput) {
		t.Errorf("Read past end = %v, want ErrEndOfInput", err)
	}
	if out.String() != "? x\n? " {
		t.Errorf("transcript = %q", out.String())
	}
	if m.Consumed() != 1 {
		t.Errorf("Consumed = %d, want 1", m.Consumed())
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		b    pylite.Binding
		want bool
	}{
		{pylite.Binding{Name: "x", Value: int64(1)}, true},
		{pylite.Binding{Name: "__doc__", Value: "text"}, false},
		{pylite.Binding{Name: "input", Value: "shadowed"}, false},
	}
	for _, tt := range tests {
		if got := visible(tt.b); got != tt.want {
			t.Errorf("visible(%s) = %v, want %v", tt.b.Name, got, tt.want)
		}
	}
}

var _ pylite.Tracer = (*Interceptor)(nil)
