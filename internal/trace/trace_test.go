package trace

import (
	"encoding/json"
	"strings"
	"testing"
)

func lineSteps(tr *Trace, n int) {
	out := ""
	for i := 0; i < n; i++ {
		out += "."
		tr.Append(Step{Line: LineAt(i + 1), Event: EventLine, Output: out})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		finished  bool
		max       int
		wantLen   int
		wantTrunc bool
	}{
		{"under limit", 3, true, 5, 4, false},
		{"at limit", 4, true, 5, 5, false},
		{"over limit keeps finished", 10, true, 5, 5, true},
		{"over limit without finished", 10, false, 5, 5, true},
		{"zero disables", 10, false, 0, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			lineSteps(tr, tt.lines)
			if tt.finished {
				tr.Append(Step{Event: EventFinished, Output: tr.Last().Output})
			}
			got := tr.Truncate(tt.max)
			if got != tt.wantTrunc || tr.Truncated != tt.wantTrunc {
				t.Errorf("Truncate = %v (Truncated %v), want %v", got, tr.Truncated, tt.wantTrunc)
			}
			if len(tr.Steps) != tt.wantLen {
				t.Fatalf("len(Steps) = %d, want %d", len(tr.Steps), tt.wantLen)
			}
			if tr.Finished() != tt.finished {
				t.Errorf("Finished = %v, want %v", tr.Finished(), tt.finished)
			}
			if err := tr.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tr := New()
	lineSteps(tr, 2)
	tr.Steps[1].Output = "x"
	if err := tr.Validate(); err == nil || !strings.Contains(err.Error(), "output") {
		t.Errorf("Validate = %v, want output monotonicity error", err)
	}

	tr = New()
	tr.Append(Step{Event: EventFinished})
	lineSteps(tr, 1)
	if err := tr.Validate(); err == nil {
		t.Error("Validate accepted a finished step before a line step")
	}
}

func TestTraceWireShape(t *testing.T) {
	tr := New()
	lineSteps(tr, 1)
	tr.Append(Step{Event: EventFinished, Output: "."})
	tr.FinalOutput = "."

	data, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"error":null`, `"line":null`, `"event":"finished"`, `"truncated":false`, `"final_output":"."`} {
		if !strings.Contains(got, want) {
			t.Errorf("trace JSON %s missing %s", got, want)
		}
	}
	if strings.Contains(got, "error_kind") {
		t.Errorf("trace JSON %s carries an error kind without an error", got)
	}
}

func TestExecErrorMessages(t *testing.T) {
	tests := []struct {
		err  *ExecError
		want string
	}{
		{&ExecError{Kind: KindUserProgram, Type: "ZeroDivisionError", Message: "division by zero", Line: 3},
			"Execution Error near line 3: ZeroDivisionError: division by zero"},
		{&ExecError{Kind: KindUserProgram, Type: "SyntaxError", Message: "invalid syntax"},
			"Execution Error: SyntaxError: invalid syntax"},
		{Timeout(), "Timeout"},
		{Canceled(), "Canceled"},
		{WorkerFailure("exit status %d", 2), "WorkerFailure: exit status 2"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}

	tr := New()
	tr.Fail(&ExecError{Kind: KindEndOfInput, Type: "EOFError", Message: "End of input.", Line: 2})
	back := tr.Err()
	if back.Kind != KindEndOfInput || back.Line != 2 || back.Error() != *tr.Error {
		t.Errorf("Err() = %+v, want the recorded error", back)
	}
	if KindOf(back) != KindEndOfInput {
		t.Errorf("KindOf = %q, want %q", KindOf(back), KindEndOfInput)
	}
}
