// Package trace defines the step-by-step record of one traced execution and
// the errors that can end it.
package trace

import (
	"fmt"
	"strings"

	"github.com/michaelbrown/decipher/internal/serialize"
)

// Event distinguishes statement steps from the closing snapshot.
type Event string

const (
	EventLine     Event = "line"
	EventFinished Event = "finished"
)

// Step is the program state observed just before one statement executed.
type Step struct {
	Seq       int                        `json:"seq"`
	Line      *int                       `json:"line"`
	Event     Event                      `json:"event"`
	Function  string                     `json:"function,omitempty"`
	Variables map[string]serialize.Value `json:"variables"`
	Output    string                     `json:"output"`
}

// Trace is the full record of one execution. Error is nil when the program
// ran to completion.
type Trace struct {
	Steps       []Step    `json:"steps"`
	Error       *string   `json:"error"`
	ErrorKind   ErrorKind `json:"error_kind,omitempty"`
	ErrorLine   int       `json:"error_line,omitempty"`
	FinalOutput string    `json:"final_output"`
	Truncated   bool      `json:"truncated"`
}

// New returns an empty trace ready to be appended to.
func New() *Trace {
	return &Trace{Steps: []Step{}}
}

// LineAt returns a line pointer for Step.Line.
func LineAt(n int) *int { return &n }

// Append adds s with the next sequence number.
func (t *Trace) Append(s Step) {
	s.Seq = len(t.Steps)
	if s.Variables == nil {
		s.Variables = map[string]serialize.Value{}
	}
	t.Steps = append(t.Steps, s)
}

// Last returns the most recent step, or nil.
func (t *Trace) Last() *Step {
	if len(t.Steps) == 0 {
		return nil
	}
	return &t.Steps[len(t.Steps)-1]
}

// Finished reports whether the trace ends with a finished step.
func (t *Trace) Finished() bool {
	last := t.Last()
	return last != nil && last.Event == EventFinished
}

// Fail records err as the trace's terminal error.
func (t *Trace) Fail(err *ExecError) {
	msg := err.Error()
	t.Error = &msg
	t.ErrorKind = err.Kind
	t.ErrorLine = err.Line
}

// Err returns the recorded error, or nil.
func (t *Trace) Err() *ExecError {
	if t.Error == nil {
		return nil
	}
	return &ExecError{Kind: t.ErrorKind, Line: t.ErrorLine, Message: *t.Error, rendered: true}
}

// Truncate caps the trace at max steps. A finished step survives truncation
// and takes the last slot. It reports whether steps were dropped.
func (t *Trace) Truncate(max int) bool {
	if max <= 0 || len(t.Steps) <= max {
		return false
	}
	if t.Finished() {
		finished := t.Steps[len(t.Steps)-1]
		t.Steps = append(t.Steps[:max-1:max-1], finished)
		t.Steps[max-1].Seq = max - 1
	} else {
		t.Steps = t.Steps[:max]
	}
	t.Truncated = true
	return true
}

// Validate checks the structural invariants a well-formed trace satisfies:
// sequence numbers increase, output only grows, and a finished step is last
// and has no line.
func (t *Trace) Validate() error {
	for i, s := range t.Steps {
		if i > 0 {
			prev := t.Steps[i-1]
			if s.Seq <= prev.Seq {
				return fmt.Errorf("step %d: sequence %d does not follow %d", i, s.Seq, prev.Seq)
			}
			if !strings.HasPrefix(s.Output, prev.Output) {
				return fmt.Errorf("step %d: output is not an extension of step %d", i, i-1)
			}
		}
		switch s.Event {
		case EventLine:
			if s.Line == nil {
				return fmt.Errorf("step %d: line step without a line", i)
			}
		case EventFinished:
			if i != len(t.Steps)-1 {
				return fmt.Errorf("step %d: finished step is not last", i)
			}
			if s.Line != nil {
				return fmt.Errorf("step %d: finished step has line %d", i, *s.Line)
			}
		default:
			return fmt.Errorf("step %d: unknown event %q", i, s.Event)
		}
	}
	return nil
}
