package tracer

import (
	"strings"

	"github.com/michaelbrown/decipher/internal/pylite"
	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/trace"
)

// hidden names are never shown, whatever they are bound to.
var hidden = map[string]bool{
	"input":        true,
	"print":        true,
	"__builtins__": true,
	"__name__":     true,
}

// Interceptor records one step per executed statement. It implements
// pylite.Tracer.
type Interceptor struct {
	out      *OutputBuffer
	emit     func(trace.Step) error
	depth    int
	maxSteps int

	active   bool
	opened   bool
	capped   bool
	steps    int
	degraded int
}

func newInterceptor(out *OutputBuffer, emit func(trace.Step) error, depth, maxSteps int) *Interceptor {
	return &Interceptor{out: out, emit: emit, depth: depth, maxSteps: maxSteps, active: true}
}

// Statement snapshots the frame just before the statement on line runs.
// The first statement of a run is not recorded: nothing has executed yet.
// Once maxSteps line steps have been recorded the program keeps running but
// nothing more is recorded.
func (ic *Interceptor) Statement(line int, f *pylite.Frame) error {
	if !ic.opened {
		ic.opened = true
		return nil
	}
	if !ic.active {
		return nil
	}
	if ic.maxSteps > 0 && ic.steps >= ic.maxSteps {
		ic.capped = true
		return nil
	}
	bindings := f.Globals()
	bindings = append(bindings, f.Enclosing()...)
	bindings = append(bindings, f.Locals()...)
	return ic.record(trace.Step{
		Line:      trace.LineAt(line),
		Event:     trace.EventLine,
		Function:  f.Function(),
		Variables: ic.variables(bindings),
	})
}

// finish records the closing step with the program's globals.
func (ic *Interceptor) finish(globals []pylite.Binding) error {
	return ic.record(trace.Step{
		Event:     trace.EventFinished,
		Variables: ic.variables(globals),
	})
}

func (ic *Interceptor) record(s trace.Step) error {
	s.Output = ic.out.String()
	ic.steps++
	return ic.emit(s)
}

// detach stops recording. Later statements pass through untouched.
func (ic *Interceptor) detach() { ic.active = false }

// variables merges bindings in order, later entries shadowing earlier ones,
// and snapshots those worth showing.
func (ic *Interceptor) variables(bindings []pylite.Binding) map[string]serialize.Value {
	merged := make(map[string]any, len(bindings))
	for _, b := range bindings {
		if visible(b) {
			merged[b.Name] = b.Value
		} else {
			delete(merged, b.Name)
		}
	}
	out := make(map[string]serialize.Value, len(merged))
	for name, v := range merged {
		sv := serialize.Serialize(v, ic.depth)
		ic.degraded += serialize.Degradations(sv)
		out[name] = sv
	}
	return out
}

// visible excludes dunder names, the hidden set, and anything callable,
// a class or a module.
func visible(b pylite.Binding) bool {
	if strings.HasPrefix(b.Name, "__") || hidden[b.Name] {
		return false
	}
	if _, ok := b.Value.(*pylite.Module); ok {
		return false
	}
	return !pylite.Callable(b.Value)
}
