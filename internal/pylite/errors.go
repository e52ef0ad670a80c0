package pylite

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEndOfInput is returned by an input source that has no more values.
// The interpreter raises it in the program as EOFError.
var ErrEndOfInput = errors.New("End of input. More inputs were requested by the code than were provided.")

// ErrOutputLimit is returned by an output writer that refuses more bytes.
// The interpreter raises it in the program as OutputLimitError, which
// `except Exception` does not catch.
var ErrOutputLimit = errors.New("output limit exceeded")

// SyntaxError reports source that cannot be tokenized or parsed. Line and
// Col are 1-based.
type SyntaxError struct {
	Kind string // "SyntaxError" or "IndentationError"
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Msg, e.Line)
}

// Exception is a raised program exception travelling up the Go call stack.
// Value is the exception instance visible to `except ... as e`.
type Exception struct {
	Value *Instance
	Line  int
	Cause error
}

func (e *Exception) Error() string {
	if msg := e.Message(); msg != "" {
		return e.TypeName() + ": " + msg
	}
	return e.TypeName()
}

func (e *Exception) Unwrap() error { return e.Cause }

// TypeName is the exception's class name, e.g. "ZeroDivisionError".
func (e *Exception) TypeName() string {
	if e.Value == nil || e.Value.Class == nil {
		return "Exception"
	}
	return e.Value.Class.Name
}

// Message renders the exception arguments the way str(exc) does.
func (e *Exception) Message() string {
	if e.Value == nil {
		return ""
	}
	return exceptionMessage(e.Value)
}

func exceptionMessage(inst *Instance) string {
	if inst.args == nil {
		return ""
	}
	switch len(inst.args.items) {
	case 0:
		return ""
	case 1:
		if inst.Class.isSubclass(KeyErrorClass) {
			return reprPlain(inst.args.items[0])
		}
		return strPlain(inst.args.items[0])
	}
	return reprPlain(inst.args)
}

// pyError is an exception raised by Go code that has no interpreter at hand.
// The interpreter materializes it into an *Exception at the statement that
// was executing.
type pyError struct {
	class *Class
	msg   string
	args  []Value // overrides msg when set
	cause error
}

func (e *pyError) Error() string {
	if e.args != nil {
		return e.class.Name + ": " + reprPlain(e.args[0])
	}
	return e.class.Name + ": " + e.msg
}

func (e *pyError) Unwrap() error { return e.cause }

func newErr(class *Class, format string, args ...any) error {
	return &pyError{class: class, msg: fmt.Sprintf(format, args...)}
}

func errKey(k Value) error {
	return &pyError{class: KeyErrorClass, args: []Value{k}}
}

func errUnhashable(v Value) error {
	return newErr(TypeErrorClass, "unhashable type: '%s'", typeName(v))
}

func errOverflow() error {
	return newErr(OverflowErrorClass, "integer overflow: result does not fit in 64 bits")
}

var errMemory = &pyError{class: MemoryErrorClass, msg: "collection exceeds 10000000 elements"}

// Builtin exception hierarchy. Object ids below firstObjectID are reserved
// for these process-wide classes.
var (
	BaseExceptionClass       = builtinClass("BaseException", objectClass)
	ExceptionClass           = builtinClass("Exception", BaseExceptionClass)
	ArithmeticErrorClass     = builtinClass("ArithmeticError", ExceptionClass)
	ZeroDivisionErrorClass   = builtinClass("ZeroDivisionError", ArithmeticErrorClass)
	OverflowErrorClass       = builtinClass("OverflowError", ArithmeticErrorClass)
	LookupErrorClass         = builtinClass("LookupError", ExceptionClass)
	IndexErrorClass          = builtinClass("IndexError", LookupErrorClass)
	KeyErrorClass            = builtinClass("KeyError", LookupErrorClass)
	ValueErrorClass          = builtinClass("ValueError", ExceptionClass)
	TypeErrorClass           = builtinClass("TypeError", ExceptionClass)
	NameErrorClass           = builtinClass("NameError", ExceptionClass)
	UnboundLocalErrorClass   = builtinClass("UnboundLocalError", NameErrorClass)
	AttributeErrorClass      = builtinClass("AttributeError", ExceptionClass)
	EOFErrorClass            = builtinClass("EOFError", ExceptionClass)
	RuntimeErrorClass        = builtinClass("RuntimeError", ExceptionClass)
	RecursionErrorClass      = builtinClass("RecursionError", RuntimeErrorClass)
	NotImplementedErrorClass = builtinClass("NotImplementedError", RuntimeErrorClass)
	MemoryErrorClass         = builtinClass("MemoryError", ExceptionClass)
	AssertionErrorClass      = builtinClass("AssertionError", ExceptionClass)
	ImportErrorClass         = builtinClass("ImportError", ExceptionClass)
	ModuleNotFoundErrorClass = builtinClass("ModuleNotFoundError", ImportErrorClass)
	StopIterationClass       = builtinClass("StopIteration", ExceptionClass)
	SyntaxErrorClass         = builtinClass("SyntaxError", ExceptionClass)
	OutputLimitErrorClass    = builtinClass("OutputLimitError", BaseExceptionClass)
)

var exceptionClasses = []*Class{
	BaseExceptionClass, ExceptionClass, ArithmeticErrorClass, ZeroDivisionErrorClass,
	OverflowErrorClass, LookupErrorClass, IndexErrorClass, KeyErrorClass,
	ValueErrorClass, TypeErrorClass, NameErrorClass, UnboundLocalErrorClass,
	AttributeErrorClass, EOFErrorClass, RuntimeErrorClass, RecursionErrorClass,
	NotImplementedErrorClass, MemoryErrorClass, AssertionErrorClass, ImportErrorClass,
	ModuleNotFoundErrorClass, StopIterationClass, SyntaxErrorClass, OutputLimitErrorClass,
}

// Snippet renders the offending source line with one line of context on each
// side and a caret under the column. Coordinates are clamped to the source.
func Snippet(src string, line, col int) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var b strings.Builder
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
