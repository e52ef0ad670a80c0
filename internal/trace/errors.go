package trace

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a run ended early.
type ErrorKind string

const (
	// KindUserProgram: the program raised an exception or failed to parse.
	KindUserProgram ErrorKind = "UserProgramError"
	// KindEndOfInput: the program asked for more input than was supplied.
	KindEndOfInput ErrorKind = "EndOfInput"
	// KindTimeout: the wall-clock limit expired and the worker was killed.
	KindTimeout ErrorKind = "Timeout"
	// KindWorkerFailure: the worker exited without posting a result.
	KindWorkerFailure ErrorKind = "WorkerFailure"
	// KindCanceled: the caller withdrew the request before the run ended.
	KindCanceled ErrorKind = "Canceled"
)

// ExecError is a run-ending error as reported in a Trace.
type ExecError struct {
	Kind    ErrorKind `json:"kind"`
	Type    string    `json:"type,omitempty"` // program exception class, e.g. "ZeroDivisionError"
	Message string    `json:"message,omitempty"`
	Line    int       `json:"line,omitempty"` // last executed line, 0 when unknown

	rendered bool // Message already holds the full text
}

func (e *ExecError) Error() string {
	if e.rendered {
		return e.Message
	}
	switch e.Kind {
	case KindTimeout, KindCanceled:
		return string(e.Kind)
	case KindWorkerFailure:
		if e.Message == "" {
			return string(KindWorkerFailure)
		}
		return fmt.Sprintf("%s: %s", KindWorkerFailure, e.Message)
	}
	detail := e.Type
	if e.Message != "" {
		detail += ": " + e.Message
	}
	if e.Line > 0 {
		return fmt.Sprintf("Execution Error near line %d: %s", e.Line, detail)
	}
	return "Execution Error: " + detail
}

// Timeout returns the error recorded when the wall-clock limit expires.
func Timeout() *ExecError { return &ExecError{Kind: KindTimeout} }

// Canceled returns the error recorded when the caller gives up on a run.
func Canceled() *ExecError { return &ExecError{Kind: KindCanceled} }

// WorkerFailure returns the error recorded when the worker dies without a
// result.
func WorkerFailure(format string, args ...any) *ExecError {
	return &ExecError{Kind: KindWorkerFailure, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err is not an *ExecError.
func KindOf(err error) ErrorKind {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
