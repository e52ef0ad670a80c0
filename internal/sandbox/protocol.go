package sandbox

import (
	"github.com/michaelbrown/decipher/internal/trace"
	"github.com/michaelbrown/decipher/internal/tracer"
)

// The supervisor and the worker exchange one JSON object per line. The
// supervisor writes a single request to the worker's stdin; the worker
// answers on stdout with ready, zero or more steps, and one result.
const (
	msgRequest = "request"
	msgReady   = "ready"
	msgStep    = "step"
	msgResult  = "result"
)

type workerRequest struct {
	tracer.Request
	MemoryLimit int64 `json:"memory_limit,omitempty"`
}

type message struct {
	Type    string          `json:"type"`
	Request *workerRequest  `json:"request,omitempty"`
	Step    *trace.Step     `json:"step,omitempty"`
	Outcome *tracer.Outcome `json:"outcome,omitempty"`
	// Error reports a failure of the worker itself rather than the program.
	Error string `json:"error,omitempty"`
}
