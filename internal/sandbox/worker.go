package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/michaelbrown/decipher/internal/trace"
	"github.com/michaelbrown/decipher/internal/tracer"
)

// ServeWorker is the body of the isolated worker process. It reads one
// request from r, traces the program, and streams the protocol messages to
// w. It returns once the result has been written.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	send := func(m message) error {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("writing %s message: %w", m.Type, err)
		}
		return bw.Flush()
	}

	var req message
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return send(message{Type: msgResult, Error: fmt.Sprintf("reading request: %v", err)})
	}
	if req.Type != msgRequest || req.Request == nil {
		return send(message{Type: msgResult, Error: fmt.Sprintf("expected a request, got %q", req.Type)})
	}
	if req.Request.MemoryLimit > 0 {
		debug.SetMemoryLimit(req.Request.MemoryLimit)
	}

	if err := send(message{Type: msgReady}); err != nil {
		return err
	}
	outcome, err := tracer.Run(ctx, req.Request.Request, func(s trace.Step) error {
		return send(message{Type: msgStep, Step: &s})
	})
	if err != nil {
		return send(message{Type: msgResult, Error: err.Error()})
	}
	return send(message{Type: msgResult, Outcome: outcome})
}
