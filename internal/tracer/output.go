package tracer

import (
	"strings"

	"github.com/michaelbrown/decipher/internal/pylite"
)

// OutputBuffer accumulates everything one run prints, including the echoed
// input transcript. It belongs to a single run and is not safe for concurrent
// use.
type OutputBuffer struct {
	b     strings.Builder
	limit int
}

// NewOutputBuffer returns a buffer that refuses writes past limit bytes.
// A limit of zero or less means unbounded.
func NewOutputBuffer(limit int) *OutputBuffer {
	return &OutputBuffer{limit: limit}
}

// Write appends p. When p does not fit, the part that fits is kept and
// pylite.ErrOutputLimit is returned.
func (o *OutputBuffer) Write(p []byte) (int, error) {
	if o.limit > 0 && o.b.Len()+len(p) > o.limit {
		n := o.limit - o.b.Len()
		o.b.Write(p[:n])
		return n, pylite.ErrOutputLimit
	}
	return o.b.Write(p)
}

func (o *OutputBuffer) WriteString(s string) (int, error) {
	return o.Write([]byte(s))
}

// String returns the complete output so far.
func (o *OutputBuffer) String() string { return o.b.String() }

func (o *OutputBuffer) Len() int { return o.b.Len() }
