package tracer

import "github.com/michaelbrown/decipher/internal/pylite"

// InputMocker stands in for interactive input. Each read consumes the next
// scripted value and echoes the prompt and the value into the run's output,
// so the transcript reads as if someone had typed it.
type InputMocker struct {
	inputs []string
	next   int
	out    *OutputBuffer
}

func NewInputMocker(inputs []string, out *OutputBuffer) *InputMocker {
	return &InputMocker{inputs: inputs, out: out}
}

// Read returns the next scripted value. Past the end it writes the prompt and
// fails with pylite.ErrEndOfInput; it never blocks.
func (m *InputMocker) Read(prompt string) (string, error) {
	if _, err := m.out.WriteString(prompt); err != nil {
		return "", err
	}
	if m.next >= len(m.inputs) {
		return "", pylite.ErrEndOfInput
	}
	value := m.inputs[m.next]
	m.next++
	if _, err := m.out.WriteString(value + "\n"); err != nil {
		return "", err
	}
	return value, nil
}

// Consumed reports how many scripted values have been read.
func (m *InputMocker) Consumed() int { return m.next }
