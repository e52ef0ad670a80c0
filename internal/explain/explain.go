// Package explain asks a language model to describe code and traces for a
// beginner. It only reads traces; nothing it returns feeds back into
// execution.
package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/michaelbrown/decipher/internal/trace"
)

const (
	lineSystemPrompt = "You are an expert Python tutor. Explain the following line of code to a beginner in one or two simple sentences, in a friendly and encouraging tone. Do not be overly technical."

	summarySystemPrompt = `You are an expert Python tutor. You will be given a user's Python code and the final step of its execution trace.
Give a high-level, concise summary (2-4 sentences) of the final outcome of the code.

- Say what the code accomplished.
- Use the variables and output from the final step to describe the result.
- If there was an error, briefly explain it.
- Be friendly and easy to understand. Do not repeat the code line by line.`

	mapperSystemPrompt = `You are a Python code analyzer. You will be given a user's Python code and a list of its variables.
Based on how the variables are used, map each variable to its most likely data structure type.
The valid types are: graph, stack, queue, binary_tree, linked_list, dictionary, set, heap, other.
Respond with a single JSON object mapping variable name to type and nothing else.`
)

// EmptyTraceSummary is returned by Summary for a trace with no steps.
const EmptyTraceSummary = "Execution trace is empty, cannot generate summary."

// Kinds a variable can be mapped to.
var structureKinds = map[string]bool{
	"graph": true, "stack": true, "queue": true, "binary_tree": true,
	"linked_list": true, "dictionary": true, "set": true, "heap": true,
	"priority_queue": true, "other": true,
}

// Explainer wraps a Completer with the tutor prompts. A nil Completer
// disables it: every call returns a fixed notice.
type Explainer struct {
	client  Completer
	timeout time.Duration
}

// New returns an Explainer. c may be nil.
func New(c Completer, timeout time.Duration) *Explainer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Explainer{client: c, timeout: timeout}
}

// Enabled reports whether a model endpoint is configured.
func (e *Explainer) Enabled() bool { return e != nil && e.client != nil }

const disabled = "Explanations are not configured on this server."

// Line explains one line of code. Failures are reported as text.
func (e *Explainer) Line(ctx context.Context, codeLine string) string {
	if !e.Enabled() {
		return disabled
	}
	text, err := e.complete(ctx, lineSystemPrompt, codeLine, false)
	if err != nil {
		log.Printf("explain: line: %v", err)
		return failure(err, "explanation")
	}
	return text
}

// Summary describes the outcome of a run from its final step alone.
func (e *Explainer) Summary(ctx context.Context, code string, tr *trace.Trace) string {
	last := tr.Last()
	if last == nil {
		return EmptyTraceSummary
	}
	if !e.Enabled() {
		return disabled
	}

	final := struct {
		*trace.Step
		Error *string `json:"error,omitempty"`
	}{last, tr.Error}
	data, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return "Error: Could not get summary at this time."
	}
	prompt := fmt.Sprintf("Here is my Python code:\n---\n%s\n---\n\nHere is the final step of the execution trace, with the final variables, output and any error:\n---\n%s\n---\n\nPlease summarize what this code did, based on its final state.", code, data)

	text, err := e.complete(ctx, summarySystemPrompt, prompt, false)
	if err != nil {
		log.Printf("explain: summary: %v", err)
		return failure(err, "summary")
	}
	return text
}

// VariableMap guesses which data structure each named variable models.
// Any failure yields an empty map.
func (e *Explainer) VariableMap(ctx context.Context, code string, names []string) map[string]string {
	out := map[string]string{}
	if len(names) == 0 || !e.Enabled() {
		return out
	}
	quoted, _ := json.Marshal(names)
	prompt := fmt.Sprintf("Code:\n---\n%s\n---\nVariables: %s\n", code, quoted)

	text, err := e.complete(ctx, mapperSystemPrompt, prompt, true)
	if err != nil {
		log.Printf("explain: variable map: %v", err)
		return out
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(stripFence(text)), &raw); err != nil {
		log.Printf("explain: variable map: decoding reply: %v", err)
		return out
	}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	for name, kind := range raw {
		if !known[name] {
			continue
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		if !structureKinds[kind] {
			kind = "other"
		}
		out[name] = kind
	}
	return out
}

func (e *Explainer) complete(ctx context.Context, system, user string, jsonReply bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Complete(ctx, system, user, jsonReply)
}

func failure(err error, what string) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Error from AI: %d", apiErr.StatusCode)
	}
	return fmt.Sprintf("Error: Could not get %s at this time.", what)
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
