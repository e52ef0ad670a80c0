package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/trace"
)

func callTrace(t *testing.T, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	h := traceHandler(sandbox.NewInProcess(sandbox.DefaultPolicy()))
	res, err := h(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "trace_code", Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("got %d content items, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestTraceCode(t *testing.T) {
	res := callTrace(t, map[string]any{
		"code":   "name = input()\nprint('hi ' + name)\n",
		"inputs": []any{"ada"},
	})
	if res.IsError {
		t.Fatalf("IsError = true: %s", resultText(t, res))
	}
	var tr trace.Trace
	if err := json.Unmarshal([]byte(resultText(t, res)), &tr); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if tr.FinalOutput != "ada\nhi ada\n" {
		t.Errorf("final_output = %q, want %q", tr.FinalOutput, "ada\nhi ada\n")
	}
	if !tr.Finished() {
		t.Error("trace does not end with a finished step")
	}
}

func TestTraceCodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing code", map[string]any{}, "'code' is required"},
		{"program error", map[string]any{"code": "x = 1 / 0\n"}, "ZeroDivisionError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTrace(t, tt.args)
			if !res.IsError {
				t.Error("IsError = false, want true")
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("result %q missing %q", text, tt.want)
			}
		})
	}
}

func TestParseInputs(t *testing.T) {
	if got := parseInputs("a\nb\n"); len(got) != 2 || got[1] != "b" {
		t.Errorf("parseInputs(string) = %q", got)
	}
	if got := parseInputs([]any{"x", float64(3)}); len(got) != 2 || got[1] != "3" {
		t.Errorf("parseInputs(list) = %q", got)
	}
	if got := parseInputs(nil); got != nil {
		t.Errorf("parseInputs(nil) = %q", got)
	}
}
