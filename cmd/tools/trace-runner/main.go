// trace-runner exposes the tracer as an MCP tool over stdio. Each call runs
// in a fresh worker process: the binary re-executes itself with the
// "worker" argument.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/decipher/internal/sandbox"
)

const maxResultText = 16000

func main() {
	if len(os.Args) > 1 && os.Args[1] == "worker" {
		if err := sandbox.ServeWorker(context.Background(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	launcher, err := sandbox.NewProcessLauncher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace-runner: %v\n", err)
		os.Exit(1)
	}
	sup := sandbox.NewSupervisor(launcher, sandbox.DefaultPolicy())

	s := server.NewMCPServer("decipher-trace-runner", "0.1.0")
	s.AddTool(mcp.Tool{
		Name:        "trace_code",
		Description: "Run a short Python program in a sandbox and return its execution trace: one step per executed line with the variables in scope and the output so far.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Program source",
				},
				"inputs": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Values returned by successive input() calls (optional)",
				},
				"timeout_ms": map[string]any{
					"type":        "number",
					"description": "Wall-clock limit in milliseconds (optional)",
				},
			},
			Required: []string{"code"},
		},
	}, traceHandler(sup))

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}

func traceHandler(sb sandbox.Sandbox) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		code, _ := args["code"].(string)
		if code == "" {
			return errResult("error: 'code' is required"), nil
		}

		opts := sandbox.ExecOpts{Source: code, Inputs: parseInputs(args["inputs"])}
		if ms, ok := args["timeout_ms"].(float64); ok && ms > 0 {
			opts.Timeout = time.Duration(ms) * time.Millisecond
		}

		res, err := sb.Exec(ctx, opts)
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		data, err := json.Marshal(res.Trace)
		if err != nil {
			return errResult(fmt.Sprintf("error: encoding trace: %v", err)), nil
		}
		text := string(data)
		if len(text) > maxResultText {
			text = text[:maxResultText] + "\n... (trace truncated)"
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
			IsError: res.State != sandbox.StateCompleted,
		}, nil
	}
}

// parseInputs accepts either a list of values or a single newline-separated
// string.
func parseInputs(v any) []string {
	switch in := v.(type) {
	case []any:
		out := make([]string, 0, len(in))
		for _, item := range in {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if in == "" {
			return nil
		}
		return strings.Split(strings.TrimRight(in, "\n"), "\n")
	}
	return nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
