package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/michaelbrown/decipher/internal/explain"
	"github.com/michaelbrown/decipher/internal/sandbox"
	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/trace"
)

// viewer walks a finished trace one step at a time.
type viewer struct {
	lines     []string
	res       *sandbox.ExecResult
	explainer *explain.Explainer
	pos       int
}

func viewTrace(ctx context.Context, code string, res *sandbox.ExecResult, explainer *explain.Explainer) error {
	if len(res.Trace.Steps) == 0 {
		printResult(res)
		return nil
	}
	v := &viewer{lines: strings.Split(code, "\n"), res: res, explainer: explainer}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mstep>\033[0m ",
		HistoryFile:     filepath.Join(os.TempDir(), "decipher_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("%d steps, %s. Type help for commands.\n\n", len(res.Trace.Steps), res.State)
	v.show(-1)

	for {
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !v.handle(ctx, strings.TrimSpace(input)) {
			return nil
		}
	}
}

// handle runs one viewer command and reports whether to keep going.
func (v *viewer) handle(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	cmd := "n"
	if len(fields) > 0 {
		cmd = strings.ToLower(fields[0])
	}
	steps := v.res.Trace.Steps

	switch cmd {
	case "q", "quit", "exit":
		return false
	case "n", "next":
		v.move(v.pos + 1)
	case "p", "prev":
		v.move(v.pos - 1)
	case "g", "goto":
		if len(fields) < 2 {
			fmt.Println("usage: g <step>")
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Printf("not a step number: %s\n", fields[1])
			break
		}
		v.move(n)
	case "vars":
		printVariables(steps[v.pos].Variables, nil)
	case "out":
		fmt.Print(steps[v.pos].Output)
		if !strings.HasSuffix(steps[v.pos].Output, "\n") {
			fmt.Println()
		}
	case "explain":
		line := v.sourceLine(steps[v.pos].Line)
		if line == "" {
			fmt.Println("no source line at this step")
			break
		}
		fmt.Printf("\033[32m%s\033[0m\n", v.explainer.Line(ctx, strings.TrimSpace(line)))
	case "summary":
		fmt.Printf("\033[32m%s\033[0m\n", v.explainer.Summary(ctx, strings.Join(v.lines, "\n"), v.res.Trace))
	case "help":
		fmt.Println("Commands:")
		fmt.Println("  n, <enter>  - Next step")
		fmt.Println("  p           - Previous step")
		fmt.Println("  g <step>    - Jump to a step")
		fmt.Println("  vars        - All variables at this step")
		fmt.Println("  out         - Output so far")
		fmt.Println("  explain     - Explain the current line")
		fmt.Println("  summary     - Summarize the whole run")
		fmt.Println("  q           - Quit")
	default:
		fmt.Printf("Unknown command: %s (try help)\n", cmd)
	}
	fmt.Println()
	return true
}

func (v *viewer) move(to int) {
	steps := v.res.Trace.Steps
	if to < 0 || to >= len(steps) {
		fmt.Printf("no step %d (0-%d)\n", to, len(steps)-1)
		return
	}
	prev := v.pos
	v.pos = to
	v.show(prev)
}

// show prints the current step, marking variables that changed since the
// step at prev.
func (v *viewer) show(prev int) {
	steps := v.res.Trace.Steps
	s := steps[v.pos]

	switch s.Event {
	case trace.EventFinished:
		fmt.Printf("\033[1m[%d/%d] finished\033[0m\n", v.pos, len(steps)-1)
	default:
		fmt.Printf("\033[1m[%d/%d] line %d\033[0m", v.pos, len(steps)-1, *s.Line)
		if s.Function != "" && s.Function != "<module>" {
			fmt.Printf(" in %s", s.Function)
		}
		fmt.Printf("\n  \033[90m│\033[0m %s\n", v.sourceLine(s.Line))
	}

	var before map[string]serialize.Value
	if prev >= 0 && prev < len(steps) {
		before = steps[prev].Variables
	}
	printVariables(s.Variables, before)

	if v.pos == len(steps)-1 && v.res.Trace.Error != nil {
		fmt.Printf("\033[31m%s\033[0m\n", *v.res.Trace.Error)
	}
}

func (v *viewer) sourceLine(line *int) string {
	if line == nil || *line < 1 || *line > len(v.lines) {
		return ""
	}
	return v.lines[*line-1]
}

// printVariables lists vars sorted by name. Names whose value differs from
// before are highlighted; before may be nil.
func printVariables(vars, before map[string]serialize.Value) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := vars[name]
		data, err := json.Marshal(val)
		text := string(data)
		if err != nil {
			text = fmt.Sprintf("<%v>", err)
		}
		if len(text) > 120 {
			text = text[:120] + "..."
		}
		old, existed := before[name]
		if before != nil && (!existed || !old.Equal(val)) {
			fmt.Printf("  \033[33m%s = %s\033[0m\n", name, text)
		} else {
			fmt.Printf("  %s = %s\n", name, text)
		}
	}
}
