package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/explain"
	"github.com/michaelbrown/decipher/internal/sandbox"
)

func TestLoadProgramsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.py")
	if err := os.WriteFile(path, []byte("print(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	scenarioFlag, inputFlags, timeoutFlag = "", []string{"a"}, 2*time.Second
	t.Cleanup(func() { scenarioFlag, inputFlags, timeoutFlag = "", nil, 0 })

	got, err := loadPrograms(nil, []string{path})
	if err != nil {
		t.Fatalf("loadPrograms: %v", err)
	}
	if len(got) != 1 || got[0].Code != "print(1)\n" || got[0].Timeout != 2*time.Second || got[0].Inputs[0] != "a" {
		t.Errorf("programs = %+v", got)
	}
}

func TestLoadProgramsFromStdinAndScenario(t *testing.T) {
	got, err := loadPrograms(strings.NewReader("x = 1\n"), []string{"-"})
	if err != nil {
		t.Fatalf("loadPrograms: %v", err)
	}
	if got[0].Code != "x = 1\n" {
		t.Errorf("code = %q", got[0].Code)
	}

	path := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(path, []byte("name: one\ncode: x = 1\n---\nname: two\ncode: y = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	scenarioFlag, nameFlag = path, "two"
	t.Cleanup(func() { scenarioFlag, nameFlag = "", "" })

	got, err = loadPrograms(nil, nil)
	if err != nil {
		t.Fatalf("loadPrograms: %v", err)
	}
	if len(got) != 1 || got[0].Name != "two" {
		t.Errorf("programs = %+v", got)
	}

	if _, err := loadPrograms(nil, []string{"file.py"}); err == nil {
		t.Error("expected error for a file together with --scenario")
	}
}

func TestViewerNavigation(t *testing.T) {
	code := "a = 1\nb = a + 1\nprint(b)\n"
	res, err := sandbox.NewInProcess(sandbox.DefaultPolicy()).Exec(context.Background(), sandbox.ExecOpts{Source: code})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v := &viewer{lines: strings.Split(code, "\n"), res: res, explainer: explain.New(nil, 0)}
	ctx := context.Background()

	if !v.handle(ctx, "n") || v.pos != 1 {
		t.Errorf("after n pos = %d, want 1", v.pos)
	}
	v.handle(ctx, "g 0")
	if v.pos != 0 {
		t.Errorf("after g 0 pos = %d, want 0", v.pos)
	}
	v.handle(ctx, "p")
	if v.pos != 0 {
		t.Errorf("p before the first step moved to %d", v.pos)
	}
	v.handle(ctx, "g 99")
	if v.pos != 0 {
		t.Errorf("g past the end moved to %d", v.pos)
	}
	// Each step reports the line about to run, so the second is line 3.
	if got := v.sourceLine(res.Trace.Steps[1].Line); got != "print(b)" {
		t.Errorf("sourceLine = %q, want %q", got, "print(b)")
	}
	if v.handle(ctx, "q") {
		t.Error("q should stop the viewer")
	}
}

func TestWorkerCommandRegistered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"worker"})
	if err != nil || cmd != workerCmd || !cmd.Hidden {
		t.Errorf("worker command = %v, %v", cmd, err)
	}
}
