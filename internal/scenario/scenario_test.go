package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sample = `name: greet
code: |
  name = input("Name? ")
  print("hi", name)
inputs: ["Ada"]
timeout: 2s
---
code: |
  x = 1
---
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(all))
	}

	greet := all[0]
	if greet.Name != "greet" || greet.Timeout != 2*time.Second {
		t.Errorf("greet = %+v", greet)
	}
	if len(greet.Inputs) != 1 || greet.Inputs[0] != "Ada" {
		t.Errorf("inputs = %v", greet.Inputs)
	}
	if !strings.HasPrefix(greet.Code, "name = input") {
		t.Errorf("code = %q", greet.Code)
	}
	if all[1].Name != "scenario-2" {
		t.Errorf("unnamed scenario got name %q", all[1].Name)
	}

	if _, err := Find(all, "greet"); err != nil {
		t.Errorf("Find: %v", err)
	}
	if _, err := Find(all, "missing"); err == nil {
		t.Error("Find should fail for an unknown name")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing code", "name: x\n"},
		{"unknown field", "code: x = 1\nlanguage: ruby\n"},
		{"bad timeout", "code: x = 1\ntimeout: soon\n"},
		{"negative timeout", "code: x = 1\ntimeout: -1s\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
