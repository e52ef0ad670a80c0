package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decipher.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Sandbox.Launcher != "process" {
		t.Errorf("launcher = %q, want process", cfg.Sandbox.Launcher)
	}
	p := cfg.Policy()
	if p.DefaultTimeout != 5*time.Second || p.MaxSteps != 2000 || p.MaxMemory != 256<<20 {
		t.Errorf("policy = %+v", p)
	}
	if cfg.ExplainEnabled() {
		t.Error("explanations enabled without a base URL")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("DECIPHER_TEST_KEY", "sk-test")
	path := writeConfig(t, `
server:
  port: 9090
sandbox:
  launcher: docker
  image: decipher:dev
  default_timeout: 2s
  max_steps: 50
explain:
  base_url: http://localhost:11434/v1/
  api_key: ${DECIPHER_TEST_KEY}
  model: qwen3:14b
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sandbox.DefaultTimeout != 2*time.Second || cfg.Policy().MaxSteps != 50 {
		t.Errorf("sandbox = %+v", cfg.Sandbox)
	}
	if cfg.Explain.APIKey != "sk-test" {
		t.Errorf("api key = %q, want the expanded env var", cfg.Explain.APIKey)
	}
	if !cfg.ExplainEnabled() {
		t.Error("ExplainEnabled = false")
	}
	l, err := cfg.Launcher()
	if err != nil {
		t.Fatalf("Launcher: %v", err)
	}
	if _, err := l.Command("x"); err != nil {
		t.Errorf("Command: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DECIPHER_SERVER_PORT", "7070")
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want the env override 7070", cfg.Server.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown launcher", "sandbox:\n  launcher: vm\n"},
		{"default above max", "sandbox:\n  default_timeout: 1m\n  max_timeout: 10s\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("an explicit path that does not exist should fail")
	}
}
