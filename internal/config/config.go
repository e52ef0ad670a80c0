package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/decipher/internal/sandbox"
)

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxConcurrent  int      `mapstructure:"max_concurrent"`
}

type SandboxConfig struct {
	Launcher       string        `mapstructure:"launcher"` // "process" or "docker"
	Image          string        `mapstructure:"image"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	MaxSteps       int           `mapstructure:"max_steps"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MaxOutput      int           `mapstructure:"max_output"`
	MaxSource      int           `mapstructure:"max_source"`
	MaxInputs      int           `mapstructure:"max_inputs"`
	MaxMemoryMB    int64         `mapstructure:"max_memory_mb"`
	Grace          time.Duration `mapstructure:"grace"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type ExplainConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Storage StorageConfig `mapstructure:"storage"`
	Explain ExplainConfig `mapstructure:"explain"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads decipher.yaml from path, or from the working directory or
// $HOME/.decipher when path is empty. A missing file leaves the defaults in
// place. DECIPHER_* environment variables override file values, e.g.
// DECIPHER_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("decipher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.decipher")
	}
	v.SetEnvPrefix("decipher")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in the API key
	if k := cfg.Explain.APIKey; strings.HasPrefix(k, "${") && strings.HasSuffix(k, "}") {
		cfg.Explain.APIKey = os.Getenv(k[2 : len(k)-1])
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	p := sandbox.DefaultPolicy()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.max_concurrent", 8)

	v.SetDefault("sandbox.launcher", "process")
	v.SetDefault("sandbox.image", "decipher:latest")
	v.SetDefault("sandbox.default_timeout", p.DefaultTimeout)
	v.SetDefault("sandbox.max_timeout", p.MaxTimeout)
	v.SetDefault("sandbox.max_steps", p.MaxSteps)
	v.SetDefault("sandbox.max_depth", p.MaxDepth)
	v.SetDefault("sandbox.max_output", p.MaxOutput)
	v.SetDefault("sandbox.max_source", p.MaxSource)
	v.SetDefault("sandbox.max_inputs", p.MaxInputs)
	v.SetDefault("sandbox.max_memory_mb", p.MaxMemory>>20)
	v.SetDefault("sandbox.grace", time.Second)

	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".decipher", "decipher.db"))

	v.SetDefault("explain.base_url", "")
	v.SetDefault("explain.api_key", "")
	v.SetDefault("explain.model", "gpt-4o-mini")
	v.SetDefault("explain.timeout", 20*time.Second)

	v.SetDefault("metrics.enabled", true)
}

func (c *Config) validate() error {
	switch c.Sandbox.Launcher {
	case "process", "docker":
	default:
		return fmt.Errorf("unknown sandbox launcher: %s", c.Sandbox.Launcher)
	}
	if c.Sandbox.MaxTimeout > 0 && c.Sandbox.DefaultTimeout > c.Sandbox.MaxTimeout {
		return fmt.Errorf("sandbox.default_timeout %s exceeds sandbox.max_timeout %s", c.Sandbox.DefaultTimeout, c.Sandbox.MaxTimeout)
	}
	if c.Sandbox.MaxSteps <= 0 {
		return fmt.Errorf("sandbox.max_steps must be positive")
	}
	return nil
}

// Policy returns the sandbox limits described by the config.
func (c *Config) Policy() sandbox.Policy {
	p := sandbox.DefaultPolicy()
	s := c.Sandbox
	p.DefaultTimeout = s.DefaultTimeout
	p.MaxTimeout = s.MaxTimeout
	p.MaxSteps = s.MaxSteps
	p.MaxDepth = s.MaxDepth
	p.MaxOutput = s.MaxOutput
	p.MaxSource = s.MaxSource
	p.MaxInputs = s.MaxInputs
	p.MaxMemory = s.MaxMemoryMB << 20
	return p
}

// Launcher builds the worker launcher the config selects.
func (c *Config) Launcher() (sandbox.Launcher, error) {
	if c.Sandbox.Launcher == "docker" {
		return sandbox.NewDockerLauncher(c.Sandbox.Image, c.Policy()), nil
	}
	return sandbox.NewProcessLauncher()
}

// ExplainEnabled reports whether an explanation endpoint is configured.
func (c *Config) ExplainEnabled() bool {
	return c.Explain.BaseURL != ""
}
