// Package scenario loads programs to trace from YAML files.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is one program together with the inputs it should be fed.
type Scenario struct {
	Name    string        `yaml:"name"`
	Code    string        `yaml:"code"`
	Inputs  []string      `yaml:"inputs"`
	Timeout time.Duration `yaml:"timeout"`
	Seed    int64         `yaml:"seed"`
}

// Load reads every scenario in a YAML file. Documents are separated by
// "---"; empty documents are skipped.
func Load(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	out, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return out, nil
}

// Parse decodes scenarios from YAML.
func Parse(data []byte) ([]Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []Scenario
	for i := 1; ; i++ {
		var s Scenario
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if s.Code == "" && s.Name == "" {
			continue
		}
		if s.Code == "" {
			return nil, fmt.Errorf("document %d (%s): code is required", i, s.Name)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("scenario-%d", i)
		}
		if s.Timeout < 0 {
			return nil, fmt.Errorf("document %d (%s): negative timeout", i, s.Name)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no scenarios found")
	}
	return out, nil
}

// Find returns the scenario called name.
func Find(all []Scenario, name string) (*Scenario, error) {
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("scenario %q not found", name)
}
