// Package config loads safety configurations from YAML and builds validated
// machines from them.
//
// Levels are listed in ordinal order, lowest first. Transitions default to
// public visibility. Input actions without an event are ignore actions.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/safetyx"
)

// Config is the complete safety configuration of one machine.
type Config struct {
	Version string        `yaml:"version,omitempty"`
	Name    string        `yaml:"name"`
	Period  time.Duration `yaml:"period"`
	Inputs  []InputConfig `yaml:"inputs,omitempty"`
	Outputs []string      `yaml:"outputs,omitempty"`
	Levels  []LevelConfig `yaml:"levels"`
	Ranges  []RangeConfig `yaml:"ranges,omitempty"`
	Entry   string        `yaml:"entry"`
	Off     string        `yaml:"off"`
	Exit    string        `yaml:"exit,omitempty"`
}

// InputConfig declares a critical input and the value used when it cannot be
// read.
type InputConfig struct {
	Name     string `yaml:"name"`
	FailSafe bool   `yaml:"failSafe"`
}

// LevelConfig declares one level.
type LevelConfig struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Transitions []TransitionConfig   `yaml:"transitions,omitempty"`
	Inputs      []InputActionConfig  `yaml:"inputs,omitempty"`
	Outputs     []OutputActionConfig `yaml:"outputs,omitempty"`
	Action      *ActionConfig        `yaml:"action,omitempty"`
}

// TransitionConfig maps an event to a target level.
type TransitionConfig struct {
	Event      string `yaml:"event"`
	Target     string `yaml:"target"`
	Visibility string `yaml:"visibility,omitempty"`
}

// RangeConfig registers a transition on every level from From to To.
type RangeConfig struct {
	From             string `yaml:"from"`
	To               string `yaml:"to"`
	TransitionConfig `yaml:",inline"`
}

// InputActionConfig is an ignore action when Event is empty, a check action
// otherwise.
type InputActionConfig struct {
	Input  string `yaml:"input"`
	Equals *bool  `yaml:"equals,omitempty"`
	Event  string `yaml:"event,omitempty"`
}

type OutputActionConfig struct {
	Output string `yaml:"output"`
	Value  bool   `yaml:"value"`
}

// ActionConfig selects a level action from the Registry.
type ActionConfig struct {
	Kind  string        `yaml:"kind"`
	Event string        `yaml:"event,omitempty"`
	After time.Duration `yaml:"after,omitempty"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the document for problems the engine cannot report by
// name: missing fields, duplicates, unknown references and visibilities.
// Topology problems are left to safetyx validation.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Name == "" {
		fail("name is required")
	}
	if c.Period <= 0 {
		fail("period must be positive")
	}
	if len(c.Levels) == 0 {
		fail("at least one level is required")
	}

	levels := make(map[string]bool, len(c.Levels))
	for _, l := range c.Levels {
		if l.Name == "" {
			fail("level without name")
			continue
		}
		if levels[l.Name] {
			fail("duplicate level %q", l.Name)
		}
		levels[l.Name] = true
	}
	inputs := make(map[string]bool, len(c.Inputs))
	for _, in := range c.Inputs {
		if in.Name == "" || inputs[in.Name] {
			fail("input %q: empty or duplicate name", in.Name)
		}
		inputs[in.Name] = true
	}
	outputs := make(map[string]bool, len(c.Outputs))
	for _, out := range c.Outputs {
		if out == "" || outputs[out] {
			fail("output %q: empty or duplicate name", out)
		}
		outputs[out] = true
	}

	checkLevel := func(where, name string) {
		if !levels[name] {
			fail("%s: unknown level %q", where, name)
		}
	}
	checkTransition := func(where string, t TransitionConfig) {
		if t.Event == "" {
			fail("%s: transition without event", where)
		}
		checkLevel(where, t.Target)
		if _, err := parseVisibility(t.Visibility); err != nil {
			fail("%s: %v", where, err)
		}
	}

	for _, l := range c.Levels {
		where := fmt.Sprintf("level %q", l.Name)
		for _, t := range l.Transitions {
			checkTransition(where, t)
		}
		for _, a := range l.Inputs {
			if !inputs[a.Input] {
				fail("%s: unknown input %q", where, a.Input)
			}
			if a.Event == "" && a.Equals != nil {
				fail("%s: input %q has equals but no event", where, a.Input)
			}
			if a.Event != "" && a.Equals == nil {
				fail("%s: input %q has event but no equals", where, a.Input)
			}
		}
		for _, a := range l.Outputs {
			if !outputs[a.Output] {
				fail("%s: unknown output %q", where, a.Output)
			}
		}
		if l.Action != nil && l.Action.Kind == "" {
			fail("%s: action without kind", where)
		}
	}
	for i, r := range c.Ranges {
		where := fmt.Sprintf("range %d", i)
		checkLevel(where, r.From)
		checkLevel(where, r.To)
		checkTransition(where, r.TransitionConfig)
	}

	if c.Entry == "" {
		fail("entry level is required")
	} else {
		checkLevel("entry", c.Entry)
	}
	if c.Off == "" {
		fail("off level is required")
	} else {
		checkLevel("off", c.Off)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ErrInvalidConfig wraps every document validation failure.
var ErrInvalidConfig = errors.New("invalid safety config")

func parseVisibility(s string) (safetyx.Visibility, error) {
	switch s {
	case "", "public":
		return safetyx.Public, nil
	case "private":
		return safetyx.Private, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}
