package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the runtime settings read from the environment. Command line
// flags override them.
type Settings struct {
	// Config is the safety configuration file; empty runs the built-in robot.
	Config string `env:"SAFETYX_CONFIG"`
	// Tick overrides the configured cycle period when positive.
	Tick time.Duration `env:"SAFETYX_TICK"`
	// Inputs is a YAML file of simulated input values, reloaded on change.
	Inputs       string `env:"SAFETYX_INPUTS"`
	Journal      string `env:"SAFETYX_JOURNAL"`
	Report       string `env:"SAFETYX_REPORT"`
	OTelEndpoint string `env:"SAFETYX_OTEL_ENDPOINT"`
	// MaxCycles stops the run after that many cycles; 0 runs until shutdown.
	MaxCycles uint64 `env:"SAFETYX_MAX_CYCLES" envDefault:"0"`
}

// ParseEnv loads settings from environment variables.
func ParseEnv() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
