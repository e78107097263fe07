package config

import (
	"errors"

	"github.com/comalice/safetyx"
)

// Build validates cfg and assembles its machine. Level actions come from reg
// (the built-in registry when nil).
func Build(cfg *Config, reg *Registry, opts ...safetyx.Option) (*safetyx.Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry(nil)
	}

	b := safetyx.NewBuilder(cfg.Name, opts...)
	for _, in := range cfg.Inputs {
		b.Input(in.Name, in.FailSafe)
	}
	for _, out := range cfg.Outputs {
		b.Output(out)
	}

	var errs []error
	for _, lc := range cfg.Levels {
		lb := b.Level(lc.Name, lc.Description)
		for _, t := range lc.Transitions {
			vis, _ := parseVisibility(t.Visibility)
			lb.On(t.Event, t.Target, vis)
		}
		for _, a := range lc.Inputs {
			if a.Event == "" {
				lb.Ignore(a.Input)
				continue
			}
			lb.Check(a.Input, *a.Equals, a.Event)
		}
		for _, a := range lc.Outputs {
			lb.Set(a.Output, a.Value)
		}
		if lc.Action == nil {
			continue
		}
		action, err := reg.New(*lc.Action, ActionEnv{
			Level:  lc.Name,
			Period: cfg.Period,
			Event:  b.Event,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if action != nil {
			lb.Action(action)
		}
	}

	for _, r := range cfg.Ranges {
		vis, _ := parseVisibility(r.Visibility)
		b.Between(r.From, r.To, r.Event, r.Target, vis)
	}
	b.Entry(cfg.Entry).Off(cfg.Off)
	if cfg.Exit != "" {
		b.ExitTriggers(cfg.Exit)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.Build()
}
