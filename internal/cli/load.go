package cli

import (
	"log"
	"time"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/configs"
	"github.com/comalice/safetyx/internal/config"
)

// loadMachine builds the machine described by path, or the bundled robot when
// path is empty. A positive tick replaces the configured period before the
// timed actions are built.
func loadMachine(path string, tick time.Duration, logger *log.Logger, opts ...safetyx.Option) (*safetyx.Machine, time.Duration, error) {
	var cfg *config.Config
	var err error
	if path == "" {
		cfg, err = config.Parse(configs.Robot)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return nil, 0, err
	}
	if tick > 0 {
		cfg.Period = tick
	}
	m, err := config.Build(cfg, config.NewRegistry(logger), opts...)
	if err != nil {
		return nil, 0, err
	}
	return m, cfg.Period, nil
}
