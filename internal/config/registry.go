package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/comalice/safetyx"
)

// ErrUnknownAction is returned for an action kind nobody registered.
var ErrUnknownAction = errors.New("unknown action kind")

// ActionEnv is what a factory gets to build one level action.
type ActionEnv struct {
	Level  string
	Period time.Duration
	// Event returns the event called name, shared with the transitions.
	Event func(name string) *safetyx.Event
}

// ActionFactory builds a level action from its configuration. A nil action
// with a nil error means the level has no action.
type ActionFactory func(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error)

// Registry maps action kinds to factories.
type Registry struct {
	factories map[string]ActionFactory
	logger    *log.Logger
}

// NewRegistry returns a registry with the built-in kinds. Actions it builds
// log through logger; nil discards.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	r := &Registry{factories: make(map[string]ActionFactory), logger: logger}
	r.factories["none"] = noneAction
	r.factories["trigger"] = triggerAction
	r.factories["trigger_after"] = triggerAfterAction
	r.factories["start_cycle_then"] = startCycleAction
	r.factories["stop_cycle_then"] = stopCycleAction
	r.factories["shutdown"] = shutdownAction
	return r
}

// Register adds a factory for kind.
func (r *Registry) Register(kind string, f ActionFactory) error {
	if kind == "" || f == nil {
		return errors.New("register action: empty kind or nil factory")
	}
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("action kind %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds the action described by spec.
func (r *Registry) New(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	f, ok := r.factories[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("level %q: %w: %q", env.Level, ErrUnknownAction, spec.Kind)
	}
	action, err := f(spec, env)
	if err != nil {
		return nil, fmt.Errorf("level %q action %s: %w", env.Level, spec.Kind, err)
	}
	if action == nil {
		return nil, nil
	}
	return Logged(r.logger, env.Level, spec.Kind, action), nil
}

// Logged wraps action so that its first run after each entry into the level
// is logged with its duration.
func Logged(logger *log.Logger, level, kind string, action safetyx.LevelAction) safetyx.LevelAction {
	return func(sc *safetyx.Context) {
		if sc.Activations() != 0 {
			action(sc)
			return
		}
		from := "<start>"
		if prev := sc.EnteredFrom(); prev != nil {
			from = prev.Name()
		}
		logger.Printf("LOG: Executing %s action of level %q (entered from %s)", kind, level, from)
		start := time.Now()
		action(sc)
		logger.Printf("LOG: Action %s of level %q completed in %v", kind, level, time.Since(start))
	}
}

func needEvent(spec ActionConfig) error {
	if spec.Event == "" {
		return errors.New("event is required")
	}
	return nil
}

func noneAction(ActionConfig, ActionEnv) (safetyx.LevelAction, error) {
	return nil, nil
}

// triggerAction requests its event every cycle.
func triggerAction(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	if err := needEvent(spec); err != nil {
		return nil, err
	}
	e := env.Event(spec.Event)
	return func(sc *safetyx.Context) {
		_ = sc.TriggerEvent(e)
	}, nil
}

// triggerAfterAction requests its event once the level has been current for
// at least spec.After, measured in cycles of env.Period.
func triggerAfterAction(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	if err := needEvent(spec); err != nil {
		return nil, err
	}
	if spec.After <= 0 {
		return nil, errors.New("after must be positive")
	}
	if env.Period <= 0 {
		return nil, errors.New("period must be positive")
	}
	e := env.Event(spec.Event)
	return func(sc *safetyx.Context) {
		if time.Duration(sc.Activations())*env.Period >= spec.After {
			_ = sc.TriggerEvent(e)
		}
	}, nil
}

func startCycleAction(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	var e *safetyx.Event
	if spec.Event != "" {
		e = env.Event(spec.Event)
	}
	return func(sc *safetyx.Context) {
		_ = sc.StartCycle()
		if e != nil {
			_ = sc.TriggerEvent(e)
		}
	}, nil
}

func stopCycleAction(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	var e *safetyx.Event
	if spec.Event != "" {
		e = env.Event(spec.Event)
	}
	return func(sc *safetyx.Context) {
		_ = sc.StopCycle()
		if e != nil {
			_ = sc.TriggerEvent(e)
		}
	}, nil
}

// shutdownAction is the off level action: idle at startup, stop the control
// loop and the executor once the level was re-entered or shutdown was
// requested.
func shutdownAction(spec ActionConfig, env ActionEnv) (safetyx.LevelAction, error) {
	return func(sc *safetyx.Context) {
		if sc.EnteredFrom() == nil && !sc.ShutdownRequested() {
			return
		}
		_ = sc.StopCycle()
		_ = sc.StopExecutor()
	}, nil
}
