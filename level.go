package safetyx

import "fmt"

// LevelID is the ordinal of a level in its machine, assigned by AddLevel.
// It orders levels for range registration only; it carries no runtime
// priority.
type LevelID int

// Level is one node of the safety hierarchy: a fixed IO behavior, optional
// per-cycle logic and the outgoing transitions.
//
// Levels are configured once at startup. Configuration methods are not safe
// for concurrent use and fail with ErrFrozen after the owning machine has been
// validated.
type Level struct {
	id          LevelID
	name        string
	description string
	machine     *Machine

	transitions map[*Event]*Transition
	order       []*Event

	inputs     []InputAction
	outputs    []OutputAction
	inputsSet  bool
	outputsSet bool
	action     LevelAction

	activations uint64
}

// NewLevel creates a level that is not yet part of any machine.
func NewLevel(name, description string) *Level {
	return &Level{
		id:          -1,
		name:        name,
		description: description,
		transitions: make(map[*Event]*Transition),
	}
}

func (l *Level) ID() LevelID         { return l.id }
func (l *Level) Name() string        { return l.name }
func (l *Level) Description() string { return l.description }

func (l *Level) String() string {
	if l == nil {
		return "<nil>"
	}
	return l.name
}

func (l *Level) frozen() bool {
	return l.machine != nil && l.machine.frozen.Load()
}

// AddEvent registers the transition (l, event) -> target.
func (l *Level) AddEvent(event *Event, target *Level, visibility Visibility) error {
	if event == nil || target == nil {
		return fmt.Errorf("level %q add event: %w", l.name, ErrNilArgument)
	}
	if l.frozen() {
		return ErrFrozen
	}
	if existing, ok := l.transitions[event]; ok {
		return fmt.Errorf("level %q event %q already targets %q: %w",
			l.name, event.Name(), existing.Target.Name(), ErrDuplicateTransition)
	}
	l.transitions[event] = &Transition{
		Event:      event,
		Source:     l,
		Target:     target,
		Visibility: visibility,
	}
	l.order = append(l.order, event)
	return nil
}

// SetInputActions installs the ordered input actions. A level takes exactly
// one input action list; use ReplaceInputActions to overwrite on purpose.
func (l *Level) SetInputActions(actions ...InputAction) error {
	if l.inputsSet {
		return fmt.Errorf("level %q input actions: %w", l.name, ErrActionsAlreadySet)
	}
	return l.ReplaceInputActions(actions...)
}

// ReplaceInputActions overwrites any previously installed input actions.
func (l *Level) ReplaceInputActions(actions ...InputAction) error {
	if l.frozen() {
		return ErrFrozen
	}
	l.inputs = append([]InputAction(nil), actions...)
	l.inputsSet = true
	return nil
}

// SetOutputActions installs the ordered output actions. A level takes exactly
// one output action list; use ReplaceOutputActions to overwrite on purpose.
func (l *Level) SetOutputActions(actions ...OutputAction) error {
	if l.outputsSet {
		return fmt.Errorf("level %q output actions: %w", l.name, ErrActionsAlreadySet)
	}
	return l.ReplaceOutputActions(actions...)
}

// ReplaceOutputActions overwrites any previously installed output actions.
func (l *Level) ReplaceOutputActions(actions ...OutputAction) error {
	if l.frozen() {
		return ErrFrozen
	}
	l.outputs = append([]OutputAction(nil), actions...)
	l.outputsSet = true
	return nil
}

// SetLevelAction installs the per-cycle logic. At most one per level.
func (l *Level) SetLevelAction(action LevelAction) error {
	if action == nil {
		return fmt.Errorf("level %q level action: %w", l.name, ErrNilArgument)
	}
	if l.frozen() {
		return ErrFrozen
	}
	if l.action != nil {
		return fmt.Errorf("level %q: %w", l.name, ErrLevelActionAlreadySet)
	}
	l.action = action
	return nil
}

// NofActivations returns the cycles elapsed since the level was last entered:
// 0 on the entry cycle, then +1 per cycle the level stays current.
//
// Safe to read from the level's own action. Other callers should use
// Machine.ActivationCount.
func (l *Level) NofActivations() uint64 {
	return l.activations
}

// Target returns the transition registered for event, if any.
func (l *Level) Target(event *Event) (*Transition, bool) {
	t, ok := l.transitions[event]
	return t, ok
}

// Transitions returns the outgoing transitions in registration order.
func (l *Level) Transitions() []*Transition {
	out := make([]*Transition, 0, len(l.order))
	for _, e := range l.order {
		out = append(out, l.transitions[e])
	}
	return out
}

func (l *Level) InputActions() []InputAction {
	return append([]InputAction(nil), l.inputs...)
}

func (l *Level) OutputActions() []OutputAction {
	return append([]OutputAction(nil), l.outputs...)
}

func (l *Level) HasLevelAction() bool { return l.action != nil }
