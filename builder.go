package safetyx

import (
	"errors"
	"fmt"
)

// Builder assembles a Machine from names instead of pointers. Levels take
// their ordinal from the order of their first Level call; events are created
// on first mention. Errors are collected and reported together by Build.
type Builder struct {
	name   string
	opts   []Option
	reg    *IORegistry
	levels []*LevelBuilder
	byName map[string]*LevelBuilder
	events map[string]*Event
	ranges []rangeSpec
	entry  string
	off    string
	exit   func(sc *Context)
	errs   []error
}

// LevelBuilder configures one level by name.
type LevelBuilder struct {
	b      *Builder
	level  *Level
	events []eventSpec
	input  []InputAction
	output []OutputAction
	hasIn  bool
	hasOut bool
	action LevelAction
}

type eventSpec struct {
	event      string
	target     string
	visibility Visibility
}

type rangeSpec struct {
	lower, upper string
	eventSpec
}

// NewBuilder creates a builder for a machine called name.
func NewBuilder(name string, opts ...Option) *Builder {
	return &Builder{
		name:   name,
		opts:   opts,
		reg:    NewIORegistry(),
		byName: make(map[string]*LevelBuilder),
		events: make(map[string]*Event),
	}
}

// Input registers a critical input and returns its ID.
func (b *Builder) Input(name string, failSafe bool) InputID {
	id, err := b.reg.AddInput(name, failSafe)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return id
}

// Output registers a critical output and returns its ID.
func (b *Builder) Output(name string) OutputID {
	id, err := b.reg.AddOutput(name)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return id
}

// Event returns the event called name, creating it on first use. Level
// actions capture the returned pointer.
func (b *Builder) Event(name string) *Event {
	if e, ok := b.events[name]; ok {
		return e
	}
	e := NewEvent(name)
	b.events[name] = e
	return e
}

// Level creates or retrieves a level by name. description is applied on
// creation only.
func (b *Builder) Level(name, description string) *LevelBuilder {
	if lb, ok := b.byName[name]; ok {
		return lb
	}
	lb := &LevelBuilder{b: b, level: NewLevel(name, description)}
	b.byName[name] = lb
	b.levels = append(b.levels, lb)
	return lb
}

// Between registers event -> target on every level from lower to upper
// inclusive, in declaration order.
func (b *Builder) Between(lower, upper, event, target string, visibility Visibility) *Builder {
	b.Event(event)
	b.ranges = append(b.ranges, rangeSpec{
		lower: lower, upper: upper,
		eventSpec: eventSpec{event: event, target: target, visibility: visibility},
	})
	return b
}

func (b *Builder) Entry(name string) *Builder {
	b.entry = name
	return b
}

func (b *Builder) Off(name string) *Builder {
	b.off = name
	return b
}

// Exit sets the exit function.
func (b *Builder) Exit(fn func(sc *Context)) *Builder {
	b.exit = fn
	return b
}

// ExitTriggers sets an exit function that triggers the named event.
func (b *Builder) ExitTriggers(event string) *Builder {
	e := b.Event(event)
	b.exit = func(sc *Context) {
		_ = sc.TriggerEvent(e)
	}
	return b
}

// On registers a transition from this level.
func (lb *LevelBuilder) On(event, target string, visibility Visibility) *LevelBuilder {
	lb.b.Event(event)
	lb.events = append(lb.events, eventSpec{event: event, target: target, visibility: visibility})
	return lb
}

// Ignore appends an ignore action for the named input.
func (lb *LevelBuilder) Ignore(input string) *LevelBuilder {
	lb.hasIn = true
	lb.input = append(lb.input, Ignore(lb.inputID(input)))
	return lb
}

// Check appends a check action for the named input.
func (lb *LevelBuilder) Check(input string, value bool, event string) *LevelBuilder {
	lb.hasIn = true
	lb.input = append(lb.input, Check(lb.inputID(input), value, lb.b.Event(event)))
	return lb
}

// Set appends an output action for the named output.
func (lb *LevelBuilder) Set(output string, value bool) *LevelBuilder {
	lb.hasOut = true
	id, ok := lb.b.reg.OutputByName(output)
	if !ok {
		lb.b.errs = append(lb.b.errs, fmt.Errorf("level %q: output %q: %w", lb.level.name, output, ErrUnknownIO))
		id = -1
	}
	lb.output = append(lb.output, Set(id, value))
	return lb
}

// Action sets the level action.
func (lb *LevelBuilder) Action(fn LevelAction) *LevelBuilder {
	if lb.action != nil {
		lb.b.errs = append(lb.b.errs, fmt.Errorf("level %q: %w", lb.level.name, ErrLevelActionAlreadySet))
		return lb
	}
	lb.action = fn
	return lb
}

// Level returns the level being built. Level actions may capture it to read
// NofActivations.
func (lb *LevelBuilder) Level() *Level {
	return lb.level
}

func (lb *LevelBuilder) inputID(name string) InputID {
	id, ok := lb.b.reg.InputByName(name)
	if !ok {
		lb.b.errs = append(lb.b.errs, fmt.Errorf("level %q: input %q: %w", lb.level.name, name, ErrUnknownIO))
		return -1
	}
	return id
}

// Build assembles and validates the machine.
func (b *Builder) Build() (*Machine, error) {
	errs := append([]error(nil), b.errs...)
	opts := append(append([]Option(nil), b.opts...), WithRegistry(b.reg))
	m := NewMachine(b.name, opts...)

	for _, lb := range b.levels {
		if err := m.AddLevel(lb.level); err != nil {
			errs = append(errs, err)
		}
	}
	lookup := func(context, name string) *Level {
		lb, ok := b.byName[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: level %q: %w", context, name, ErrUnknownLevel))
			return nil
		}
		return lb.level
	}

	for _, lb := range b.levels {
		for _, ev := range lb.events {
			target := lookup("level "+lb.level.name, ev.target)
			if target == nil {
				continue
			}
			if err := lb.level.AddEvent(b.events[ev.event], target, ev.visibility); err != nil {
				errs = append(errs, err)
			}
		}
		if lb.hasIn {
			errs = appendErr(errs, lb.level.SetInputActions(lb.input...))
		}
		if lb.hasOut {
			errs = appendErr(errs, lb.level.SetOutputActions(lb.output...))
		}
		if lb.action != nil {
			errs = appendErr(errs, lb.level.SetLevelAction(lb.action))
		}
	}

	for _, r := range b.ranges {
		ctx := fmt.Sprintf("range %s..%s", r.lower, r.upper)
		lower, upper, target := lookup(ctx, r.lower), lookup(ctx, r.upper), lookup(ctx, r.target)
		if lower == nil || upper == nil || target == nil {
			continue
		}
		errs = appendErr(errs, m.AddEventToAllLevelsBetween(lower, upper, b.events[r.event], target, r.visibility))
	}

	if b.entry != "" {
		if l := lookup("entry", b.entry); l != nil {
			errs = appendErr(errs, m.SetEntryLevel(l))
		}
	}
	if b.off != "" {
		if l := lookup("off", b.off); l != nil {
			errs = appendErr(errs, m.SetOffLevel(l))
		}
	}
	if b.exit != nil {
		errs = appendErr(errs, m.SetExitFunction(b.exit))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
