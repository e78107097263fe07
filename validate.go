package safetyx

import (
	"errors"
	"fmt"
)

// Validate checks the topology, freezes it and enters the entry level.
// Every problem found is returned, joined; all of them wrap ErrConfiguration.
// Validating an already validated machine is a no-op.
func (m *Machine) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.validated {
		return nil
	}

	var errs []error
	if len(m.levels) == 0 {
		errs = append(errs, ErrNoLevels)
	}
	if m.entry == nil {
		errs = append(errs, ErrNoEntryLevel)
	}
	if m.off == nil {
		errs = append(errs, ErrNoOffLevel)
	}
	for _, l := range m.levels {
		errs = append(errs, m.checkLevel(l)...)
	}
	if len(errs) == 0 {
		errs = append(errs, m.checkOffReachable()...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.warnCoverage()

	m.frozen.Store(true)
	m.io.frozen = true
	m.sampled = make([]bool, len(m.io.inputs))
	m.current = m.entry
	m.entry.activations = 0
	m.validated = true
	m.logger.Printf("safetyx: machine %q validated: %d levels, entry %q, off %q",
		m.name, len(m.levels), m.entry.name, m.off.name)
	return nil
}

func (m *Machine) checkLevel(l *Level) []error {
	var errs []error
	for _, t := range l.Transitions() {
		if !m.owns(t.Target) {
			errs = append(errs, fmt.Errorf("level %q event %q target %v: %w", l.name, t.Event.Name(), t.Target, ErrUnknownLevel))
		}
	}
	for i, a := range l.inputs {
		if _, ok := m.io.Input(a.Input); !ok {
			errs = append(errs, fmt.Errorf("level %q input action %d: input %d: %w", l.name, i, a.Input, ErrUnknownIO))
			continue
		}
		if a.Kind != InputCheck {
			continue
		}
		if a.Event == nil {
			errs = append(errs, fmt.Errorf("level %q input action %d: check without event: %w", l.name, i, ErrNilArgument))
			continue
		}
		if _, ok := l.transitions[a.Event]; !ok {
			m.logger.Printf("safetyx: warning: level %q checks %q for event %q which has no transition there",
				l.name, m.io.inputName(a.Input), a.Event.Name())
		}
	}
	for i, a := range l.outputs {
		if _, ok := m.io.Output(a.Output); !ok {
			errs = append(errs, fmt.Errorf("level %q output action %d: output %d: %w", l.name, i, a.Output, ErrUnknownIO))
		}
	}
	return errs
}

// checkOffReachable verifies that every level reachable from the entry level
// has a path to the off level.
func (m *Machine) checkOffReachable() []error {
	reachable := m.reachableFrom(m.entry)

	reverse := make(map[*Level][]*Level)
	for _, l := range m.levels {
		for _, t := range l.transitions {
			reverse[t.Target] = append(reverse[t.Target], l)
		}
	}
	reachesOff := map[*Level]bool{m.off: true}
	queue := []*Level{m.off}
	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]
		for _, src := range reverse[l] {
			if !reachesOff[src] {
				reachesOff[src] = true
				queue = append(queue, src)
			}
		}
	}

	var errs []error
	for _, l := range m.levels {
		if reachable[l] && !reachesOff[l] {
			errs = append(errs, fmt.Errorf("level %q has no path to %q: %w", l.name, m.off.name, ErrOffLevelUnreachable))
		}
	}
	return errs
}

func (m *Machine) reachableFrom(start *Level) map[*Level]bool {
	seen := map[*Level]bool{start: true}
	queue := []*Level{start}
	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]
		for _, t := range l.Transitions() {
			if !seen[t.Target] {
				seen[t.Target] = true
				queue = append(queue, t.Target)
			}
		}
	}
	return seen
}

// ShutdownPath returns a shortest event sequence leading from l to the off
// level, or false if there is none.
func (m *Machine) ShutdownPath(l *Level) ([]*Event, bool) {
	if !m.owns(l) || m.off == nil {
		return nil, false
	}
	type hop struct {
		from  *Level
		event *Event
	}
	prev := map[*Level]hop{l: {}}
	queue := []*Level{l}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == m.off {
			var path []*Event
			for at := cur; at != l; at = prev[at].from {
				path = append([]*Event{prev[at].event}, path...)
			}
			return path, true
		}
		for _, t := range cur.Transitions() {
			if _, seen := prev[t.Target]; !seen {
				prev[t.Target] = hop{from: cur, event: t.Event}
				queue = append(queue, t.Target)
			}
		}
	}
	return nil, false
}

func (m *Machine) warnCoverage() {
	for _, l := range m.levels {
		covered := make(map[OutputID]bool, len(l.outputs))
		for _, a := range l.outputs {
			covered[a.Output] = true
		}
		for _, out := range m.io.outputs {
			if !covered[out.ID] {
				m.logger.Printf("safetyx: warning: level %q does not drive output %q", l.name, out.Name)
			}
		}
	}
}
