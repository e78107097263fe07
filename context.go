package safetyx

import "fmt"

// CycleControl starts and stops the periodic control loop of the surrounding
// system. Both calls must return immediately.
type CycleControl interface {
	StartCycle()
	StopCycle()
}

// Executor is the scheduling loop of the owning process. Stop must return
// immediately; the loop winds down after the current cycle.
type Executor interface {
	Stop()
}

// Context is the privileged handle given to a level action (and to the exit
// function) for the duration of one call. It is the only way to trigger
// private events. Using it after the call returned fails with
// ErrContextRevoked.
type Context struct {
	m        *Machine
	level    *Level
	origin   Origin
	requests []request
	revoked  bool
}

func newContext(m *Machine, level *Level, origin Origin) *Context {
	return &Context{m: m, level: level, origin: origin}
}

func (c *Context) revoke() []request {
	c.revoked = true
	reqs := c.requests
	c.requests = nil
	return reqs
}

// TriggerEvent requests a transition on event from the current level. Public
// and private events are both accepted. The request is resolved at the end of
// the current cycle (or the next one, for the exit function).
func (c *Context) TriggerEvent(event *Event) error {
	if c == nil || c.revoked {
		return ErrContextRevoked
	}
	if _, ok := c.level.transitions[event]; !ok {
		c.m.diag.InvalidRequests++
		c.m.emit(Record{
			Kind:   RecordInvalidRequest,
			Level:  c.level.name,
			Event:  event.Name(),
			Origin: c.origin,
		})
		return fmt.Errorf("%s on %q: %w", event.Name(), c.level.name, ErrInvalidTransition)
	}
	c.requests = append(c.requests, request{event: event, origin: c.origin})
	return nil
}

// Level is the level this context was issued to.
func (c *Context) Level() *Level {
	return c.level
}

// Activations is Level().NofActivations().
func (c *Context) Activations() uint64 {
	return c.level.activations
}

// EnteredFrom returns the level the current one was entered from, or nil when
// the current level is the entry level and has not been left yet.
func (c *Context) EnteredFrom() *Level {
	if c == nil || c.revoked {
		return nil
	}
	return c.m.previous
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (c *Context) ShutdownRequested() bool {
	if c == nil || c.revoked {
		return false
	}
	return c.m.exitCalled
}

// StartCycle starts the control loop.
func (c *Context) StartCycle() error {
	if c == nil || c.revoked {
		return ErrContextRevoked
	}
	if c.m.cycle != nil {
		c.m.cycle.StartCycle()
	}
	return nil
}

// StopCycle stops the control loop.
func (c *Context) StopCycle() error {
	if c == nil || c.revoked {
		return ErrContextRevoked
	}
	if c.m.cycle != nil {
		c.m.cycle.StopCycle()
	}
	return nil
}

// StopExecutor halts the machine and stops the process executor. Only the off
// level may call it.
func (c *Context) StopExecutor() error {
	if c == nil || c.revoked {
		return ErrContextRevoked
	}
	if c.level != c.m.off || c.origin != OriginLevel {
		return fmt.Errorf("level %q: %w", c.level.name, ErrNotOffLevel)
	}
	c.m.halt()
	return nil
}
