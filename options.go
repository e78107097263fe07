package safetyx

import "log"

// Option configures a Machine.
type Option func(*Machine)

// WithIO binds the hardware capability.
func WithIO(io IO) Option {
	return func(m *Machine) {
		m.reader, m.writer = io, io
	}
}

// WithRegistry uses reg instead of a fresh IORegistry.
func WithRegistry(reg *IORegistry) Option {
	return func(m *Machine) {
		if reg != nil {
			m.io = reg
		}
	}
}

// WithCycleControl binds the control loop driven by level actions.
func WithCycleControl(c CycleControl) Option {
	return func(m *Machine) {
		m.cycle = c
	}
}

// WithExecutor binds the process executor stopped by the off level.
func WithExecutor(e Executor) Option {
	return func(m *Machine) {
		m.executor = e
	}
}

// WithObserver receives transition and fault records.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMaxPendingRequests bounds the external request queue (default 64).
func WithMaxPendingRequests(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxPending = n
		}
	}
}
