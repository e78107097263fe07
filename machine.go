package safetyx

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type request struct {
	event  *Event
	origin Origin
	retry  bool
}

// Machine is the safety state machine engine. It owns the levels, the current
// level and the pending requests, and advances one cycle per RunCycle call.
//
// All exported methods are serialized by one mutex. Level actions and the
// exit function run while that mutex is held and must only talk to the engine
// through their Context; calling Machine methods from inside them deadlocks.
type Machine struct {
	mu     sync.Mutex
	name   string
	io     *IORegistry
	levels []*Level
	byName map[string]*Level

	entry *Level
	off   *Level
	exit  func(sc *Context)

	reader   InputReader
	writer   OutputWriter
	cycle    CycleControl
	executor Executor
	observer Observer
	logger   *log.Logger

	frozen     atomic.Bool
	validated  bool
	halted     bool
	exitCalled bool

	current  *Level
	previous *Level
	sampled  []bool
	pending  []request
	exitReqs []request
	scratch  []request

	maxPending int
	cycleNum   uint64
	diag       Diagnostics
}

// NewMachine creates an empty machine.
func NewMachine(name string, opts ...Option) *Machine {
	m := &Machine{
		name:       name,
		io:         NewIORegistry(),
		byName:     make(map[string]*Level),
		logger:     log.New(io.Discard, "", 0),
		maxPending: 64,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Machine) Name() string { return m.name }

// IO returns the critical IO registry.
func (m *Machine) IO() *IORegistry { return m.io }

// AddLevel appends l to the hierarchy; its ordinal is the number of levels
// added before it.
func (m *Machine) AddLevel(l *Level) error {
	if l == nil {
		return fmt.Errorf("add level: %w", ErrNilArgument)
	}
	if m.frozen.Load() {
		return ErrFrozen
	}
	if l.machine != nil {
		return fmt.Errorf("level %q already belongs to machine %q: %w", l.name, l.machine.name, ErrConfiguration)
	}
	if _, exists := m.byName[l.name]; exists {
		return fmt.Errorf("level %q: %w", l.name, ErrDuplicateLevel)
	}
	l.id = LevelID(len(m.levels))
	l.machine = m
	m.levels = append(m.levels, l)
	m.byName[l.name] = l
	return nil
}

func (m *Machine) owns(l *Level) bool {
	return l != nil && l.machine == m
}

// AddEventToAllLevelsBetween registers (event -> target) on every level whose
// ordinal lies in [lower, upper]. Nothing is registered if any level in the
// range already has a transition for event.
func (m *Machine) AddEventToAllLevelsBetween(lower, upper *Level, event *Event, target *Level, visibility Visibility) error {
	if event == nil || target == nil {
		return fmt.Errorf("range registration: %w", ErrNilArgument)
	}
	if !m.owns(lower) || !m.owns(upper) {
		return fmt.Errorf("range %v..%v: %w", lower, upper, ErrUnknownLevel)
	}
	if lower.id > upper.id {
		return fmt.Errorf("range %q(%d)..%q(%d): %w", lower.name, lower.id, upper.name, upper.id, ErrInvalidRange)
	}
	if m.frozen.Load() {
		return ErrFrozen
	}
	span := m.levels[lower.id : upper.id+1]
	for _, l := range span {
		if existing, ok := l.transitions[event]; ok {
			return fmt.Errorf("level %q event %q already targets %q: %w",
				l.name, event.Name(), existing.Target.name, ErrDuplicateTransition)
		}
	}
	for _, l := range span {
		if err := l.AddEvent(event, target, visibility); err != nil {
			return err
		}
	}
	return nil
}

// SetEntryLevel sets the level the machine starts in.
func (m *Machine) SetEntryLevel(l *Level) error {
	if !m.owns(l) {
		return fmt.Errorf("entry level %v: %w", l, ErrUnknownLevel)
	}
	if m.frozen.Load() {
		return ErrFrozen
	}
	m.entry = l
	return nil
}

// SetOffLevel designates the terminal level every reachable level must be
// able to reach, and the only level allowed to stop the executor.
func (m *Machine) SetOffLevel(l *Level) error {
	if !m.owns(l) {
		return fmt.Errorf("off level %v: %w", l, ErrUnknownLevel)
	}
	if m.frozen.Load() {
		return ErrFrozen
	}
	m.off = l
	return nil
}

// SetExitFunction installs the logic run by RequestShutdown.
func (m *Machine) SetExitFunction(fn func(sc *Context)) error {
	if fn == nil {
		return fmt.Errorf("exit function: %w", ErrNilArgument)
	}
	if m.frozen.Load() {
		return ErrFrozen
	}
	m.exit = fn
	return nil
}

// SetIO binds the hardware capability. Allowed at any time.
func (m *Machine) SetIO(io IO) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reader, m.writer = io, io
}

// SetCycleControl binds the control loop. Allowed at any time.
func (m *Machine) SetCycleControl(c CycleControl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle = c
}

// SetExecutor binds the process executor. Allowed at any time.
func (m *Machine) SetExecutor(e Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executor = e
}

// TriggerEvent requests a public transition from outside the level logic. It
// is resolved during the next RunCycle, after the input actions of that
// cycle.
func (m *Machine) TriggerEvent(event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.validated {
		return ErrNotValidated
	}
	if m.halted {
		return ErrHalted
	}
	t, ok := m.current.transitions[event]
	if !ok {
		m.diag.InvalidRequests++
		m.emit(Record{Kind: RecordInvalidRequest, Level: m.current.name, Event: event.Name(), Origin: OriginExternal})
		return fmt.Errorf("%s on %q: %w", event.Name(), m.current.name, ErrInvalidTransition)
	}
	if t.Visibility == Private {
		m.diag.VisibilityViolations++
		m.emit(Record{Kind: RecordVisibilityViolation, Level: m.current.name, Event: event.Name(), Origin: OriginExternal})
		m.logger.Printf("safetyx: rejected private event %q on level %q", event.Name(), m.current.name)
		return fmt.Errorf("%s on %q: %w", event.Name(), m.current.name, ErrVisibilityViolation)
	}
	if len(m.pending) >= m.maxPending {
		return ErrRequestQueueFull
	}
	m.pending = append(m.pending, request{event: event, origin: OriginExternal})
	return nil
}

// RequestShutdown runs the exit function. Its requests are resolved from the
// next cycle on, after the external queue, and are re-queued every cycle
// until one of them is taken or the machine halts. Calling it again re-runs
// the exit function and replaces the held requests.
func (m *Machine) RequestShutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.validated {
		return ErrNotValidated
	}
	if m.halted {
		return nil
	}
	m.exitCalled = true
	m.emit(Record{Kind: RecordShutdownRequested, Level: m.current.name, Origin: OriginExit})
	if m.exit == nil {
		m.logger.Printf("safetyx: shutdown requested on %q but no exit function is set", m.current.name)
		return nil
	}
	m.logger.Printf("safetyx: shutdown requested on %q", m.current.name)

	sc := newContext(m, m.current, OriginExit)
	m.invoke(sc, m.exit)
	reqs := sc.revoke()
	if len(reqs) > m.maxPending {
		reqs = reqs[:m.maxPending]
	}
	m.exitReqs = append(m.exitReqs[:0], reqs...)
	return nil
}

// RunCycle advances the engine by one tick:
// sample inputs, evaluate input actions, run the level action, resolve at
// most one transition, apply output actions.
func (m *Machine) RunCycle() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.validated {
		return ErrNotValidated
	}
	if m.halted {
		return ErrHalted
	}
	m.cycleNum++
	m.diag.Cycles++
	cur := m.current

	m.sampleInputs()

	reqs := m.scratch[:0]
	for _, a := range cur.inputs {
		if a.Kind == InputCheck && m.sampled[a.Input] == a.Value {
			reqs = append(reqs, request{event: a.Event, origin: OriginInput})
		}
	}
	reqs = append(reqs, m.pending...)
	m.pending = m.pending[:0]
	reqs = append(reqs, m.exitReqs...)

	if cur.action != nil {
		sc := newContext(m, cur, OriginLevel)
		m.invoke(sc, cur.action)
		reqs = append(reqs, sc.revoke()...)
	}

	if origin, ok := m.resolve(cur, reqs); ok && origin == OriginExit {
		m.exitReqs = m.exitReqs[:0]
	}
	for i := range m.exitReqs {
		m.exitReqs[i].retry = true
	}
	m.scratch = reqs[:0]

	m.applyOutputs()
	return nil
}

func (m *Machine) sampleInputs() {
	for i, in := range m.io.inputs {
		if m.reader == nil {
			m.inputFault(in, ErrNoIO)
			m.sampled[i] = in.FailSafe
			continue
		}
		v, err := m.reader.ReadInput(in.ID)
		if err != nil {
			m.inputFault(in, err)
			v = in.FailSafe
		}
		m.sampled[i] = v
	}
}

func (m *Machine) inputFault(in Input, err error) {
	m.diag.InputFaults++
	m.emit(Record{Kind: RecordInputFault, Level: m.current.name, Detail: fmt.Sprintf("%s: %v", in.Name, err)})
	m.logger.Printf("safetyx: read %q failed, using fail-safe %t: %v", in.Name, in.FailSafe, err)
}

// resolve applies the first valid request and returns its origin, with false
// when nothing was valid. Everything after it is reported as superseded. Retried
// exit requests that lose are held silently.
func (m *Machine) resolve(cur *Level, reqs []request) (Origin, bool) {
	var chosen *Transition
	var origin Origin
	for _, r := range reqs {
		t, ok := cur.transitions[r.event]
		if !ok {
			if r.retry {
				continue
			}
			m.diag.InvalidRequests++
			m.emit(Record{Kind: RecordInvalidRequest, Level: cur.name, Event: r.event.Name(), Origin: r.origin})
			continue
		}
		if chosen != nil {
			if r.retry {
				continue
			}
			m.diag.SupersededRequests++
			m.emit(Record{Kind: RecordSuperseded, Level: cur.name, Target: t.Target.name, Event: r.event.Name(), Origin: r.origin})
			continue
		}
		chosen, origin = t, r.origin
	}

	if chosen == nil {
		cur.activations++
		return 0, false
	}
	if chosen.Target == cur {
		cur.activations++
		return origin, true
	}

	next := chosen.Target
	m.previous = cur
	m.current = next
	next.activations = 0
	m.diag.Transitions++
	m.emit(Record{Kind: RecordTransition, Level: cur.name, Target: next.name, Event: chosen.Event.Name(), Origin: origin})
	m.logger.Printf("safetyx: %q -> %q on %q (%s)", cur.name, next.name, chosen.Event.Name(), origin)
	return origin, true
}

func (m *Machine) applyOutputs() {
	for _, a := range m.current.outputs {
		var err error
		if m.writer == nil {
			err = ErrNoIO
		} else {
			err = m.writer.WriteOutput(a.Output, a.Value)
		}
		if err != nil {
			name := m.io.outputName(a.Output)
			m.diag.OutputFaults++
			m.emit(Record{Kind: RecordOutputFault, Level: m.current.name, Detail: fmt.Sprintf("%s: %v", name, err)})
			m.logger.Printf("safetyx: write %q=%t failed: %v", name, a.Value, err)
		}
	}
}

// invoke runs fn and recovers a panic so the cycle always completes. Requests
// made by a panicking action are dropped.
func (m *Machine) invoke(sc *Context, fn func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			sc.requests = nil
			m.diag.ActionPanics++
			m.emit(Record{Kind: RecordActionPanic, Level: sc.level.name, Origin: sc.origin, Detail: fmt.Sprint(r)})
			m.logger.Printf("safetyx: %s action on %q panicked: %v", sc.origin, sc.level.name, r)
		}
	}()
	fn(sc)
}

func (m *Machine) halt() {
	if m.halted {
		return
	}
	m.halted = true
	m.exitReqs = nil
	m.emit(Record{Kind: RecordHalted, Level: m.current.name})
	m.logger.Printf("safetyx: halted in %q after %d cycles", m.current.name, m.cycleNum)
	if m.executor != nil {
		m.executor.Stop()
	}
}

func (m *Machine) emit(r Record) {
	if m.observer == nil {
		return
	}
	r.Cycle = m.cycleNum
	r.Time = time.Now()
	m.observer.Observe(r)
}

// CurrentLevel returns the current level (nil before validation).
func (m *Machine) CurrentLevel() *Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ActivationCount returns NofActivations of the current level.
func (m *Machine) ActivationCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0
	}
	return m.current.activations
}

// Diagnostics returns a copy of the counters.
func (m *Machine) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diag
}

// Halted reports whether the off level stopped the executor.
func (m *Machine) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

// Cycle returns the number of completed cycles.
func (m *Machine) Cycle() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycleNum
}

// Levels returns the levels in ordinal order.
func (m *Machine) Levels() []*Level {
	return append([]*Level(nil), m.levels...)
}

// Level looks a level up by name.
func (m *Machine) Level(name string) (*Level, bool) {
	l, ok := m.byName[name]
	return l, ok
}

// Event looks an event up by name among the registered transitions and
// input actions.
func (m *Machine) Event(name string) (*Event, bool) {
	for _, l := range m.levels {
		for _, e := range l.order {
			if e.name == name {
				return e, true
			}
		}
		for _, a := range l.inputs {
			if a.Event != nil && a.Event.name == name {
				return a.Event, true
			}
		}
	}
	return nil, false
}

func (m *Machine) EntryLevel() *Level { return m.entry }
func (m *Machine) OffLevel() *Level   { return m.off }
