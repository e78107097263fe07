package realtime

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comalice/safetyx"
)

// ErrEventQueueFull is returned by SendEvent when the batch for the next tick
// is at capacity.
var ErrEventQueueFull = errors.New("event queue full")

// Runtime runs one safety cycle per tick and implements the machine's
// CycleControl and Executor.
type Runtime struct {
	machine  *safetyx.Machine
	tickRate time.Duration
	control  func(tick uint64)
	logger   *log.Logger

	tickNum   atomic.Uint64
	controlOn atomic.Bool

	// Event batching
	eventBatch  []EventWithMeta
	batchMu     sync.Mutex
	sequenceNum uint64

	// Control
	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
	err     error
}

// Config configures the runtime.
type Config struct {
	TickRate         time.Duration     // Fixed tick rate (default 10ms)
	MaxEventsPerTick int               // Event queue capacity (default 64)
	Control          func(tick uint64) // Control step, run while the cycle is started
	Logger           *log.Logger       // Default discards
}

// NewRuntime creates a runtime for m and binds itself as m's CycleControl and
// Executor.
func NewRuntime(m *safetyx.Machine, cfg Config) *Runtime {
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = 64
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	rt := &Runtime{
		machine:    m,
		tickRate:   cfg.TickRate,
		control:    cfg.Control,
		logger:     cfg.Logger,
		eventBatch: make([]EventWithMeta, 0, cfg.MaxEventsPerTick),
	}
	m.SetCycleControl(rt)
	m.SetExecutor(executor{rt})
	return rt
}

// Start validates the machine and begins ticking.
func (rt *Runtime) Start(ctx context.Context) error {
	if err := rt.machine.Validate(); err != nil {
		return err
	}

	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if rt.stopped != nil {
		return errors.New("runtime already started")
	}
	tickCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.stopped = make(chan struct{})

	go rt.tickLoop(tickCtx, rt.stopped)
	return nil
}

// Stop cancels the tick loop and waits for it to exit. It bypasses the safe
// shutdown path; use RequestShutdown and Wait for an orderly stop.
func (rt *Runtime) Stop() error {
	rt.halt()
	return rt.Wait()
}

// Wait blocks until the tick loop exits and returns its error, if any.
func (rt *Runtime) Wait() error {
	rt.runMu.Lock()
	stopped := rt.stopped
	rt.runMu.Unlock()
	if stopped == nil {
		return nil
	}
	<-stopped

	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	return rt.err
}

// Done is closed when the tick loop exits. Nil before Start.
func (rt *Runtime) Done() <-chan struct{} {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	return rt.stopped
}

// RequestShutdown runs the machine's exit function; the levels then unwind
// toward the off level, which stops the runtime.
func (rt *Runtime) RequestShutdown() error {
	return rt.machine.RequestShutdown()
}

func (rt *Runtime) halt() {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if rt.cancel != nil {
		rt.cancel()
	}
}

func (rt *Runtime) setErr(err error) {
	rt.runMu.Lock()
	defer rt.runMu.Unlock()
	if rt.err == nil {
		rt.err = err
	}
}

// tickLoop is the main tick execution loop
func (rt *Runtime) tickLoop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(rt.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keepGoing := rt.processTick()
			rt.tickNum.Add(1)
			if !keepGoing {
				return
			}
		}
	}
}

// SendEvent queues a public event for the next tick (thread-safe).
func (rt *Runtime) SendEvent(event *safetyx.Event) error {
	return rt.SendEventWithPriority(event, 0)
}

// SendEventWithPriority queues an event with priority; higher goes first.
func (rt *Runtime) SendEventWithPriority(event *safetyx.Event, priority int) error {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	if len(rt.eventBatch) >= cap(rt.eventBatch) {
		return ErrEventQueueFull
	}
	rt.eventBatch = append(rt.eventBatch, EventWithMeta{
		Event:       event,
		SequenceNum: rt.sequenceNum,
		Priority:    priority,
	})
	rt.sequenceNum++
	return nil
}

// StartCycle enables the control step.
func (rt *Runtime) StartCycle() {
	if !rt.controlOn.Swap(true) {
		rt.logger.Printf("realtime: control cycle started at tick %d", rt.GetTickNumber())
	}
}

// StopCycle disables the control step.
func (rt *Runtime) StopCycle() {
	if rt.controlOn.Swap(false) {
		rt.logger.Printf("realtime: control cycle stopped at tick %d", rt.GetTickNumber())
	}
}

// CycleRunning reports whether the control step is enabled.
func (rt *Runtime) CycleRunning() bool {
	return rt.controlOn.Load()
}

// GetTickNumber returns the number of completed ticks.
func (rt *Runtime) GetTickNumber() uint64 {
	return rt.tickNum.Load()
}

// CurrentLevel returns the machine's current level.
func (rt *Runtime) CurrentLevel() *safetyx.Level {
	return rt.machine.CurrentLevel()
}

// Machine returns the driven machine.
func (rt *Runtime) Machine() *safetyx.Machine {
	return rt.machine
}

// executor adapts the runtime to safetyx.Executor. Stop is called from inside
// a cycle and must not wait for the loop.
type executor struct{ rt *Runtime }

func (e executor) Stop() { e.rt.halt() }
