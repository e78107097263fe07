package realtime

import (
	"errors"

	"github.com/comalice/safetyx"
)

// processTick processes one complete tick. It reports whether the loop
// should keep running.
func (rt *Runtime) processTick() bool {
	// Phase 1: Collect and order queued events
	events := rt.collectEvents()
	sortEvents(events)

	// Phase 2: Hand them to the machine as public requests
	for _, e := range events {
		if err := rt.machine.TriggerEvent(e.Event); err != nil {
			if errors.Is(err, safetyx.ErrHalted) {
				return false
			}
			rt.logger.Printf("realtime: tick %d: event %q rejected: %v", rt.GetTickNumber(), e.Event.Name(), err)
		}
	}

	// Phase 3: One safety cycle
	if err := rt.machine.RunCycle(); err != nil {
		if !errors.Is(err, safetyx.ErrHalted) {
			rt.setErr(err)
		}
		return false
	}

	// Phase 4: Control step, only while the cycle is started
	if rt.control != nil && rt.controlOn.Load() {
		rt.runControl()
	}
	return !rt.machine.Halted()
}

// collectEvents atomically retrieves and clears the event batch
func (rt *Runtime) collectEvents() []EventWithMeta {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()

	events := rt.eventBatch
	rt.eventBatch = make([]EventWithMeta, 0, cap(rt.eventBatch))
	return events
}

func (rt *Runtime) runControl() {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Printf("realtime: control step panicked at tick %d: %v", rt.GetTickNumber(), r)
		}
	}()
	rt.control(rt.GetTickNumber())
}
