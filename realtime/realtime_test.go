package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/comalice/safetyx"
)

// newOnOff builds Off (entry, off) <-> On. Off stops the executor once it was
// re-entered or a shutdown was requested; exit triggers "off".
func newOnOff(t *testing.T, onAction safetyx.LevelAction) *safetyx.Machine {
	t.Helper()
	b := safetyx.NewBuilder("onoff")
	b.Level("Off", "").
		On("on", "On", safetyx.Public).
		On("alt", "Alt", safetyx.Public).
		Action(func(sc *safetyx.Context) {
			if sc.EnteredFrom() != nil || sc.ShutdownRequested() {
				_ = sc.StopExecutor()
			}
		})
	on := b.Level("On", "").On("off", "Off", safetyx.Public)
	if onAction != nil {
		on.Action(onAction)
	}
	b.Level("Alt", "").On("off", "Off", safetyx.Public)
	b.Entry("Off").Off("Off").ExitTriggers("off")

	m, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build machine: %v", err)
	}
	return m
}

func event(t *testing.T, m *safetyx.Machine, name string) *safetyx.Event {
	t.Helper()
	e, ok := m.Event(name)
	if !ok {
		t.Fatalf("unknown event %q", name)
	}
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRuntimeCreation(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: 10 * time.Millisecond})

	if rt == nil {
		t.Fatal("Runtime is nil")
	}
	if rt.Machine() != m {
		t.Error("expected runtime to drive the given machine")
	}
	if rt.CycleRunning() {
		t.Error("expected control cycle stopped before start")
	}
	if rt.Done() != nil {
		t.Error("expected nil Done channel before start")
	}
}

func TestTickLoopAdvances(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	waitFor(t, "5 ticks", func() bool { return rt.GetTickNumber() >= 5 })
	if m.Cycle() == 0 {
		t.Error("expected machine cycles to run")
	}
}

func TestStartTwice(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()
	if err := rt.Start(context.Background()); err == nil {
		t.Error("expected error on second start")
	}
}

func TestStartRejectsInvalidMachine(t *testing.T) {
	m := safetyx.NewMachine("empty")
	rt := NewRuntime(m, Config{})
	err := rt.Start(context.Background())
	if !errors.Is(err, safetyx.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSimpleTransition(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	if got := rt.CurrentLevel().Name(); got != "Off" {
		t.Errorf("expected initial level Off, got %s", got)
	}
	if err := rt.SendEvent(event(t, m, "on")); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
	waitFor(t, "level On", func() bool { return rt.CurrentLevel().Name() == "On" })
}

func TestEventOrdering(t *testing.T) {
	events := []EventWithMeta{
		{Event: safetyx.NewEvent("a"), SequenceNum: 0, Priority: 0},
		{Event: safetyx.NewEvent("b"), SequenceNum: 1, Priority: 5},
		{Event: safetyx.NewEvent("c"), SequenceNum: 2, Priority: 0},
		{Event: safetyx.NewEvent("d"), SequenceNum: 3, Priority: 5},
	}
	sortEvents(events)

	want := []string{"b", "d", "a", "c"}
	for i, e := range events {
		if e.Event.Name() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], e.Event.Name())
		}
	}
}

func TestPriorityDecidesBatch(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	// Both queued before the first tick, so they land in one cycle.
	if err := rt.SendEvent(event(t, m, "on")); err != nil {
		t.Fatal(err)
	}
	if err := rt.SendEventWithPriority(event(t, m, "alt"), 10); err != nil {
		t.Fatal(err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	waitFor(t, "first transition", func() bool { return m.Diagnostics().Transitions >= 1 })
	if got := rt.CurrentLevel().Name(); got != "Alt" {
		t.Errorf("expected higher priority event to win, got level %s", got)
	}
	if got := m.Diagnostics().SupersededRequests; got != 1 {
		t.Errorf("expected 1 superseded request, got %d", got)
	}
}

func TestEventQueueFull(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{MaxEventsPerTick: 2})
	on := event(t, m, "on")

	for i := 0; i < 2; i++ {
		if err := rt.SendEvent(on); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := rt.SendEvent(on); !errors.Is(err, ErrEventQueueFull) {
		t.Fatalf("expected ErrEventQueueFull, got %v", err)
	}
}

func TestControlStepFollowsCycle(t *testing.T) {
	var steps atomic.Int64
	m := newOnOff(t, func(sc *safetyx.Context) {
		_ = sc.StartCycle()
	})
	rt := NewRuntime(m, Config{
		TickRate: time.Millisecond,
		Control:  func(uint64) { steps.Add(1) },
	})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	defer rt.Stop()

	time.Sleep(10 * time.Millisecond)
	if steps.Load() != 0 {
		t.Fatal("control step ran before the cycle was started")
	}

	if err := rt.SendEvent(event(t, m, "on")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "control steps", func() bool { return steps.Load() >= 3 })
	if !rt.CycleRunning() {
		t.Error("expected control cycle running")
	}
}

func TestShutdownStopsLoop(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	if err := rt.SendEvent(event(t, m, "on")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "level On", func() bool { return rt.CurrentLevel().Name() == "On" })

	if err := rt.RequestShutdown(); err != nil {
		t.Fatalf("RequestShutdown: %v", err)
	}
	select {
	case <-rt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop")
	}
	if err := rt.Wait(); err != nil {
		t.Errorf("expected clean stop, got %v", err)
	}
	if !m.Halted() {
		t.Error("expected machine halted")
	}
	if got := rt.CurrentLevel().Name(); got != "Off" {
		t.Errorf("expected to stop in Off, got %s", got)
	}
}

func TestStopCancelsWithoutShutdownPath(t *testing.T) {
	m := newOnOff(t, nil)
	rt := NewRuntime(m, Config{TickRate: time.Millisecond})

	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start runtime: %v", err)
	}
	if err := rt.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Halted() {
		t.Error("Stop must not halt the machine")
	}
}
