package testutil

import (
	"context"
	"errors"
	"time"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/realtime"
)

// Driver provides a common interface for the direct and tick-based ways of
// running a machine, so the same scenario can run on both.
type Driver interface {
	Start(ctx context.Context) error
	Stop() error
	SendEvent(event *safetyx.Event) error
	CurrentLevel() *safetyx.Level
	// Settle returns once every event sent before the call has been resolved
	// by a cycle.
	Settle(timeout time.Duration) error
}

// ErrSettleTimeout is returned by Settle when no cycle completed in time.
var ErrSettleTimeout = errors.New("no cycle completed before timeout")

// StepDriver runs one cycle per Settle on the caller's goroutine.
type StepDriver struct {
	m *safetyx.Machine
}

// NewStepDriver creates a driver that cycles m on demand
func NewStepDriver(m *safetyx.Machine) *StepDriver {
	return &StepDriver{m: m}
}

func (d *StepDriver) Start(ctx context.Context) error {
	return d.m.Validate()
}

func (d *StepDriver) Stop() error {
	return nil
}

func (d *StepDriver) SendEvent(event *safetyx.Event) error {
	return d.m.TriggerEvent(event)
}

func (d *StepDriver) CurrentLevel() *safetyx.Level {
	return d.m.CurrentLevel()
}

func (d *StepDriver) Settle(timeout time.Duration) error {
	err := d.m.RunCycle()
	if errors.Is(err, safetyx.ErrHalted) {
		return nil
	}
	return err
}

// TickDriver wraps the realtime runtime
type TickDriver struct {
	rt *realtime.Runtime
	m  *safetyx.Machine
}

// NewTickDriver creates a driver ticking m at tickRate.
func NewTickDriver(m *safetyx.Machine, tickRate time.Duration) *TickDriver {
	return &TickDriver{
		rt: realtime.NewRuntime(m, realtime.Config{TickRate: tickRate}),
		m:  m,
	}
}

// Runtime exposes the underlying runtime.
func (d *TickDriver) Runtime() *realtime.Runtime {
	return d.rt
}

func (d *TickDriver) Start(ctx context.Context) error {
	return d.rt.Start(ctx)
}

func (d *TickDriver) Stop() error {
	return d.rt.Stop()
}

func (d *TickDriver) SendEvent(event *safetyx.Event) error {
	return d.rt.SendEvent(event)
}

func (d *TickDriver) CurrentLevel() *safetyx.Level {
	return d.m.CurrentLevel()
}

// Settle waits for two cycles: the one possibly in flight when the event was
// queued, and the one that drains the queue.
func (d *TickDriver) Settle(timeout time.Duration) error {
	target := d.m.Cycle() + 2
	deadline := time.Now().Add(timeout)
	for d.m.Cycle() < target && !d.m.Halted() {
		if time.Now().After(deadline) {
			return ErrSettleTimeout
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
