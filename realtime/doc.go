// Package realtime drives a safetyx.Machine at a fixed tick rate.
//
// The runtime owns the only goroutine that calls Machine.RunCycle. External
// callers queue public events with SendEvent; the queue is drained at the
// start of each tick in a deterministic order before the cycle runs.
//
// # Example Usage
//
//	m, _ := b.Build()
//	rt := realtime.NewRuntime(m, realtime.Config{
//		TickRate: 10 * time.Millisecond, // 100 Hz
//		Control:  controlStep,
//	})
//	rt.Start(ctx)
//	rt.SendEvent(doSystemOn)
//	...
//	rt.RequestShutdown()
//	rt.Wait()
//
// # Control loop
//
// Config.Control is the control system step (trajectory, drivers). It runs
// after the safety cycle of the same tick, and only while the cycle is
// started. Level actions start and stop it through their safety context;
// the runtime is the machine's CycleControl.
//
// # Executor
//
// The runtime is also the machine's Executor: when the off level stops the
// executor the tick loop exits after the current tick and Wait returns.
//
// # Event Ordering Guarantees
//
// Queued events are ordered by:
//  1. Priority (higher priority processed first)
//  2. Sequence number (FIFO for same priority)
//
// Within the machine the first valid request of a cycle wins, so this order
// decides which external request is applied when several arrive in one tick.
package realtime
