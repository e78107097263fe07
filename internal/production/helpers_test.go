package production

import (
	"testing"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/hal"
)

// newLamp builds Off <-> On with a private "fault" back to Off and binds a
// simulated lamp.
func newLamp(t *testing.T, opts ...safetyx.Option) (*safetyx.Machine, *hal.Sim) {
	t.Helper()
	b := safetyx.NewBuilder("lamp", opts...)
	b.Output("lamp")
	b.Level("Off", "lamp dark").
		On("on", "On", safetyx.Public).
		Set("lamp", false).
		Action(func(sc *safetyx.Context) {
			if sc.ShutdownRequested() {
				_ = sc.StopExecutor()
			}
		})
	b.Level("On", "lamp lit").
		On("off", "Off", safetyx.Public).
		On("fault", "Off", safetyx.Private).
		Set("lamp", true)
	b.Entry("Off").Off("Off").ExitTriggers("off")

	m, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build lamp: %v", err)
	}
	sim := hal.NewSim(m.IO())
	m.SetIO(sim)
	return m, sim
}

func trigger(t *testing.T, m *safetyx.Machine, name string) {
	t.Helper()
	ev, ok := m.Event(name)
	if !ok {
		t.Fatalf("unknown event %q", name)
	}
	if err := m.TriggerEvent(ev); err != nil {
		t.Fatalf("Failed to trigger %s: %v", name, err)
	}
}

func cycle(t *testing.T, m *safetyx.Machine) {
	t.Helper()
	if err := m.RunCycle(); err != nil {
		t.Fatalf("Failed to run cycle: %v", err)
	}
}
