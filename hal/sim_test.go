package hal_test

import (
	"errors"
	"testing"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/hal"
)

func newRegistry(t *testing.T) (*safetyx.IORegistry, safetyx.InputID, safetyx.OutputID) {
	t.Helper()
	reg := safetyx.NewIORegistry()
	in, err := reg.AddInput("pause", false)
	if err != nil {
		t.Fatal(err)
	}
	out, err := reg.AddOutput("led")
	if err != nil {
		t.Fatal(err)
	}
	return reg, in, out
}

func TestSimUnsetInput(t *testing.T) {
	reg, in, _ := newRegistry(t)
	sim := hal.NewSim(reg)

	if _, err := sim.ReadInput(in); !errors.Is(err, hal.ErrInputUnset) {
		t.Errorf("expected ErrInputUnset, got %v", err)
	}

	sim.SetInput(in, true)
	v, err := sim.ReadInput(in)
	if err != nil || !v {
		t.Errorf("expected true, nil; got %v, %v", v, err)
	}
}

func TestSimFaults(t *testing.T) {
	reg, in, out := newRegistry(t)
	sim := hal.NewSim(reg)
	boom := errors.New("boom")

	sim.SetInput(in, true)
	sim.FailInput(in, boom)
	if _, err := sim.ReadInput(in); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	sim.SetInput(in, true)
	if _, err := sim.ReadInput(in); err != nil {
		t.Errorf("SetInput should clear the fault, got %v", err)
	}

	sim.FailOutput(out, boom)
	if err := sim.WriteOutput(out, true); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if _, written := sim.Output(out); written {
		t.Error("failed write must not be recorded")
	}
	sim.FailOutput(out, nil)
	if err := sim.WriteOutput(out, true); err != nil {
		t.Fatal(err)
	}
	if v, written := sim.OutputByName("led"); !written || !v {
		t.Errorf("expected led=true, got %v (written %v)", v, written)
	}
}

func TestSimWriteLogAndObserver(t *testing.T) {
	reg, _, out := newRegistry(t)
	sim := hal.NewSim(reg)

	var changes []bool
	sim.OnWrite(func(w hal.Write) { changes = append(changes, w.Value) })

	for _, v := range []bool{true, true, false, false, true} {
		if err := sim.WriteOutput(out, v); err != nil {
			t.Fatal(err)
		}
	}

	if got := len(sim.Writes()); got != 5 {
		t.Errorf("expected 5 recorded writes, got %d", got)
	}
	if len(changes) != 3 {
		t.Errorf("expected 3 value changes, got %v", changes)
	}
	if snap := sim.Snapshot(); snap["led"] != true {
		t.Errorf("snapshot mismatch: %v", snap)
	}

	sim.ResetWrites()
	if got := len(sim.Writes()); got != 0 {
		t.Errorf("expected empty write log, got %d", got)
	}
}

func TestSimSetInputByNameUnknown(t *testing.T) {
	reg, _, _ := newRegistry(t)
	sim := hal.NewSim(reg)
	if err := sim.SetInputByName("missing", true); !errors.Is(err, safetyx.ErrUnknownIO) {
		t.Errorf("expected ErrUnknownIO, got %v", err)
	}
}
