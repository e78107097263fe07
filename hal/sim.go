// Package hal provides digital IO backends for a safetyx.Machine: an
// in-memory simulator and a YAML input file that is reloaded on change.
package hal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/comalice/safetyx"
)

// ErrInputUnset is returned for inputs that were never given a value. The
// machine then substitutes the input's fail-safe value.
var ErrInputUnset = errors.New("input has no value")

// Write is one recorded output write.
type Write struct {
	Output safetyx.OutputID
	Name   string
	Value  bool
}

// Sim is a thread-safe in-memory implementation of safetyx.IO.
type Sim struct {
	mu       sync.RWMutex
	reg      *safetyx.IORegistry
	inputs   map[safetyx.InputID]bool
	faults   map[safetyx.InputID]error
	outputs  map[safetyx.OutputID]bool
	failOut  map[safetyx.OutputID]error
	writes   []Write
	maxLog   int
	observer func(Write)
}

// NewSim creates a simulator for the IO declared in reg.
func NewSim(reg *safetyx.IORegistry) *Sim {
	return &Sim{
		reg:     reg,
		inputs:  make(map[safetyx.InputID]bool),
		faults:  make(map[safetyx.InputID]error),
		outputs: make(map[safetyx.OutputID]bool),
		failOut: make(map[safetyx.OutputID]error),
		maxLog:  4096,
	}
}

// OnWrite registers fn to be called for every successful output write that
// changes the output value.
func (s *Sim) OnWrite(fn func(Write)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

func (s *Sim) SetInput(id safetyx.InputID, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[id] = v
	delete(s.faults, id)
}

// SetInputByName sets an input by its registered name.
func (s *Sim) SetInputByName(name string, v bool) error {
	id, ok := s.reg.InputByName(name)
	if !ok {
		return fmt.Errorf("input %q: %w", name, safetyx.ErrUnknownIO)
	}
	s.SetInput(id, v)
	return nil
}

// FailInput makes reads of id return err until the next SetInput.
func (s *Sim) FailInput(id safetyx.InputID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[id] = err
}

// FailOutput makes writes to id return err; a nil err clears the fault.
func (s *Sim) FailOutput(id safetyx.OutputID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOut, id)
		return
	}
	s.failOut[id] = err
}

func (s *Sim) ReadInput(id safetyx.InputID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.faults[id]; ok {
		return false, err
	}
	v, ok := s.inputs[id]
	if !ok {
		return false, ErrInputUnset
	}
	return v, nil
}

func (s *Sim) WriteOutput(id safetyx.OutputID, v bool) error {
	s.mu.Lock()
	if err, ok := s.failOut[id]; ok {
		s.mu.Unlock()
		return err
	}
	old, seen := s.outputs[id]
	s.outputs[id] = v
	w := Write{Output: id, Name: s.name(id), Value: v}
	if len(s.writes) >= s.maxLog {
		s.writes = s.writes[len(s.writes)/2:]
	}
	s.writes = append(s.writes, w)
	fn := s.observer
	s.mu.Unlock()

	if fn != nil && (!seen || old != v) {
		fn(w)
	}
	return nil
}

func (s *Sim) name(id safetyx.OutputID) string {
	if out, ok := s.reg.Output(id); ok {
		return out.Name
	}
	return fmt.Sprintf("output#%d", id)
}

// Output returns the last value written to id.
func (s *Sim) Output(id safetyx.OutputID) (value, written bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, written = s.outputs[id]
	return value, written
}

// OutputByName returns the last value written to the named output.
func (s *Sim) OutputByName(name string) (value, written bool) {
	id, ok := s.reg.OutputByName(name)
	if !ok {
		return false, false
	}
	return s.Output(id)
}

// Writes returns the recorded writes since the last ResetWrites.
func (s *Sim) Writes() []Write {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Write(nil), s.writes...)
}

func (s *Sim) ResetWrites() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}

// Snapshot returns the current output values by name.
func (s *Sim) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]bool, len(s.outputs))
	for id, v := range s.outputs {
		snap[s.name(id)] = v
	}
	return snap
}
