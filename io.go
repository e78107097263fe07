package safetyx

import "fmt"

type InputID int
type OutputID int

// Input is a critical digital input. FailSafe is the value substituted when
// the hardware read fails; it must be the most restrictive reading.
type Input struct {
	ID       InputID
	Name     string
	FailSafe bool
}

type Output struct {
	ID   OutputID
	Name string
}

// InputReader samples critical inputs. Implementations must not block.
type InputReader interface {
	ReadInput(id InputID) (bool, error)
}

// OutputWriter drives critical outputs. Implementations must not block.
type OutputWriter interface {
	WriteOutput(id OutputID, value bool) error
}

// IO is the hardware capability handed to a Machine.
type IO interface {
	InputReader
	OutputWriter
}

// IORegistry owns every critical input and output the engine refreshes each
// cycle. Levels and actions only ever hold IDs issued by the registry.
type IORegistry struct {
	inputs       []Input
	outputs      []Output
	inputByName  map[string]InputID
	outputByName map[string]OutputID
	frozen       bool
}

// NewIORegistry creates an empty registry.
func NewIORegistry() *IORegistry {
	return &IORegistry{
		inputByName:  make(map[string]InputID),
		outputByName: make(map[string]OutputID),
	}
}

// AddInput registers a critical input.
func (r *IORegistry) AddInput(name string, failSafe bool) (InputID, error) {
	if r.frozen {
		return -1, ErrFrozen
	}
	if _, exists := r.inputByName[name]; exists {
		return -1, fmt.Errorf("input %q: %w", name, ErrDuplicateIO)
	}
	id := InputID(len(r.inputs))
	r.inputs = append(r.inputs, Input{ID: id, Name: name, FailSafe: failSafe})
	r.inputByName[name] = id
	return id, nil
}

// AddOutput registers a critical output.
func (r *IORegistry) AddOutput(name string) (OutputID, error) {
	if r.frozen {
		return -1, ErrFrozen
	}
	if _, exists := r.outputByName[name]; exists {
		return -1, fmt.Errorf("output %q: %w", name, ErrDuplicateIO)
	}
	id := OutputID(len(r.outputs))
	r.outputs = append(r.outputs, Output{ID: id, Name: name})
	r.outputByName[name] = id
	return id, nil
}

func (r *IORegistry) Input(id InputID) (Input, bool) {
	if id < 0 || int(id) >= len(r.inputs) {
		return Input{}, false
	}
	return r.inputs[id], true
}

func (r *IORegistry) Output(id OutputID) (Output, bool) {
	if id < 0 || int(id) >= len(r.outputs) {
		return Output{}, false
	}
	return r.outputs[id], true
}

func (r *IORegistry) InputByName(name string) (InputID, bool) {
	id, ok := r.inputByName[name]
	return id, ok
}

func (r *IORegistry) OutputByName(name string) (OutputID, bool) {
	id, ok := r.outputByName[name]
	return id, ok
}

// Inputs returns a copy of the registered inputs in ID order.
func (r *IORegistry) Inputs() []Input {
	return append([]Input(nil), r.inputs...)
}

// Outputs returns a copy of the registered outputs in ID order.
func (r *IORegistry) Outputs() []Output {
	return append([]Output(nil), r.outputs...)
}

func (r *IORegistry) inputName(id InputID) string {
	if in, ok := r.Input(id); ok {
		return in.Name
	}
	return fmt.Sprintf("input#%d", id)
}

func (r *IORegistry) outputName(id OutputID) string {
	if out, ok := r.Output(id); ok {
		return out.Name
	}
	return fmt.Sprintf("output#%d", id)
}
