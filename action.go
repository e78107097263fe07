package safetyx

// InputActionKind selects what an InputAction does with its sampled input.
type InputActionKind int

const (
	InputIgnore InputActionKind = iota
	InputCheck
)

// InputAction binds one critical input to either nothing or a check that
// requests Event whenever the sampled value equals Value.
type InputAction struct {
	Kind  InputActionKind
	Input InputID
	Value bool
	Event *Event
}

// Ignore leaves the input unobserved in this level.
func Ignore(in InputID) InputAction {
	return InputAction{Kind: InputIgnore, Input: in}
}

// Check requests event when the sampled input equals value.
func Check(in InputID, value bool, event *Event) InputAction {
	return InputAction{Kind: InputCheck, Input: in, Value: value, Event: event}
}

// OutputAction drives one critical output to a fixed value every cycle the
// level is current.
type OutputAction struct {
	Output OutputID
	Value  bool
}

// Set drives out to value.
func Set(out OutputID, value bool) OutputAction {
	return OutputAction{Output: out, Value: value}
}

// LevelAction is the per-cycle logic of a level. It must not block and must
// request transitions only through sc.
type LevelAction func(sc *Context)
