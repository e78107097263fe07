package safetyx

// Event is a named trigger. Identity is the pointer: two events with the same
// name are different events.
type Event struct {
	name string
}

// NewEvent creates an event.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

func (e *Event) Name() string {
	if e == nil {
		return "<nil>"
	}
	return e.name
}

func (e *Event) String() string { return e.Name() }

// Visibility controls who may trigger an event for a given transition.
type Visibility int

const (
	// Public events may be triggered by any caller of the machine.
	Public Visibility = iota
	// Private events may only be triggered through the Context handed to the
	// current level's own action.
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// Transition maps (Source, Event) to Target.
type Transition struct {
	Event      *Event
	Source     *Level
	Target     *Level
	Visibility Visibility
}
