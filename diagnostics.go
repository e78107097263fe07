package safetyx

import "time"

// Origin tells where an event request came from.
type Origin int

const (
	OriginInput Origin = iota
	OriginExternal
	OriginLevel
	OriginExit
)

func (o Origin) String() string {
	switch o {
	case OriginInput:
		return "input"
	case OriginExternal:
		return "external"
	case OriginLevel:
		return "level"
	case OriginExit:
		return "exit"
	default:
		return "unknown"
	}
}

// RecordKind classifies an observed engine occurrence.
type RecordKind int

const (
	RecordTransition RecordKind = iota
	RecordInvalidRequest
	RecordSuperseded
	RecordVisibilityViolation
	RecordInputFault
	RecordOutputFault
	RecordActionPanic
	RecordShutdownRequested
	RecordHalted
)

func (k RecordKind) String() string {
	switch k {
	case RecordTransition:
		return "transition"
	case RecordInvalidRequest:
		return "invalid_request"
	case RecordSuperseded:
		return "superseded"
	case RecordVisibilityViolation:
		return "visibility_violation"
	case RecordInputFault:
		return "input_fault"
	case RecordOutputFault:
		return "output_fault"
	case RecordActionPanic:
		return "action_panic"
	case RecordShutdownRequested:
		return "shutdown_requested"
	case RecordHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Record describes one occurrence worth reporting. Fields that do not apply
// to Kind are empty.
type Record struct {
	Kind   RecordKind
	Cycle  uint64
	Time   time.Time
	Level  string
	Target string
	Event  string
	Origin Origin
	Detail string
}

// Observer receives records from inside the cycle. Observe must not block.
type Observer interface {
	Observe(r Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Record)

func (f ObserverFunc) Observe(r Record) { f(r) }

// Diagnostics are cumulative counters since validation.
type Diagnostics struct {
	Cycles               uint64 `json:"cycles" yaml:"cycles"`
	Transitions          uint64 `json:"transitions" yaml:"transitions"`
	InvalidRequests      uint64 `json:"invalidRequests" yaml:"invalidRequests"`
	SupersededRequests   uint64 `json:"supersededRequests" yaml:"supersededRequests"`
	VisibilityViolations uint64 `json:"visibilityViolations" yaml:"visibilityViolations"`
	InputFaults          uint64 `json:"inputFaults" yaml:"inputFaults"`
	OutputFaults         uint64 `json:"outputFaults" yaml:"outputFaults"`
	ActionPanics         uint64 `json:"actionPanics" yaml:"actionPanics"`
}
