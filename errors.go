package safetyx

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the parent of every error detected while assembling a
// machine. Configuration errors are fatal: the machine refuses to run.
var ErrConfiguration = errors.New("safety configuration error")

var (
	ErrDuplicateTransition   = fmt.Errorf("%w: duplicate transition", ErrConfiguration)
	ErrDuplicateLevel        = fmt.Errorf("%w: duplicate level", ErrConfiguration)
	ErrDuplicateIO           = fmt.Errorf("%w: duplicate io name", ErrConfiguration)
	ErrActionsAlreadySet     = fmt.Errorf("%w: actions already set", ErrConfiguration)
	ErrLevelActionAlreadySet = fmt.Errorf("%w: level action already set", ErrConfiguration)
	ErrUnknownLevel          = fmt.Errorf("%w: level does not belong to this machine", ErrConfiguration)
	ErrUnknownIO             = fmt.Errorf("%w: unknown io id", ErrConfiguration)
	ErrNoLevels              = fmt.Errorf("%w: no levels", ErrConfiguration)
	ErrNoEntryLevel          = fmt.Errorf("%w: no entry level", ErrConfiguration)
	ErrNoOffLevel            = fmt.Errorf("%w: no off level", ErrConfiguration)
	ErrOffLevelUnreachable   = fmt.Errorf("%w: off level unreachable", ErrConfiguration)
	ErrInvalidRange          = fmt.Errorf("%w: invalid level range", ErrConfiguration)
	ErrFrozen                = fmt.Errorf("%w: topology is frozen", ErrConfiguration)
	ErrNilArgument           = fmt.Errorf("%w: nil argument", ErrConfiguration)
)

// Runtime errors. None of these change the current level.
var (
	ErrInvalidTransition   = errors.New("no transition for event from current level")
	ErrVisibilityViolation = errors.New("private event triggered from outside its level")
	ErrContextRevoked      = errors.New("safety context used outside its action")
	ErrNotOffLevel         = errors.New("only the off level may stop the executor")
	ErrNotValidated        = errors.New("machine not validated")
	ErrHalted              = errors.New("machine halted")
	ErrRequestQueueFull    = errors.New("request queue full")
	ErrNoIO                = errors.New("no io bound")
)
