package lifecycle

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a plugin instance.
type State int

const (
	StateRegistered State = iota
	StateLoaded
	StateRunning
	StateFailed
)

// States lists every state in declaration order.
var States = []State{StateRegistered, StateLoaded, StateRunning, StateFailed}

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name so state-keyed maps encode readably.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrInstanceExists is returned by Add for an id that is already tracked.
	ErrInstanceExists = errors.New("instance already exists")
	// ErrUnknownInstance is returned for ids that are not tracked.
	ErrUnknownInstance = errors.New("unknown instance")
)

// TransitionError reports an operation attempted from a state that does not
// allow it.
type TransitionError struct {
	ID   string
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s '%s' while %s", ErrInvalidTransition, e.Op, e.ID, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
