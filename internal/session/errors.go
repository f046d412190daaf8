package session

import (
	"errors"
	"fmt"

	"github.com/stackpot/session-engine/internal/model"
)

var (
	// ErrInvalidTransition is the root of all state-machine rejections.
	// Concrete rejections are *StateError values wrapping this sentinel.
	ErrInvalidTransition = errors.New("session: invalid transition")

	// ErrNoCurrentSession is returned when a lifecycle command arrives for
	// a user with no session in the current slot.
	ErrNoCurrentSession = errors.New("session: no current session")

	// ErrParkedNotFound is returned when a parked-session key is unknown
	// or belongs to a different user.
	ErrParkedNotFound = errors.New("session: parked session not found")
)

// StateError describes a command that is invalid for the session's current
// phase. The command performs no mutation.
type StateError struct {
	Command string
	Phase   model.Phase
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session: cannot %s while %s", e.Command, e.Phase)
}

func (e *StateError) Unwrap() error { return ErrInvalidTransition }

func stateErr(command string, phase model.Phase) error {
	return &StateError{Command: command, Phase: phase}
}
