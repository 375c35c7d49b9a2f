package sdk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every *StateError
	ErrInvalidState = errors.New("operation not permitted in current state")
	// ErrConflictingConfig is returned when Initialize is repeated with different parameters
	ErrConflictingConfig = errors.New("session already initialized with a different configuration")
	// ErrNoPlayHandler is returned when an observer handles neither standard nor turn-based play
	ErrNoPlayHandler = errors.New("observer must implement TournamentHandler or TurnBasedHandler")
	// ErrNoTournament is returned when match data is requested outside a match
	ErrNoTournament = errors.New("no tournament in progress")
	// ErrReadOnlyMatch is returned when a reviewed match is modified
	ErrReadOnlyMatch = errors.New("match is open read-only")
	// ErrUnsupportedMatch is returned when the backend offers a match the observer cannot play
	ErrUnsupportedMatch = errors.New("observer does not support this match type")
	// ErrPresentationFailed is returned when the presenter errors or times out
	ErrPresentationFailed = errors.New("presentation failed")
	// ErrExitNotAllowed is returned when the user exits a session configured without AllowExit
	ErrExitNotAllowed = errors.New("exit not allowed")
)

// StateError reports a lifecycle operation invoked from a state that does
// not permit it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not permitted while %s", e.Op, e.State)
}

// Is reports whether target is ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}
