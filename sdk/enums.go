package sdk

import (
	"fmt"
	"strings"
)

// Environment selects the backend a session talks to. It is fixed when the
// session is initialized.
type Environment int

const (
	// EnvironmentProduction is the live tournament backend
	EnvironmentProduction Environment = iota
	// EnvironmentSandbox is the test backend
	EnvironmentSandbox
)

// String returns the string representation of an environment
func (e Environment) String() string {
	switch e {
	case EnvironmentProduction:
		return "production"
	case EnvironmentSandbox:
		return "sandbox"
	default:
		return "unknown"
	}
}

// ParseEnvironment converts a string to an Environment
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return EnvironmentProduction, nil
	case "sandbox", "":
		return EnvironmentSandbox, nil
	default:
		return EnvironmentSandbox, fmt.Errorf("unknown environment %q", s)
	}
}

// Orientation is the display orientation the tournament UI is locked to
// while it is presented.
type Orientation int

const (
	// OrientationPortrait locks the UI to portrait
	OrientationPortrait Orientation = iota
	// OrientationLandscape locks the UI to the game's landscape orientation
	OrientationLandscape
)

// String returns the string representation of an orientation
func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationLandscape:
		return "landscape"
	default:
		return "unknown"
	}
}

// State is a session lifecycle state.
//
// An external launch request has no state of its own: RequestExternalLaunch
// asks the observer's gate while the session stays Initialized, and only an
// accepted request moves on to Launching.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateLaunching
	StateInTournament
	StateCompleting
)

// String returns the string representation of a state
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateLaunching:
		return "launching"
	case StateInTournament:
		return "in-tournament"
	case StateCompleting:
		return "completing"
	default:
		return "unknown"
	}
}

// MatchMode distinguishes simultaneous-score tournaments from turn-based ones
type MatchMode string

const (
	ModeStandard  MatchMode = "standard"
	ModeTurnBased MatchMode = "turn_based"
)

// Outcome reports how a launch ended
type Outcome int

const (
	// OutcomeNone is returned alongside errors
	OutcomeNone Outcome = iota
	// OutcomeTournament means a standard tournament began
	OutcomeTournament
	// OutcomeTurnBased means a turn-based match began or resumed
	OutcomeTurnBased
	// OutcomeReview means a turn-based match opened read-only
	OutcomeReview
	// OutcomeExited means the user left without starting a tournament
	OutcomeExited
	// OutcomeDeclined means the observer refused an external launch
	OutcomeDeclined
)

// String returns the string representation of an outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeTournament:
		return "tournament"
	case OutcomeTurnBased:
		return "turn-based"
	case OutcomeReview:
		return "review"
	case OutcomeExited:
		return "exited"
	case OutcomeDeclined:
		return "declined"
	default:
		return "unknown"
	}
}
