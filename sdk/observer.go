package sdk

import "reflect"

// Observer is the base capability every game registers with a session. The
// orientation is queried each time the tournament UI is displayed.
//
// An observer must also implement TournamentHandler, TurnBasedHandler or
// both. The remaining interfaces in this file are optional hooks; the
// session discovers them once, in Initialize.
type Observer interface {
	PreferredOrientation() Orientation
}

// LaunchObserver is notified before the tournament UI is shown. Use it to
// pause or tear down whatever the game is displaying.
type LaunchObserver interface {
	WillLaunch()
}

// LaunchFinishedObserver is notified once the tournament UI is dismissed.
type LaunchFinishedObserver interface {
	HasFinishedLaunching()
}

// ExitObserver is notified when the user leaves the tournament UI without
// starting a match. It is not called when a tournament begins.
type ExitObserver interface {
	WillExit()
}

// ExternalLaunchGate decides whether an external source (a link, a push
// notification) may open the tournament UI right now. Return false while the
// player is mid-game. Observers without a gate never launch externally.
type ExternalLaunchGate interface {
	ShouldLaunchExternally() bool
}

// TournamentHandler builds a new game for a standard tournament.
type TournamentHandler interface {
	TournamentWillBegin(params GameParameters, match MatchInfo)
}

// TurnBasedHandler builds or resumes a turn-based match.
type TurnBasedHandler interface {
	TurnBasedTournamentWillBegin(params GameParameters, match TurnBasedMatchInfo)
}

// TurnBasedReviewer shows a turn-based match without letting the player
// move. It is optional even for turn-based games.
type TurnBasedReviewer interface {
	TurnBasedReviewWillBegin(params GameParameters, match TurnBasedMatchInfo)
}

// capabilities is the observer split into what it actually implements.
type capabilities struct {
	observer  Observer
	launch    LaunchObserver
	finished  LaunchFinishedObserver
	exit      ExitObserver
	gate      ExternalLaunchGate
	standard  TournamentHandler
	turnBased TurnBasedHandler
	reviewer  TurnBasedReviewer
}

func resolveCapabilities(o Observer) (capabilities, error) {
	c := capabilities{observer: o}
	c.launch, _ = o.(LaunchObserver)
	c.finished, _ = o.(LaunchFinishedObserver)
	c.exit, _ = o.(ExitObserver)
	c.gate, _ = o.(ExternalLaunchGate)
	c.standard, _ = o.(TournamentHandler)
	c.turnBased, _ = o.(TurnBasedHandler)
	c.reviewer, _ = o.(TurnBasedReviewer)

	if c.standard == nil && c.turnBased == nil {
		return capabilities{}, ErrNoPlayHandler
	}
	return c, nil
}

func (c capabilities) supports(t *Ticket) bool {
	switch {
	case t.Review:
		return c.reviewer != nil
	case t.Mode == ModeTurnBased:
		return c.turnBased != nil
	default:
		return c.standard != nil
	}
}

func (c capabilities) willLaunch() {
	if c.launch != nil {
		c.launch.WillLaunch()
	}
}

func (c capabilities) hasFinishedLaunching() {
	if c.finished != nil {
		c.finished.HasFinishedLaunching()
	}
}

func (c capabilities) willExit() {
	if c.exit != nil {
		c.exit.WillExit()
	}
}

func (c capabilities) shouldLaunchExternally() bool {
	return c.gate != nil && c.gate.ShouldLaunchExternally()
}

// sameObserver compares observers without panicking on uncomparable
// dynamic types.
func sameObserver(a, b Observer) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
