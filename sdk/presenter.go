package sdk

import (
	"context"
	"errors"
)

// Lobby is what the presenter shows when the tournament UI launches.
type Lobby struct {
	Player      *Player
	Tournaments []Tournament
	Matches     []MatchSummary
	// Orientation is the layout the UI is locked to while presented.
	Orientation Orientation
	AllowExit   bool
	// BackgroundMusic reports that the game plays its own music, so the
	// presenter should keep its own audio off. HeadlessPresenter has none.
	BackgroundMusic bool
}

// Selection is the user's choice in the lobby.
type Selection struct {
	TournamentID string
	MatchID      string
	Review       bool
	Exit         bool
}

// Result is shown after a match is submitted or abandoned.
type Result struct {
	MatchID     string
	Score       float64
	Forfeit     bool
	Turn        bool
	Orientation Orientation
	Err         error
}

// Presenter displays the tournament UI. Both methods must return promptly
// once ctx is done; the session cancels ctx when a presentation times out.
type Presenter interface {
	PresentLobby(ctx context.Context, lobby Lobby) (Selection, error)
	PresentResult(ctx context.Context, result Result) error
}

// ErrNoTournaments is returned by HeadlessPresenter when the lobby is empty.
var ErrNoTournaments = errors.New("no tournaments available")

// HeadlessPresenter makes lobby choices without any UI. Bots, servers and
// tests use it.
type HeadlessPresenter struct {
	// Tournament is an ID or name to enter; empty picks the first one.
	Tournament string
	// ResumeTurns prefers a turn-based match where it is the player's turn.
	ResumeTurns bool
	// Exit leaves the lobby instead of choosing a tournament.
	Exit bool
}

// PresentLobby picks a tournament.
func (h HeadlessPresenter) PresentLobby(ctx context.Context, lobby Lobby) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}
	if h.Exit {
		return Selection{Exit: true}, nil
	}
	if h.ResumeTurns {
		for _, m := range lobby.Matches {
			if m.YourTurn && !m.Complete {
				return Selection{MatchID: m.ID}, nil
			}
		}
	}
	for _, t := range lobby.Tournaments {
		if h.Tournament == "" || t.ID == h.Tournament || t.Name == h.Tournament {
			return Selection{TournamentID: t.ID}, nil
		}
	}
	return Selection{}, ErrNoTournaments
}

// PresentResult does nothing.
func (h HeadlessPresenter) PresentResult(ctx context.Context, result Result) error {
	return ctx.Err()
}
