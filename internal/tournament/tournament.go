// Package tournament is the sandbox tournament engine: it seats players in
// matches, hands every participant of a match the same seed, collects
// scores and turns, and ranks finished matches.
package tournament

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lox/tourneykit/sdk"
)

var (
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrUnknownTournament = errors.New("unknown tournament")
	ErrUnknownMatch      = errors.New("unknown match")
	ErrNotParticipant    = errors.New("player is not in this match")
	ErrNotYourTurn       = errors.New("not this player's turn")
	ErrMatchClosed       = errors.New("match is closed to this player")
	ErrWrongMode         = errors.New("operation does not apply to this match mode")
)

// Definition configures one tournament.
type Definition struct {
	ID              string
	Name            string
	Description     string
	Mode            sdk.MatchMode
	PlayersPerMatch int
	// TurnTimeout forfeits a turn-based participant who does not take their
	// turn in time. Zero disables deadlines.
	TurnTimeout    time.Duration
	GameParameters sdk.GameParameters
}

// Validate checks a definition for obvious mistakes.
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("tournament id is required")
	}
	switch d.Mode {
	case sdk.ModeStandard:
		if d.PlayersPerMatch < 1 {
			return fmt.Errorf("tournament %s: players per match must be at least 1", d.ID)
		}
	case sdk.ModeTurnBased:
		if d.PlayersPerMatch < 2 {
			return fmt.Errorf("tournament %s: turn-based matches need at least 2 players", d.ID)
		}
	default:
		return fmt.Errorf("tournament %s: unknown mode %q", d.ID, d.Mode)
	}
	if d.TurnTimeout < 0 {
		return fmt.Errorf("tournament %s: turn timeout cannot be negative", d.ID)
	}
	return nil
}

// Tournament is the lobby view of the definition.
func (d Definition) Tournament() sdk.Tournament {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return sdk.Tournament{
		ID:              d.ID,
		Name:            name,
		Description:     d.Description,
		Mode:            d.Mode,
		PlayersPerMatch: d.PlayersPerMatch,
		GameParameters:  d.GameParameters.Clone(),
	}
}

// Entry is one participant's standing in a match.
type Entry struct {
	Score   float64 `json:"score"`
	Final   bool    `json:"final,omitempty"`
	Forfeit bool    `json:"forfeit,omitempty"`
	// Position is the last reported random stream position for the
	// entry's current play.
	Position uint64 `json:"position,omitempty"`
}

func (e *Entry) closed() bool {
	return e.Final || e.Forfeit
}

// Match is the persisted state of a match.
type Match struct {
	ID           string            `json:"id"`
	TournamentID string            `json:"tournamentId"`
	Mode         sdk.MatchMode     `json:"mode"`
	Seats        int               `json:"seats"`
	Seed         uint64            `json:"seed"`
	Created      time.Time         `json:"created"`
	Players      []sdk.Player      `json:"players"`
	Entries      map[string]*Entry `json:"entries"`
	Turn         int               `json:"turn,omitempty"`
	GameState    []byte            `json:"gameState,omitempty"`
	Deadline     time.Time         `json:"deadline,omitzero"`
	Complete     bool              `json:"complete,omitempty"`
}

func (m *Match) seatOf(playerID string) int {
	return slices.IndexFunc(m.Players, func(p sdk.Player) bool { return p.ID == playerID })
}

// currentSeat is the seat whose turn it is in a turn-based match.
func (m *Match) currentSeat() int {
	return m.Turn % m.Seats
}

// open reports whether a new player can be seated. A turn-based match is
// only open while it is waiting on the next empty seat.
func (m *Match) open() bool {
	if m.Complete || len(m.Players) >= m.Seats {
		return false
	}
	if m.Mode == sdk.ModeTurnBased {
		return m.currentSeat() == len(m.Players)
	}
	return true
}

func (m *Match) entry(playerID string) *Entry {
	e, ok := m.Entries[playerID]
	if !ok {
		e = &Entry{}
		m.Entries[playerID] = e
	}
	return e
}

func (m *Match) scores() []sdk.PlayerScore {
	scores := make([]sdk.PlayerScore, 0, len(m.Players))
	for _, p := range m.Players {
		e := m.entry(p.ID)
		scores = append(scores, sdk.PlayerScore{PlayerID: p.ID, Score: e.Score, Forfeit: e.Forfeit})
	}
	return scores
}

// settle marks a standard match complete once every seat has a result.
func (m *Match) settle() {
	if len(m.Players) < m.Seats {
		return
	}
	for _, p := range m.Players {
		if !m.entry(p.ID).closed() {
			return
		}
	}
	m.Complete = true
}

func (m *Match) clone() Match {
	c := *m
	c.Players = slices.Clone(m.Players)
	c.GameState = slices.Clone(m.GameState)
	c.Entries = make(map[string]*Entry, len(m.Entries))
	for id, e := range m.Entries {
		copied := *e
		c.Entries[id] = &copied
	}
	return c
}

// Standing is a participant's place in a match.
type Standing struct {
	Player  sdk.Player
	Score   float64
	Forfeit bool
	Rank    int
}

// Rank orders standings by score, highest first, with forfeits last.
// Equal scores share a rank and the next rank skips accordingly, so two
// players tied for first are followed by third. All forfeits share the
// last rank.
func Rank(standings []Standing) {
	slices.SortStableFunc(standings, func(a, b Standing) int {
		if a.Forfeit != b.Forfeit {
			if a.Forfeit {
				return 1
			}
			return -1
		}
		if a.Forfeit {
			return 0
		}
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range standings {
		prev := i - 1
		if prev >= 0 && standings[prev].Forfeit == standings[i].Forfeit &&
			(standings[i].Forfeit || standings[prev].Score == standings[i].Score) {
			standings[i].Rank = standings[prev].Rank
			continue
		}
		standings[i].Rank = i + 1
	}
}
