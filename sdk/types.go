package sdk

import (
	"slices"
	"time"
)

// Player identifies a participant.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Tournament describes an entry offered in the lobby.
type Tournament struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Mode            MatchMode      `json:"mode"`
	PlayersPerMatch int            `json:"playersPerMatch"`
	GameParameters  GameParameters `json:"gameParameters,omitempty"`
}

// MatchSummary is a match the current player already belongs to.
type MatchSummary struct {
	ID           string    `json:"id"`
	TournamentID string    `json:"tournamentId"`
	Name         string    `json:"name"`
	Mode         MatchMode `json:"mode"`
	Turn         int       `json:"turn"`
	YourTurn     bool      `json:"yourTurn"`
	Complete     bool      `json:"complete"`
}

// PlayerScore is one participant's score in a match.
type PlayerScore struct {
	PlayerID string  `json:"playerId"`
	Score    float64 `json:"score"`
	Forfeit  bool    `json:"forfeit,omitempty"`
}

// MatchInfo is the snapshot handed to the observer when a standard
// tournament begins. Accessors return copies so the snapshot cannot be
// changed after the fact.
type MatchInfo struct {
	id           string
	tournamentID string
	name         string
	seed         uint64
	players      []Player
	params       GameParameters
}

func (m MatchInfo) ID() string                     { return m.id }
func (m MatchInfo) TournamentID() string           { return m.tournamentID }
func (m MatchInfo) Name() string                   { return m.name }
func (m MatchInfo) Seed() uint64                   { return m.seed }
func (m MatchInfo) Players() []Player              { return slices.Clone(m.players) }
func (m MatchInfo) GameParameters() GameParameters { return m.params.Clone() }

// TurnBasedMatchInfo describes a turn-based match at the current turn.
type TurnBasedMatchInfo struct {
	MatchInfo
	turn     int
	readOnly bool
	state    []byte
	scores   []PlayerScore
	deadline time.Time
}

// Turn is the zero-based turn the player is about to take (or review).
func (m TurnBasedMatchInfo) Turn() int { return m.turn }

// ReadOnly reports whether the match is open for review only.
func (m TurnBasedMatchInfo) ReadOnly() bool { return m.readOnly }

// GameState is the opaque state saved by the previous turn, nil on turn zero.
func (m TurnBasedMatchInfo) GameState() []byte { return slices.Clone(m.state) }

// Scores returns each participant's latest score.
func (m TurnBasedMatchInfo) Scores() []PlayerScore { return slices.Clone(m.scores) }

// Deadline is when the current turn forfeits; zero means no deadline.
func (m TurnBasedMatchInfo) Deadline() time.Time { return m.deadline }

// Ticket is the backend's answer to a join: everything the client needs to
// start playing, including the shared seed.
type Ticket struct {
	MatchID        string         `json:"matchId"`
	TournamentID   string         `json:"tournamentId"`
	Name           string         `json:"name"`
	Mode           MatchMode      `json:"mode"`
	Review         bool           `json:"review,omitempty"`
	Seed           uint64         `json:"seed"`
	Position       uint64         `json:"position,omitempty"`
	Players        []Player       `json:"players"`
	GameParameters GameParameters `json:"gameParameters,omitempty"`
	Turn           int            `json:"turn,omitempty"`
	GameState      []byte         `json:"gameState,omitempty"`
	Scores         []PlayerScore  `json:"scores,omitempty"`
	Deadline       time.Time      `json:"deadline,omitzero"`
}

func (t *Ticket) matchInfo() MatchInfo {
	return MatchInfo{
		id:           t.MatchID,
		tournamentID: t.TournamentID,
		name:         t.Name,
		seed:         t.Seed,
		players:      slices.Clone(t.Players),
		params:       t.GameParameters.Clone(),
	}
}

func (t *Ticket) turnBasedInfo() TurnBasedMatchInfo {
	return TurnBasedMatchInfo{
		MatchInfo: t.matchInfo(),
		turn:      t.Turn,
		readOnly:  t.Review,
		state:     slices.Clone(t.GameState),
		scores:    slices.Clone(t.Scores),
		deadline:  t.Deadline,
	}
}

// Turn is the result of one turn in a turn-based match.
type Turn struct {
	Score     float64 `json:"score"`
	GameState []byte  `json:"gameState,omitempty"`
	MatchOver bool    `json:"matchOver,omitempty"`
}
