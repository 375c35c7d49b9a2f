package sdk

import "context"

// Credentials identify the game and player to the backend.
type Credentials struct {
	GameID      string
	Environment Environment
	PlayerName  string
	Token       string
}

// JoinRequest asks the backend for a ticket. Exactly one of TournamentID
// (enter a new match) or MatchID (resume or review an existing one) is set.
type JoinRequest struct {
	TournamentID string `json:"tournamentId,omitempty"`
	MatchID      string `json:"matchId,omitempty"`
	Review       bool   `json:"review,omitempty"`
}

// Backend is the tournament service a session talks to. The websocket
// client in sdk/wsclient and the in-process engine in sdk/local both
// implement it.
type Backend interface {
	Connect(ctx context.Context, creds Credentials) (*Player, error)
	Tournaments(ctx context.Context) ([]Tournament, error)
	Matches(ctx context.Context) ([]MatchSummary, error)
	Join(ctx context.Context, req JoinRequest) (*Ticket, error)
	// ReportScore sends a live score along with the match stream's position,
	// which a later resume hands back in Ticket.Position.
	ReportScore(ctx context.Context, matchID string, score float64, position uint64) error
	SubmitResult(ctx context.Context, matchID string, score float64) error
	SubmitTurn(ctx context.Context, matchID string, turn Turn) error
	Abort(ctx context.Context, matchID string) error
	Close() error
}
