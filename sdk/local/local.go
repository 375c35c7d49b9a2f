// Package local runs sessions against an in-process sandbox engine, for
// offline development and tests.
package local

import (
	"context"
	"errors"
	"sync"

	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
)

// ErrNotConnected is returned by calls made before Connect or after Close
var ErrNotConnected = errors.New("not connected")

// Engine is the sandbox engine shared by local backends.
type Engine = tournament.Engine

// Definition configures a tournament on a local engine.
type Definition = tournament.Definition

// NewEngine creates an in-memory engine offering the given tournaments.
func NewEngine(defs ...Definition) (*Engine, error) {
	return tournament.New(tournament.Config{Tournaments: defs})
}

// Backend is one player's connection to a local engine. Several backends
// may share an engine to play against each other.
type Backend struct {
	engine *Engine

	mu     sync.Mutex
	player *sdk.Player
}

var _ sdk.Backend = (*Backend)(nil)

// New returns a backend over engine.
func New(engine *Engine) *Backend {
	return &Backend{engine: engine}
}

func (b *Backend) Connect(ctx context.Context, creds sdk.Credentials) (*sdk.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	player, err := b.engine.Register(creds.PlayerName)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.player = &player
	return &player, nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.player = nil
	return nil
}

func (b *Backend) playerID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.player == nil {
		return "", ErrNotConnected
	}
	return b.player.ID, nil
}

func (b *Backend) Tournaments(ctx context.Context) ([]sdk.Tournament, error) {
	if _, err := b.playerID(ctx); err != nil {
		return nil, err
	}
	return b.engine.Tournaments(), nil
}

func (b *Backend) Matches(ctx context.Context) ([]sdk.MatchSummary, error) {
	id, err := b.playerID(ctx)
	if err != nil {
		return nil, err
	}
	return b.engine.Matches(id), nil
}

func (b *Backend) Join(ctx context.Context, req sdk.JoinRequest) (*sdk.Ticket, error) {
	id, err := b.playerID(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case req.Review:
		return b.engine.Review(id, req.MatchID)
	case req.MatchID != "":
		return b.engine.Resume(id, req.MatchID)
	default:
		return b.engine.Join(id, req.TournamentID)
	}
}

func (b *Backend) ReportScore(ctx context.Context, matchID string, score float64, position uint64) error {
	id, err := b.playerID(ctx)
	if err != nil {
		return err
	}
	return b.engine.ReportScore(id, matchID, score, position)
}

func (b *Backend) SubmitResult(ctx context.Context, matchID string, score float64) error {
	id, err := b.playerID(ctx)
	if err != nil {
		return err
	}
	return b.engine.Submit(id, matchID, score)
}

func (b *Backend) SubmitTurn(ctx context.Context, matchID string, turn sdk.Turn) error {
	id, err := b.playerID(ctx)
	if err != nil {
		return err
	}
	return b.engine.SubmitTurn(id, matchID, turn)
}

func (b *Backend) Abort(ctx context.Context, matchID string) error {
	id, err := b.playerID(ctx)
	if err != nil {
		return err
	}
	return b.engine.Forfeit(id, matchID)
}
