package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lox/tourneykit/sdk"
)

const defaultRounds = 3

// diceGame is the demo game: every round rolls one die and the score is the
// total. In turn-based tournaments each turn is one roll.
type diceGame struct {
	session *sdk.Session
	out     io.Writer

	rounds  int
	players []sdk.Player
	turn    int
	state   []byte
}

// diceState is the turn-based game state, rolls keyed by player id
type diceState struct {
	Rolls map[string][]int `json:"rolls"`
}

func newDiceGame(session *sdk.Session, out io.Writer) *diceGame {
	return &diceGame{session: session, out: out}
}

func (g *diceGame) PreferredOrientation() sdk.Orientation { return sdk.OrientationLandscape }

func (g *diceGame) ShouldLaunchExternally() bool { return true }

func (g *diceGame) TournamentWillBegin(params sdk.GameParameters, match sdk.MatchInfo) {
	g.rounds = params.IntOr("rounds", defaultRounds)
	g.players = match.Players()
	g.turn = 0
	g.state = nil
}

func (g *diceGame) TurnBasedTournamentWillBegin(params sdk.GameParameters, match sdk.TurnBasedMatchInfo) {
	g.rounds = params.IntOr("rounds", defaultRounds)
	g.players = match.Players()
	g.turn = match.Turn()
	g.state = match.GameState()
}

func (g *diceGame) TurnBasedReviewWillBegin(params sdk.GameParameters, match sdk.TurnBasedMatchInfo) {
	g.TurnBasedTournamentWillBegin(params, match)
}

// play runs whatever the launch started and returns the score
func (g *diceGame) play(ctx context.Context, outcome sdk.Outcome) (float64, error) {
	switch outcome {
	case sdk.OutcomeTournament:
		return g.playStandard(ctx)
	case sdk.OutcomeTurnBased:
		return g.playTurn(ctx)
	case sdk.OutcomeReview:
		return g.review(ctx)
	default:
		return 0, nil
	}
}

func (g *diceGame) playStandard(ctx context.Context) (float64, error) {
	stream, err := g.session.Random()
	if err != nil {
		return 0, err
	}

	total := 0
	for round := 1; round <= g.rounds; round++ {
		roll, err := stream.IntRange(1, 7)
		if err != nil {
			return 0, err
		}
		total += roll
		fmt.Fprintf(g.out, "Round %d: rolled %d (total %d)\n", round, roll, total)
		if err := g.session.UpdateScore(float64(total)); err != nil {
			return 0, err
		}
	}

	if err := g.session.SubmitResult(ctx, float64(total)).Wait(ctx); err != nil {
		return 0, fmt.Errorf("submit result: %w", err)
	}
	return float64(total), nil
}

func (g *diceGame) playTurn(ctx context.Context) (float64, error) {
	state, err := decodeDiceState(g.state)
	if err != nil {
		return 0, err
	}
	stream, err := g.session.Random()
	if err != nil {
		return 0, err
	}
	me := g.session.Player()
	if me == nil {
		return 0, sdk.ErrNoTournament
	}

	roll, err := stream.IntRange(1, 7)
	if err != nil {
		return 0, err
	}
	state.Rolls[me.ID] = append(state.Rolls[me.ID], roll)
	total := sum(state.Rolls[me.ID])
	fmt.Fprintf(g.out, "Turn %d: rolled %d (total %d)\n", g.turn+1, roll, total)

	encoded, err := json.Marshal(state)
	if err != nil {
		return 0, err
	}
	turn := sdk.Turn{
		Score:     float64(total),
		GameState: encoded,
		MatchOver: g.turn+1 >= g.rounds*max(len(g.players), 2),
	}
	if err := g.session.CompleteTurn(ctx, turn).Wait(ctx); err != nil {
		return 0, fmt.Errorf("complete turn: %w", err)
	}
	return float64(total), nil
}

func (g *diceGame) review(ctx context.Context) (float64, error) {
	state, err := decodeDiceState(g.state)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(g.out, "Match finished after %d turns\n", g.turn)
	for _, p := range g.players {
		rolls := state.Rolls[p.ID]
		fmt.Fprintf(g.out, "  %-16s %v = %d\n", p.DisplayName, rolls, sum(rolls))
	}
	// leaving a review does not forfeit anything
	return 0, g.session.Abort(ctx).Wait(ctx)
}

func decodeDiceState(raw []byte) (diceState, error) {
	state := diceState{Rolls: map[string][]int{}}
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("decode game state: %w", err)
	}
	if state.Rolls == nil {
		state.Rolls = map[string][]int{}
	}
	return state, nil
}

func sum(rolls []int) int {
	total := 0
	for _, r := range rolls {
		total += r
	}
	return total
}
