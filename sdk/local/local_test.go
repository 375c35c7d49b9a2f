package local

import (
	"context"
	"testing"
	"time"

	"github.com/lox/tourneykit/sdk"
	"github.com/lox/tourneykit/sdk/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestBackendRequiresConnect(t *testing.T) {
	engine, err := NewEngine(Definition{ID: "solo", Mode: sdk.ModeStandard, PlayersPerMatch: 1})
	require.NoError(t, err)

	b := New(engine)
	_, err = b.Tournaments(testContext(t))
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = b.Connect(testContext(t), sdk.Credentials{PlayerName: "solo"})
	require.NoError(t, err)
	tournaments, err := b.Tournaments(testContext(t))
	require.NoError(t, err)
	require.Len(t, tournaments, 1)

	require.NoError(t, b.Close())
	_, err = b.Matches(testContext(t))
	require.ErrorIs(t, err, ErrNotConnected)
}

// turnTaker plays one turn of a turn-based match, appending its name to
// the shared game state.
type turnTaker struct {
	name    string
	session *sdk.Session
	seed    uint64
	state   []byte
	turn    int
	review  bool
}

func (o *turnTaker) PreferredOrientation() sdk.Orientation { return sdk.OrientationPortrait }

func (o *turnTaker) TurnBasedTournamentWillBegin(params sdk.GameParameters, info sdk.TurnBasedMatchInfo) {
	o.seed = info.Seed()
	o.state = info.GameState()
	o.turn = info.Turn()
}

func (o *turnTaker) TurnBasedReviewWillBegin(params sdk.GameParameters, info sdk.TurnBasedMatchInfo) {
	o.review = true
	o.state = info.GameState()
	o.turn = info.Turn()
}

func TestTurnBasedSessionsAlternate(t *testing.T) {
	ctx := testContext(t)
	engine, err := NewEngine(Definition{ID: "letters", Name: "Letters", Mode: sdk.ModeTurnBased, PlayersPerMatch: 2})
	require.NoError(t, err)

	newPlayer := func(name string, presenter sdk.Presenter) *turnTaker {
		session := sdk.NewSession(New(engine), presenter)
		obs := &turnTaker{name: name, session: session}
		require.NoError(t, session.Initialize(ctx, sdk.Config{GameID: "letters", PlayerName: name}, obs))
		return obs
	}
	alice := newPlayer("alice", sdk.HeadlessPresenter{ResumeTurns: true})
	bob := newPlayer("bob", sdk.HeadlessPresenter{ResumeTurns: true})

	takeTurn := func(p *turnTaker, over bool) {
		outcome, err := p.session.Launch(ctx)
		require.NoError(t, err)
		require.Equal(t, sdk.OutcomeTurnBased, outcome)

		stream, err := p.session.Random()
		require.NoError(t, err)
		assert.Equal(t, p.seed, stream.Seed())

		state := append(p.state, []byte(p.name+";")...)
		require.NoError(t, p.session.CompleteTurn(ctx, sdk.Turn{Score: float64(len(state)), GameState: state, MatchOver: over}).Wait(ctx))
	}

	takeTurn(alice, false)
	assert.Equal(t, 0, alice.turn)
	takeTurn(bob, false)
	assert.Equal(t, 1, bob.turn)
	assert.Equal(t, "alice;", string(bob.state))
	takeTurn(alice, true)
	assert.Equal(t, 2, alice.turn)
	assert.Equal(t, "alice;bob;", string(alice.state))

	matches, err := New(engine).Matches(ctx)
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, matches)

	// Bob looks back at the finished match.
	summaries := engine.Matches(bob.session.Player().ID)
	require.Len(t, summaries, 1)
	require.True(t, summaries[0].Complete)

	reviewer := sdk.NewSession(New(engine), &reviewPresenter{matchID: summaries[0].ID})
	obs := &turnTaker{name: "bob"}
	obs.session = reviewer
	require.NoError(t, reviewer.Initialize(ctx, sdk.Config{GameID: "letters", PlayerName: "bob"}, obs))

	outcome, err := reviewer.Launch(ctx)
	require.NoError(t, err)
	require.Equal(t, sdk.OutcomeReview, outcome)
	assert.True(t, obs.review)
	assert.True(t, reviewer.ReadOnly())
	assert.Equal(t, "alice;bob;alice;", string(obs.state))
	require.ErrorIs(t, reviewer.CompleteTurn(ctx, sdk.Turn{}).Wait(ctx), sdk.ErrReadOnlyMatch)
	require.NoError(t, reviewer.Abort(ctx).Wait(ctx))
	assert.Equal(t, sdk.StateInitialized, reviewer.State())
}

type reviewPresenter struct {
	matchID string
}

func (p *reviewPresenter) PresentLobby(ctx context.Context, lobby sdk.Lobby) (sdk.Selection, error) {
	return sdk.Selection{MatchID: p.matchID, Review: true}, nil
}

func (p *reviewPresenter) PresentResult(ctx context.Context, result sdk.Result) error {
	return nil
}

func TestStandardDrawsMatchAcrossSessions(t *testing.T) {
	ctx := testContext(t)
	engine, err := NewEngine(Definition{ID: "dice", Mode: sdk.ModeStandard, PlayersPerMatch: 3})
	require.NoError(t, err)

	var rolls [][]int
	for _, name := range []string{"ann", "ben", "cat"} {
		session := sdk.NewSession(New(engine), nil)
		obs := &roller{session: session}
		require.NoError(t, session.Initialize(ctx, sdk.Config{GameID: "dice", PlayerName: name}, obs))

		_, err := session.Launch(ctx)
		require.NoError(t, err)
		require.NoError(t, session.SubmitResult(ctx, float64(sum(obs.rolls))).Wait(ctx))
		rolls = append(rolls, obs.rolls)

		require.Equal(t, obs.rolls, replay(obs.seed, len(obs.rolls)))
	}

	assert.Equal(t, rolls[0], rolls[1])
	assert.Equal(t, rolls[1], rolls[2])
}

type roller struct {
	session *sdk.Session
	seed    uint64
	rolls   []int
}

func (r *roller) PreferredOrientation() sdk.Orientation { return sdk.OrientationLandscape }

func (r *roller) TournamentWillBegin(params sdk.GameParameters, info sdk.MatchInfo) {
	r.seed = info.Seed()
	stream, err := r.session.Random()
	if err != nil {
		return
	}
	for i := 0; i < 20; i++ {
		roll, err := stream.IntRange(1, 7)
		if err != nil {
			return
		}
		r.rolls = append(r.rolls, roll)
	}
}

func replay(seed uint64, n int) []int {
	stream := random.New(seed)
	out := make([]int, n)
	for i := range out {
		out[i], _ = stream.IntRange(1, 7)
	}
	return out
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
