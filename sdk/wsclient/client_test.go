package wsclient

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/tourneykit/internal/randutil"
	"github.com/lox/tourneykit/internal/server"
	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func startServer(t *testing.T) string {
	t.Helper()
	engine, err := tournament.New(tournament.Config{
		Tournaments: []tournament.Definition{
			{ID: "blitz", Name: "Blitz", Mode: sdk.ModeStandard, PlayersPerMatch: 2, GameParameters: sdk.GameParameters{"rounds": 3}},
			{ID: "duel", Name: "Duel", Mode: sdk.ModeTurnBased, PlayersPerMatch: 2},
		},
		Seeds: randutil.Sequence(5),
	})
	require.NoError(t, err)

	srv := server.NewServer(engine, server.Options{GameID: "dice", Environment: sdk.EnvironmentSandbox}, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
		_ = engine.Close()
	})
	return ts.URL
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		env     sdk.Environment
		want    string
		wantErr error
	}{
		{name: "sandbox default", env: sdk.EnvironmentSandbox, want: SandboxURL},
		{name: "production needs url", env: sdk.EnvironmentProduction, wantErr: ErrNoServerURL},
		{name: "http becomes ws", url: "http://example.com:9000", env: sdk.EnvironmentSandbox, want: "ws://example.com:9000/ws"},
		{name: "https becomes wss", url: "https://example.com/socket", env: sdk.EnvironmentProduction, want: "wss://example.com/socket"},
		{name: "ws kept", url: "ws://localhost:1234/ws", env: sdk.EnvironmentSandbox, want: "ws://localhost:1234/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.url, tt.env)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveURL("ftp://example.com", sdk.EnvironmentSandbox)
	require.Error(t, err)
}

func TestClientRequests(t *testing.T) {
	url := startServer(t)
	ctx := testContext(t)

	alice := New(WithServerURL(url), WithLogger(quietLogger()))
	_, err := alice.Tournaments(ctx)
	require.ErrorIs(t, err, ErrNotConnected)

	player, err := alice.Connect(ctx, sdk.Credentials{GameID: "dice", Environment: sdk.EnvironmentSandbox, PlayerName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", player.DisplayName)
	t.Cleanup(func() { _ = alice.Close() })

	tournaments, err := alice.Tournaments(ctx)
	require.NoError(t, err)
	require.Len(t, tournaments, 2)
	rounds, ok := tournaments[0].GameParameters.Int("rounds")
	require.True(t, ok)
	assert.Equal(t, 3, rounds)

	ticket, err := alice.Join(ctx, sdk.JoinRequest{TournamentID: "duel"})
	require.NoError(t, err)
	assert.Equal(t, sdk.ModeTurnBased, ticket.Mode)

	require.NoError(t, alice.ReportScore(ctx, ticket.MatchID, 2, 0))
	require.NoError(t, alice.SubmitTurn(ctx, ticket.MatchID, sdk.Turn{Score: 2, GameState: []byte("x")}))

	err = alice.SubmitTurn(ctx, ticket.MatchID, sdk.Turn{Score: 3})
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr), "got %v", err)
	assert.Equal(t, "not_your_turn", serverErr.Code)

	review, err := alice.Join(ctx, sdk.JoinRequest{MatchID: ticket.MatchID, Review: true})
	require.NoError(t, err)
	assert.True(t, review.Review)
	assert.Equal(t, []byte("x"), review.GameState)

	matches, err := alice.Matches(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].YourTurn)

	require.NoError(t, alice.Abort(ctx, ticket.MatchID))
}

func TestConnectRejected(t *testing.T) {
	url := startServer(t)
	ctx := testContext(t)

	client := New(WithServerURL(url))
	_, err := client.Connect(ctx, sdk.Credentials{GameID: "chess", Environment: sdk.EnvironmentSandbox, PlayerName: "eve"})
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr), "got %v", err)
	assert.Equal(t, "not_authenticated", serverErr.Code)

	_, err = client.Tournaments(ctx)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectAfterClose(t *testing.T) {
	url := startServer(t)
	ctx := testContext(t)

	client := New(WithServerURL(strings.Replace(url, "http://", "ws://", 1) + "/ws"))
	creds := sdk.Credentials{GameID: "dice", Environment: sdk.EnvironmentSandbox, PlayerName: "bob"}

	first, err := client.Connect(ctx, creds)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	second, err := client.Connect(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	require.NoError(t, client.Close())
}

// drawingObserver records the first draws of every match it plays.
type drawingObserver struct {
	session *sdk.Session
	draws   []int
	floats  []float64
	info    sdk.MatchInfo
}

func (o *drawingObserver) PreferredOrientation() sdk.Orientation { return sdk.OrientationLandscape }

func (o *drawingObserver) TournamentWillBegin(params sdk.GameParameters, info sdk.MatchInfo) {
	o.info = info
	stream, err := o.session.Random()
	if err != nil {
		return
	}
	for i := 0; i < 8; i++ {
		o.draws = append(o.draws, stream.Int())
		o.floats = append(o.floats, stream.Float())
	}
}

func TestSessionsShareDraws(t *testing.T) {
	url := startServer(t)
	ctx := testContext(t)

	play := func(name string, score float64) *drawingObserver {
		session := sdk.NewSession(New(WithServerURL(url)), sdk.HeadlessPresenter{Tournament: "Blitz"})
		obs := &drawingObserver{session: session}
		require.NoError(t, session.Initialize(ctx, sdk.Config{
			GameID:      "dice",
			Environment: sdk.EnvironmentSandbox,
			PlayerName:  name,
		}, obs))

		outcome, err := session.Launch(ctx)
		require.NoError(t, err)
		require.Equal(t, sdk.OutcomeTournament, outcome)
		require.NoError(t, session.UpdateScore(score/2))
		require.NoError(t, session.SubmitResult(ctx, score).Wait(ctx))
		assert.Equal(t, sdk.StateInitialized, session.State())
		require.NoError(t, session.Close())
		return obs
	}

	alice := play("alice", 10)
	bob := play("bob", 7)

	assert.Equal(t, alice.info.ID(), bob.info.ID())
	assert.Equal(t, alice.info.Seed(), bob.info.Seed())
	assert.Equal(t, alice.draws, bob.draws)
	assert.Equal(t, alice.floats, bob.floats)
	assert.Len(t, bob.info.Players(), 2)
}
