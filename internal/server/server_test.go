package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/tourneykit/internal/auth"
	"github.com/lox/tourneykit/internal/protocol"
	"github.com/lox/tourneykit/internal/randutil"
	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	engine, err := tournament.New(tournament.Config{
		Tournaments: []tournament.Definition{
			{ID: "blitz", Name: "Blitz", Mode: sdk.ModeStandard, PlayersPerMatch: 2},
			{ID: "duel", Name: "Duel", Mode: sdk.ModeTurnBased, PlayersPerMatch: 2},
		},
		Seeds: randutil.Sequence(1),
	})
	require.NoError(t, err)

	srv := NewServer(engine, opts, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
		_ = engine.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	seq  int
}

func dial(t *testing.T, url string) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) request(messageType protocol.MessageType, data any) *protocol.Message {
	c.t.Helper()
	c.seq++
	msg, err := protocol.NewReply(fmt.Sprintf("req-%d", c.seq), messageType, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))

	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply protocol.Message
	require.NoError(c.t, c.conn.ReadJSON(&reply))
	require.Equal(c.t, msg.RequestID, reply.RequestID)
	return &reply
}

func (c *testClient) hello(name string) sdk.Player {
	c.t.Helper()
	reply := c.request(protocol.TypeHello, protocol.HelloData{
		GameID:      "game-1",
		Environment: "sandbox",
		PlayerName:  name,
	})
	require.Equal(c.t, protocol.TypeWelcome, reply.Type, "reply: %s", reply.Data)

	var welcome protocol.WelcomeData
	require.NoError(c.t, reply.Decode(&welcome))
	assert.Equal(c.t, sdk.Version, welcome.ServerVersion)
	return welcome.Player
}

func (c *testClient) join(data protocol.JoinData) sdk.Ticket {
	c.t.Helper()
	reply := c.request(protocol.TypeJoin, data)
	require.Equal(c.t, protocol.TypeTicket, reply.Type, "reply: %s", reply.Data)

	var ticket protocol.TicketData
	require.NoError(c.t, reply.Decode(&ticket))
	return ticket.Ticket
}

func requireError(t *testing.T, reply *protocol.Message, code string) {
	t.Helper()
	require.Equal(t, protocol.TypeError, reply.Type)
	var data protocol.ErrorData
	require.NoError(t, reply.Decode(&data))
	assert.Equal(t, code, data.Code, "message: %s", data.Message)
}

func TestServerHealth(t *testing.T) {
	srv, _ := newTestServer(t, Options{Environment: sdk.EnvironmentSandbox})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHelloRequiredFirst(t *testing.T) {
	_, url := newTestServer(t, Options{Environment: sdk.EnvironmentSandbox})
	client := dial(t, url)

	requireError(t, client.request(protocol.TypeListTournaments, nil), protocol.CodeNotAuthenticated)
}

func TestHelloChecks(t *testing.T) {
	tests := []struct {
		name  string
		hello protocol.HelloData
		code  string
	}{
		{name: "wrong game", hello: protocol.HelloData{GameID: "other", Environment: "sandbox", PlayerName: "a"}, code: protocol.CodeNotAuthenticated},
		{name: "wrong environment", hello: protocol.HelloData{GameID: "game-1", Environment: "production", PlayerName: "a"}, code: protocol.CodeNotAuthenticated},
		{name: "no name", hello: protocol.HelloData{GameID: "game-1", Environment: "sandbox"}, code: protocol.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := newTestServer(t, Options{GameID: "game-1", Environment: sdk.EnvironmentSandbox})
			client := dial(t, url)
			requireError(t, client.request(protocol.TypeHello, tt.hello), tt.code)
		})
	}
}

type fakeValidator map[string]*auth.Identity

func (f fakeValidator) Validate(ctx context.Context, gameID, token string) (*auth.Identity, error) {
	if token == "down" {
		return nil, fmt.Errorf("%w: connection refused", auth.ErrUnavailable)
	}
	identity, ok := f[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return identity, nil
}

func TestHelloAuth(t *testing.T) {
	validator := fakeValidator{
		"alice-token": {PlayerID: "ext-1", DisplayName: "Alice"},
		"anon-token":  {PlayerID: "ext-2"},
	}
	tests := []struct {
		name     string
		token    string
		failOpen bool
		wantName string
	}{
		{name: "verified name wins", token: "alice-token", wantName: "Alice"},
		{name: "identity without name", token: "anon-token", wantName: "requested"},
		{name: "invalid token", token: "bogus"},
		{name: "missing token", token: ""},
		{name: "unavailable fails closed", token: "down"},
		{name: "unavailable fails open", token: "down", failOpen: true, wantName: "requested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, url := newTestServer(t, Options{
				Environment:  sdk.EnvironmentSandbox,
				Auth:         validator,
				AuthFailOpen: tt.failOpen,
			})
			client := dial(t, url)
			reply := client.request(protocol.TypeHello, protocol.HelloData{
				GameID:      "game-1",
				Environment: "sandbox",
				PlayerName:  "requested",
				Token:       tt.token,
			})

			if tt.wantName == "" {
				requireError(t, reply, protocol.CodeNotAuthenticated)
				return
			}
			require.Equal(t, protocol.TypeWelcome, reply.Type, "reply: %s", reply.Data)
			var welcome protocol.WelcomeData
			require.NoError(t, reply.Decode(&welcome))
			assert.Equal(t, tt.wantName, welcome.Player.DisplayName)
		})
	}
}

func TestHelloVerifiedIdentity(t *testing.T) {
	srv, url := newTestServer(t, Options{
		Environment: sdk.EnvironmentSandbox,
		Auth: fakeValidator{
			"alice-token":   {PlayerID: "ext-alice", DisplayName: "Alice"},
			"mallory-token": {PlayerID: "ext-mallory"},
			"twin-token":    {PlayerID: "ext-twin", DisplayName: "Alice"},
		},
	})

	helloWith := func(c *testClient, token, name string) sdk.Player {
		t.Helper()
		reply := c.request(protocol.TypeHello, protocol.HelloData{
			GameID:      "game-1",
			Environment: "sandbox",
			PlayerName:  name,
			Token:       token,
		})
		require.Equal(t, protocol.TypeWelcome, reply.Type, "reply: %s", reply.Data)
		var welcome protocol.WelcomeData
		require.NoError(t, reply.Decode(&welcome))
		return welcome.Player
	}

	alice := dial(t, url)
	alicePlayer := helloWith(alice, "alice-token", "")
	ticket := alice.join(protocol.JoinData{TournamentID: "blitz"})

	mallory := dial(t, url)
	malloryPlayer := helloWith(mallory, "mallory-token", "alice")
	assert.NotEqual(t, alicePlayer.ID, malloryPlayer.ID)
	requireError(t, mallory.request(protocol.TypeSubmitResult, protocol.ScoreData{MatchID: ticket.MatchID, Score: 99}), protocol.CodeNotParticipant)

	twin := dial(t, url)
	twinPlayer := helloWith(twin, "twin-token", "")
	assert.Equal(t, "Alice", twinPlayer.DisplayName)
	assert.NotEqual(t, alicePlayer.ID, twinPlayer.ID)

	again := dial(t, url)
	assert.Equal(t, alicePlayer.ID, helloWith(again, "alice-token", "someone").ID)

	// a second hello cannot switch the connection to another player
	reply := mallory.request(protocol.TypeHello, protocol.HelloData{
		GameID:      "game-1",
		Environment: "sandbox",
		Token:       "alice-token",
	})
	requireError(t, reply, protocol.CodeBadRequest)

	standings, err := srv.engine.Standings(ticket.MatchID)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, alicePlayer.ID, standings[0].Player.ID)
}

func TestStandardMatchOverWebsocket(t *testing.T) {
	srv, url := newTestServer(t, Options{GameID: "game-1", Environment: sdk.EnvironmentSandbox})

	alice := dial(t, url)
	bob := dial(t, url)
	alicePlayer := alice.hello("alice")
	bob.hello("bob")

	reply := alice.request(protocol.TypeListTournaments, nil)
	require.Equal(t, protocol.TypeTournamentList, reply.Type)
	var list protocol.TournamentListData
	require.NoError(t, reply.Decode(&list))
	require.Len(t, list.Tournaments, 2)
	assert.Equal(t, "blitz", list.Tournaments[0].ID)

	aliceTicket := alice.join(protocol.JoinData{TournamentID: "blitz"})
	bobTicket := bob.join(protocol.JoinData{TournamentID: "blitz"})
	assert.Equal(t, aliceTicket.MatchID, bobTicket.MatchID)
	assert.Equal(t, aliceTicket.Seed, bobTicket.Seed)

	ack := alice.request(protocol.TypeScoreUpdate, protocol.ScoreData{MatchID: aliceTicket.MatchID, Score: 3, Position: 4})
	assert.Equal(t, protocol.TypeAck, ack.Type)
	resumed := alice.join(protocol.JoinData{MatchID: aliceTicket.MatchID})
	assert.Equal(t, uint64(4), resumed.Position)
	assert.Equal(t, aliceTicket.Seed, resumed.Seed)
	ack = alice.request(protocol.TypeSubmitResult, protocol.ScoreData{MatchID: aliceTicket.MatchID, Score: 9})
	assert.Equal(t, protocol.TypeAck, ack.Type)
	requireError(t, alice.request(protocol.TypeSubmitResult, protocol.ScoreData{MatchID: aliceTicket.MatchID, Score: 9}), protocol.CodeMatchClosed)

	ack = bob.request(protocol.TypeAbort, protocol.AbortData{MatchID: bobTicket.MatchID})
	assert.Equal(t, protocol.TypeAck, ack.Type)

	reply = alice.request(protocol.TypeListMatches, nil)
	var matches protocol.MatchListData
	require.NoError(t, reply.Decode(&matches))
	require.Len(t, matches.Matches, 1)
	assert.True(t, matches.Matches[0].Complete)

	standings, err := srv.engine.Standings(aliceTicket.MatchID)
	require.NoError(t, err)
	assert.Equal(t, alicePlayer.ID, standings[0].Player.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, srv.ConnectedPlayers())
}

func TestTurnBasedOverWebsocket(t *testing.T) {
	_, url := newTestServer(t, Options{Environment: sdk.EnvironmentSandbox})

	alice := dial(t, url)
	bob := dial(t, url)
	alice.hello("alice")
	bob.hello("bob")

	first := alice.join(protocol.JoinData{TournamentID: "duel"})
	ack := alice.request(protocol.TypeSubmitTurn, protocol.TurnData{
		MatchID: first.MatchID,
		Turn:    sdk.Turn{Score: 1, GameState: []byte("move-1")},
	})
	require.Equal(t, protocol.TypeAck, ack.Type)

	requireError(t, alice.request(protocol.TypeJoin, protocol.JoinData{MatchID: first.MatchID}), protocol.CodeNotYourTurn)

	second := bob.join(protocol.JoinData{TournamentID: "duel"})
	assert.Equal(t, first.MatchID, second.MatchID)
	assert.Equal(t, []byte("move-1"), second.GameState)

	reply := alice.request(protocol.TypeReview, protocol.ReviewData{MatchID: first.MatchID})
	require.Equal(t, protocol.TypeTicket, reply.Type)
	var review protocol.TicketData
	require.NoError(t, reply.Decode(&review))
	assert.True(t, review.Ticket.Review)

	requireError(t, bob.request(protocol.TypeJoin, protocol.JoinData{}), protocol.CodeBadRequest)
	requireError(t, bob.request(protocol.TypeJoin, protocol.JoinData{TournamentID: "nope"}), protocol.CodeUnknownTournament)
	requireError(t, bob.request("shuffle", nil), protocol.CodeBadRequest)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	engine, err := tournament.New(tournament.Config{})
	require.NoError(t, err)
	srv := NewServer(engine, Options{Environment: sdk.EnvironmentSandbox}, testLogger())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
