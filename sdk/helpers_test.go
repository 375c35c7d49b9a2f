package sdk

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
)

// fakeBackend records calls and serves one ticket per Join.
type fakeBackend struct {
	mu          sync.Mutex
	tournaments []Tournament
	ticket      Ticket
	joinErr     error
	submitErr   error
	connects    int
	joins       []JoinRequest
	scores      []float64
	positions   []uint64
	submitted   []float64
	turns       []Turn
	aborts      []string
	closed      bool
	scoreSeen   chan float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tournaments: []Tournament{
			{ID: "t-std", Name: "Head to Head", Mode: ModeStandard, PlayersPerMatch: 2},
			{ID: "t-turn", Name: "Turn Duel", Mode: ModeTurnBased, PlayersPerMatch: 2},
		},
		ticket: Ticket{
			MatchID:        "m-1",
			TournamentID:   "t-std",
			Name:           "Head to Head",
			Mode:           ModeStandard,
			Seed:           42,
			Players:        []Player{{ID: "p-1", DisplayName: "alice"}},
			GameParameters: GameParameters{"rounds": float64(3)},
		},
		scoreSeen: make(chan float64, 64),
	}
}

func (b *fakeBackend) Connect(ctx context.Context, creds Credentials) (*Player, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	return &Player{ID: "p-1", DisplayName: creds.PlayerName}, nil
}

func (b *fakeBackend) Tournaments(ctx context.Context) ([]Tournament, error) {
	return b.tournaments, nil
}

func (b *fakeBackend) Matches(ctx context.Context) ([]MatchSummary, error) {
	return nil, nil
}

func (b *fakeBackend) Join(ctx context.Context, req JoinRequest) (*Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joins = append(b.joins, req)
	if b.joinErr != nil {
		return nil, b.joinErr
	}
	t := b.ticket
	return &t, nil
}

func (b *fakeBackend) ReportScore(ctx context.Context, matchID string, score float64, position uint64) error {
	b.mu.Lock()
	b.scores = append(b.scores, score)
	b.positions = append(b.positions, position)
	b.mu.Unlock()
	select {
	case b.scoreSeen <- score:
	default:
	}
	return nil
}

func (b *fakeBackend) SubmitResult(ctx context.Context, matchID string, score float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, score)
	return b.submitErr
}

func (b *fakeBackend) SubmitTurn(ctx context.Context, matchID string, turn Turn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turn)
	return b.submitErr
}

func (b *fakeBackend) Abort(ctx context.Context, matchID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborts = append(b.aborts, matchID)
	return nil
}

func (b *fakeBackend) lastScore() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.scores) == 0 {
		return 0, false
	}
	return b.scores[len(b.scores)-1], true
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// scriptedPresenter returns a fixed selection and can block until its
// context is cancelled.
type scriptedPresenter struct {
	selection Selection
	err       error
	block     bool
	entered   chan struct{}
	lobbies   []Lobby
	results   []Result
	mu        sync.Mutex
}

func (p *scriptedPresenter) PresentLobby(ctx context.Context, lobby Lobby) (Selection, error) {
	p.mu.Lock()
	p.lobbies = append(p.lobbies, lobby)
	p.mu.Unlock()
	if p.entered != nil {
		close(p.entered)
	}
	if p.block {
		<-ctx.Done()
		return Selection{}, ctx.Err()
	}
	return p.selection, p.err
}

func (p *scriptedPresenter) PresentResult(ctx context.Context, result Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	return nil
}

// recordingObserver implements every capability and logs the calls it gets.
type recordingObserver struct {
	mu          sync.Mutex
	calls       []string
	allowExtern bool
	matches     []MatchInfo
	turns       []TurnBasedMatchInfo
	params      []GameParameters
	onBegin     func()
	onGate      func()
}

func (o *recordingObserver) record(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *recordingObserver) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func (o *recordingObserver) PreferredOrientation() Orientation { return OrientationLandscape }
func (o *recordingObserver) WillLaunch()                       { o.record("will-launch") }
func (o *recordingObserver) HasFinishedLaunching()             { o.record("finished-launching") }
func (o *recordingObserver) WillExit()                         { o.record("will-exit") }

func (o *recordingObserver) ShouldLaunchExternally() bool {
	o.record("gate")
	if o.onGate != nil {
		o.onGate()
	}
	return o.allowExtern
}

func (o *recordingObserver) TournamentWillBegin(params GameParameters, match MatchInfo) {
	o.record("tournament")
	o.mu.Lock()
	o.params = append(o.params, params)
	o.matches = append(o.matches, match)
	o.mu.Unlock()
	if o.onBegin != nil {
		o.onBegin()
	}
}

func (o *recordingObserver) TurnBasedTournamentWillBegin(params GameParameters, match TurnBasedMatchInfo) {
	o.record("turn-based")
	o.mu.Lock()
	o.turns = append(o.turns, match)
	o.mu.Unlock()
}

func (o *recordingObserver) TurnBasedReviewWillBegin(params GameParameters, match TurnBasedMatchInfo) {
	o.record("review")
	o.mu.Lock()
	o.turns = append(o.turns, match)
	o.mu.Unlock()
}

// standardOnly has no optional hooks at all.
type standardOnly struct{}

func (standardOnly) PreferredOrientation() Orientation             { return OrientationPortrait }
func (standardOnly) TournamentWillBegin(GameParameters, MatchInfo) {}

// orientationOnly is not a valid observer.
type orientationOnly struct{}

func (orientationOnly) PreferredOrientation() Orientation { return OrientationPortrait }

var testConfig = Config{GameID: "game-1", Environment: EnvironmentSandbox, AllowExit: true, PlayerName: "alice"}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func newTestSession(t *testing.T, backend Backend, presenter Presenter, opts ...Option) (*Session, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	opts = append([]Option{WithLogger(quietLogger()), WithClock(clock)}, opts...)
	return NewSession(backend, presenter, opts...), clock
}

func initializedSession(t *testing.T, backend Backend, presenter Presenter, obs Observer) *Session {
	t.Helper()
	s, _ := newTestSession(t, backend, presenter)
	require.NoError(t, s.Initialize(context.Background(), testConfig, obs))
	return s
}

func waitCompletion(t *testing.T, c *Completion) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Wait(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "completion never resolved")
	return err
}
