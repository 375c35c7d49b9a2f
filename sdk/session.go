package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/tourneykit/sdk/random"
)

const (
	// DefaultPresentationTimeout bounds how long a lobby or result screen may stay up
	DefaultPresentationTimeout = 5 * time.Minute
	// DefaultOperationTimeout bounds each backend call
	DefaultOperationTimeout = 15 * time.Second
)

var (
	errPresentationTimeout = errors.New("presentation timed out")
	errOperationTimeout    = errors.New("backend operation timed out")
)

// Config is fixed when a session is initialized.
type Config struct {
	GameID      string
	Environment Environment
	AllowExit   bool
	PlayerName  string
	// Token is passed to servers that verify player identity.
	Token string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger.WithPrefix("session")
	}
}

// WithClock replaces the clock used for timeouts.
func WithClock(clock quartz.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithDebug makes lifecycle misuse panic instead of being logged and ignored.
func WithDebug(debug bool) Option {
	return func(s *Session) {
		s.debug = debug
	}
}

// WithPresentationTimeout overrides DefaultPresentationTimeout.
func WithPresentationTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.presentTimeout = d
	}
}

// WithOperationTimeout overrides DefaultOperationTimeout.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.opTimeout = d
	}
}

// Session owns a game's connection to the tournament backend and drives the
// tournament lifecycle. Create one per process with NewSession and pass it to
// whatever needs it.
type Session struct {
	backend        Backend
	presenter      Presenter
	logger         *log.Logger
	clock          quartz.Clock
	debug          bool
	presentTimeout time.Duration
	opTimeout      time.Duration

	state atomic.Int32

	// mu serializes Initialize and Close and guards the fields below it
	mu     sync.Mutex
	cfg    Config
	caps   capabilities
	player *Player

	match           atomic.Pointer[activeMatch]
	presented       atomic.Bool
	orientation     atomic.Int32
	backgroundMusic atomic.Bool
}

type activeMatch struct {
	ticket   *Ticket
	stream   *random.Stream
	logger   *log.Logger
	score    atomic.Uint64
	scored   atomic.Bool
	scores   chan float64
	stop     chan struct{}
	pumpDone chan struct{}
}

// NewSession creates an uninitialized session. A nil presenter selects
// HeadlessPresenter.
func NewSession(backend Backend, presenter Presenter, opts ...Option) *Session {
	if presenter == nil {
		presenter = HeadlessPresenter{}
	}
	s := &Session{
		backend:        backend,
		presenter:      presenter,
		logger:         log.NewWithOptions(io.Discard, log.Options{}).WithPrefix("session"),
		clock:          quartz.NewReal(),
		presentTimeout: DefaultPresentationTimeout,
		opTimeout:      DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize connects to the backend and registers the observer. Repeating
// the call with the same configuration and observer is a no-op; anything
// else returns ErrConflictingConfig until Close is called.
func (s *Session) Initialize(ctx context.Context, cfg Config, observer Observer) error {
	if cfg.GameID == "" {
		return errors.New("game id is required")
	}
	if observer == nil {
		return errors.New("observer is required")
	}
	caps, err := resolveCapabilities(observer)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUninitialized {
		if s.cfg == cfg && sameObserver(s.caps.observer, observer) {
			s.logger.Debug("Repeated initialize ignored", "game", cfg.GameID)
			return nil
		}
		return fmt.Errorf("%w: game %q on %s", ErrConflictingConfig, s.cfg.GameID, s.cfg.Environment)
	}

	opCtx, cancel := s.withTimeout(ctx, s.opTimeout, errOperationTimeout)
	defer cancel()

	player, err := s.backend.Connect(opCtx, Credentials{
		GameID:      cfg.GameID,
		Environment: cfg.Environment,
		PlayerName:  cfg.PlayerName,
		Token:       cfg.Token,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to %s backend: %w", cfg.Environment, err)
	}

	s.cfg, s.caps, s.player = cfg, caps, player
	s.state.Store(int32(StateInitialized))

	s.logger.Info("Session initialized",
		"game", cfg.GameID,
		"environment", cfg.Environment,
		"allowExit", cfg.AllowExit,
		"standard", caps.standard != nil,
		"turnBased", caps.turnBased != nil)
	return nil
}

// Close disconnects from the backend and returns the session to
// StateUninitialized. It is only permitted between matches.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateUninitialized {
		return nil
	}
	if !s.state.CompareAndSwap(int32(StateInitialized), int32(StateUninitialized)) {
		return s.misuse("close")
	}

	s.cfg, s.caps, s.player = Config{}, capabilities{}, nil
	s.logger.Info("Session closed")

	if err := s.backend.Close(); err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}
	return nil
}

// Launch shows the tournament lobby and blocks until the user has picked a
// tournament (the observer's play handler has then already run) or left.
// Observer hooks run on the calling goroutine.
func (s *Session) Launch(ctx context.Context) (Outcome, error) {
	return s.launch(ctx, "launch")
}

// RequestExternalLaunch launches only if the observer's ExternalLaunchGate
// agrees. The gate is consulted from Initialized without any intermediate
// state. A refusal returns OutcomeDeclined and changes nothing; the request
// is not retried.
func (s *Session) RequestExternalLaunch(ctx context.Context, source string) (Outcome, error) {
	caps, _, _ := s.snapshot()
	if caps.observer == nil {
		return OutcomeNone, s.misuse("external launch")
	}

	if !caps.shouldLaunchExternally() {
		s.logger.Info("External launch declined", "source", source)
		return OutcomeDeclined, nil
	}

	s.logger.Info("External launch accepted", "source", source)
	return s.launch(ctx, "external launch")
}

func (s *Session) launch(ctx context.Context, op string) (Outcome, error) {
	if err := s.transition(op, StateInitialized, StateLaunching); err != nil {
		return OutcomeNone, err
	}

	caps, cfg, player := s.snapshot()
	caps.willLaunch()

	orientation := caps.observer.PreferredOrientation()
	s.orientation.Store(int32(orientation))
	s.presented.Store(true)

	lobby, err := s.lobby(ctx, cfg, player, orientation)
	if err != nil {
		return s.abandonLaunch(caps, fmt.Errorf("%w: %w", ErrPresentationFailed, err))
	}

	presentCtx, cancel := s.withTimeout(ctx, s.presentTimeout, errPresentationTimeout)
	sel, err := s.presenter.PresentLobby(presentCtx, lobby)
	if err != nil {
		err = presentationError(presentCtx, err)
		cancel()
		return s.abandonLaunch(caps, err)
	}
	cancel()

	if sel.Exit {
		if !cfg.AllowExit {
			return s.abandonLaunch(caps, ErrExitNotAllowed)
		}
		s.presented.Store(false)
		caps.hasFinishedLaunching()
		s.state.Store(int32(StateInitialized))
		s.logger.Info("User exited tournament UI")
		caps.willExit()
		return OutcomeExited, nil
	}

	opCtx, cancel := s.withTimeout(ctx, s.opTimeout, errOperationTimeout)
	ticket, err := s.backend.Join(opCtx, JoinRequest{
		TournamentID: sel.TournamentID,
		MatchID:      sel.MatchID,
		Review:       sel.Review,
	})
	cancel()
	if err != nil {
		return s.abandonLaunch(caps, fmt.Errorf("failed to join: %w", err))
	}
	if !caps.supports(ticket) {
		return s.abandonLaunch(caps, fmt.Errorf("%w: %s match %s (review=%t)",
			ErrUnsupportedMatch, ticket.Mode, ticket.MatchID, ticket.Review))
	}

	m := s.startMatch(ticket)
	s.presented.Store(false)
	caps.hasFinishedLaunching()
	s.state.Store(int32(StateInTournament))

	m.logger.Info("Match started",
		"tournament", ticket.TournamentID,
		"mode", ticket.Mode,
		"review", ticket.Review,
		"players", len(ticket.Players))

	params := ticket.GameParameters.Clone()
	switch {
	case ticket.Review:
		caps.reviewer.TurnBasedReviewWillBegin(params, ticket.turnBasedInfo())
		return OutcomeReview, nil
	case ticket.Mode == ModeTurnBased:
		caps.turnBased.TurnBasedTournamentWillBegin(params, ticket.turnBasedInfo())
		return OutcomeTurnBased, nil
	default:
		caps.standard.TournamentWillBegin(params, ticket.matchInfo())
		return OutcomeTournament, nil
	}
}

func (s *Session) lobby(ctx context.Context, cfg Config, player *Player, orientation Orientation) (Lobby, error) {
	opCtx, cancel := s.withTimeout(ctx, s.opTimeout, errOperationTimeout)
	defer cancel()

	tournaments, err := s.backend.Tournaments(opCtx)
	if err != nil {
		return Lobby{}, fmt.Errorf("failed to list tournaments: %w", err)
	}
	matches, err := s.backend.Matches(opCtx)
	if err != nil {
		return Lobby{}, fmt.Errorf("failed to list matches: %w", err)
	}

	return Lobby{
		Player:          player,
		Tournaments:     tournaments,
		Matches:         matches,
		Orientation:     orientation,
		AllowExit:       cfg.AllowExit,
		BackgroundMusic: s.backgroundMusic.Load(),
	}, nil
}

// abandonLaunch unwinds a launch that could not start a match.
func (s *Session) abandonLaunch(caps capabilities, err error) (Outcome, error) {
	s.presented.Store(false)
	caps.hasFinishedLaunching()
	s.state.Store(int32(StateInitialized))
	s.logger.Error("Launch failed", "error", err)
	return OutcomeNone, err
}

func (s *Session) startMatch(ticket *Ticket) *activeMatch {
	m := &activeMatch{
		ticket:   ticket,
		stream:   random.NewAt(ticket.Seed, ticket.Position),
		logger:   s.logger.With("match", ticket.MatchID),
		scores:   make(chan float64, 1),
		stop:     make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	if ticket.Review {
		close(m.pumpDone)
	} else {
		go s.pumpScores(m)
	}
	s.match.Store(m)
	return m
}

// pumpScores forwards live scores to the backend until the match ends.
func (s *Session) pumpScores(m *activeMatch) {
	defer close(m.pumpDone)
	for {
		select {
		case <-m.stop:
			return
		case score := <-m.scores:
			ctx, cancel := s.withTimeout(context.Background(), s.opTimeout, errOperationTimeout)
			if err := s.backend.ReportScore(ctx, m.ticket.MatchID, score, m.stream.Position()); err != nil {
				m.logger.Warn("Failed to report live score", "score", score, "error", err)
			}
			cancel()
		}
	}
}

// offer replaces any unsent score with score.
func (m *activeMatch) offer(score float64) {
	for {
		select {
		case m.scores <- score:
			return
		default:
		}
		select {
		case <-m.scores:
		default:
		}
	}
}

// UpdateScore records the player's current score for live display. It never
// blocks; scores not yet sent are replaced by newer ones.
func (s *Session) UpdateScore(score float64) error {
	m := s.match.Load()
	if s.State() != StateInTournament || m == nil {
		return s.misuse("update score")
	}
	if m.ticket.Review {
		return ErrReadOnlyMatch
	}
	m.score.Store(math.Float64bits(score))
	m.scored.Store(true)
	m.offer(score)
	return nil
}

// SubmitResult ends the current match with a final score. In a turn-based
// match it ends the player's turn without saving game state.
func (s *Session) SubmitResult(ctx context.Context, score float64) *Completion {
	return s.finish(ctx, "submit result", finishing{
		check: func(m *activeMatch) error {
			if m.ticket.Review {
				return ErrReadOnlyMatch
			}
			return nil
		},
		call: func(ctx context.Context, m *activeMatch) error {
			if m.ticket.Mode == ModeTurnBased {
				return s.backend.SubmitTurn(ctx, m.ticket.MatchID, Turn{Score: score})
			}
			return s.backend.SubmitResult(ctx, m.ticket.MatchID, score)
		},
		result:  Result{Score: score},
		present: true,
	})
}

// CompleteTurn ends the player's turn in a turn-based match, saving state
// for the next participant.
func (s *Session) CompleteTurn(ctx context.Context, turn Turn) *Completion {
	return s.finish(ctx, "complete turn", finishing{
		check: func(m *activeMatch) error {
			if m.ticket.Review {
				return ErrReadOnlyMatch
			}
			if m.ticket.Mode != ModeTurnBased {
				return fmt.Errorf("%w: turns require a turn-based match", ErrUnsupportedMatch)
			}
			return nil
		},
		call: func(ctx context.Context, m *activeMatch) error {
			return s.backend.SubmitTurn(ctx, m.ticket.MatchID, turn)
		},
		result:  Result{Score: turn.Score, Turn: true},
		present: true,
	})
}

// Abort forfeits the current match. For a match opened for review it just
// closes the review.
func (s *Session) Abort(ctx context.Context) *Completion {
	m := s.match.Load()
	review := m != nil && m.ticket.Review
	f := finishing{
		result:  Result{Forfeit: true},
		present: !review,
	}
	if !review {
		f.call = func(ctx context.Context, m *activeMatch) error {
			return s.backend.Abort(ctx, m.ticket.MatchID)
		}
	}
	return s.finish(ctx, "abort", f)
}

type finishing struct {
	check   func(*activeMatch) error
	call    func(context.Context, *activeMatch) error
	result  Result
	present bool
}

func (s *Session) finish(ctx context.Context, op string, f finishing) *Completion {
	m := s.match.Load()
	if s.State() != StateInTournament || m == nil {
		return failedCompletion(s.misuse(op))
	}
	if f.check != nil {
		if err := f.check(m); err != nil {
			return failedCompletion(err)
		}
	}
	if err := s.transition(op, StateInTournament, StateCompleting); err != nil {
		return failedCompletion(err)
	}

	c := newCompletion()
	go s.unwind(ctx, s.match.Load(), f, c)
	return c
}

// unwind runs the backend call and result screen, then returns the session
// to StateInitialized before resolving c.
func (s *Session) unwind(ctx context.Context, m *activeMatch, f finishing, c *Completion) {
	close(m.stop)
	<-m.pumpDone

	var errs []error
	if f.call != nil {
		opCtx, cancel := s.withTimeout(ctx, s.opTimeout, errOperationTimeout)
		if err := f.call(opCtx, m); err != nil {
			m.logger.Error("Backend rejected match completion", "error", err)
			errs = append(errs, err)
		}
		cancel()
	}

	if f.present {
		caps, _, _ := s.snapshot()
		orientation := caps.observer.PreferredOrientation()
		s.orientation.Store(int32(orientation))
		s.presented.Store(true)

		result := f.result
		result.MatchID = m.ticket.MatchID
		result.Orientation = orientation
		result.Err = errors.Join(errs...)

		presentCtx, cancel := s.withTimeout(ctx, s.presentTimeout, errPresentationTimeout)
		if err := s.presenter.PresentResult(presentCtx, result); err != nil {
			err = presentationError(presentCtx, err)
			m.logger.Error("Result presentation failed", "error", err)
			errs = append(errs, err)
		}
		cancel()
		s.presented.Store(false)
	}

	s.match.Store(nil)
	s.state.Store(int32(StateInitialized))
	m.logger.Info("Match finished", "forfeit", f.result.Forfeit, "score", f.result.Score)

	c.resolve(errors.Join(errs...))
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// TournamentInProgress reports whether a match is being played.
func (s *Session) TournamentInProgress() bool {
	return s.State() == StateInTournament
}

// IsPresented reports whether the tournament UI is on screen.
func (s *Session) IsPresented() bool {
	return s.presented.Load()
}

// Orientation is the orientation the UI was last presented in.
func (s *Session) Orientation() Orientation {
	return Orientation(s.orientation.Load())
}

// Player returns the logged in player, or nil before Initialize.
func (s *Session) Player() *Player {
	_, _, player := s.snapshot()
	if player == nil {
		return nil
	}
	p := *player
	return &p
}

// Config returns the configuration passed to Initialize.
func (s *Session) Config() Config {
	_, cfg, _ := s.snapshot()
	return cfg
}

// SetGameHasBackgroundMusic tells the presenter not to play its own music.
func (s *Session) SetGameHasBackgroundMusic(enabled bool) {
	s.backgroundMusic.Store(enabled)
}

// Random returns the current match's synchronized stream.
func (s *Session) Random() (*random.Stream, error) {
	m := s.match.Load()
	if m == nil {
		return nil, ErrNoTournament
	}
	return m.stream, nil
}

// CurrentMatch returns the current match snapshot.
func (s *Session) CurrentMatch() (MatchInfo, bool) {
	m := s.match.Load()
	if m == nil {
		return MatchInfo{}, false
	}
	return m.ticket.matchInfo(), true
}

// ReadOnly reports whether the current match is open for review.
func (s *Session) ReadOnly() bool {
	m := s.match.Load()
	return m != nil && m.ticket.Review
}

// Score returns the last score passed to UpdateScore in this match.
func (s *Session) Score() (float64, bool) {
	m := s.match.Load()
	if m == nil || !m.scored.Load() {
		return 0, false
	}
	return math.Float64frombits(m.score.Load()), true
}

func (s *Session) snapshot() (capabilities, Config, *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps, s.cfg, s.player
}

func (s *Session) transition(op string, from, to State) error {
	if s.state.CompareAndSwap(int32(from), int32(to)) {
		s.logger.Debug("State transition", "op", op, "from", from, "to", to)
		return nil
	}
	return s.misuse(op)
}

// misuse reports an operation invoked from the wrong state.
func (s *Session) misuse(op string) error {
	err := &StateError{Op: op, State: s.State()}
	if s.debug {
		panic(err)
	}
	s.logger.Warn("Ignoring lifecycle misuse", "op", op, "state", err.State)
	return err
}

// withTimeout derives a context that is cancelled with cause after d on the
// session clock.
func (s *Session) withTimeout(parent context.Context, d time.Duration, cause error) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	if d <= 0 {
		return ctx, func() { cancel(nil) }
	}
	timer := s.clock.AfterFunc(d, func() { cancel(cause) }, "session", "timeout")
	return ctx, func() {
		timer.Stop()
		cancel(nil)
	}
}

func presentationError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		err = cause
	}
	return fmt.Errorf("%w: %w", ErrPresentationFailed, err)
}
