package tournament

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/tourneykit/internal/fileutil"
	"github.com/lox/tourneykit/internal/matchid"
	"github.com/lox/tourneykit/internal/randutil"
	"github.com/lox/tourneykit/sdk"
	"github.com/lox/tourneykit/sdk/random"
)

// SnapshotFile is the name of the state file written under Config.DataDir.
const SnapshotFile = "matches.json"

// Config configures an Engine.
type Config struct {
	Tournaments []Definition
	// DataDir enables persistence when set.
	DataDir string
	Clock   quartz.Clock
	Logger  *log.Logger
	Seeds   randutil.Seeder
	IDs     func() string
}

// Engine runs the sandbox tournaments. It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	defs    map[string]Definition
	defIDs  []string
	players map[string]sdk.Player
	names   map[string]string
	// identities maps a verified external id to its player id
	identities map[string]string
	matches    map[string]*Match
	order      []string
	timers     map[string]*quartz.Timer

	clock  quartz.Clock
	logger *log.Logger
	seeds  randutil.Seeder
	newID  func() string
	path   string
}

type snapshot struct {
	Players    []sdk.Player      `json:"players"`
	Identities map[string]string `json:"identities,omitempty"`
	Matches    []*Match          `json:"matches"`
}

// New creates an engine, restoring persisted matches when DataDir holds a
// snapshot.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		defs:       make(map[string]Definition),
		players:    make(map[string]sdk.Player),
		names:      make(map[string]string),
		matches:    make(map[string]*Match),
		identities: make(map[string]string),
		timers:     make(map[string]*quartz.Timer),
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		seeds:      cfg.Seeds,
		newID:      cfg.IDs,
	}
	if e.clock == nil {
		e.clock = quartz.NewReal()
	}
	if e.logger == nil {
		e.logger = log.New(io.Discard)
	}
	e.logger = e.logger.WithPrefix("tournament")
	if e.seeds == nil {
		e.seeds = randutil.Crypto()
	}
	if e.newID == nil {
		e.newID = matchid.New
	}

	for _, def := range cfg.Tournaments {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.defs[def.ID]; dup {
			return nil, fmt.Errorf("duplicate tournament id %q", def.ID)
		}
		e.defs[def.ID] = def
		e.defIDs = append(e.defIDs, def.ID)
	}

	if cfg.DataDir != "" {
		e.path = filepath.Join(cfg.DataDir, SnapshotFile)
		if err := e.restore(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Engine) restore() error {
	var snap snapshot
	found, err := fileutil.ReadJSON(e.path, &snap)
	if err != nil || !found {
		return err
	}

	verified := make(map[string]bool, len(snap.Identities))
	for external, id := range snap.Identities {
		e.identities[external] = id
		verified[id] = true
	}
	for _, p := range snap.Players {
		e.players[p.ID] = p
		if !verified[p.ID] {
			e.names[strings.ToLower(p.DisplayName)] = p.ID
		}
	}
	for _, m := range snap.Matches {
		if m.Entries == nil {
			m.Entries = make(map[string]*Entry)
		}
		e.matches[m.ID] = m
		e.order = append(e.order, m.ID)

		if m.Mode == sdk.ModeTurnBased && !m.Complete && !m.Deadline.IsZero() {
			e.startTimer(m, max(m.Deadline.Sub(e.clock.Now()), 0))
		}
	}

	e.logger.Info("Restored matches", "matches", len(snap.Matches), "players", len(snap.Players), "path", e.path)
	return nil
}

// Close stops pending turn deadlines and writes a final snapshot.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	return e.save()
}

// Register returns the player with the given display name, creating it on
// first use. Names are case-insensitive.
func (e *Engine) Register(displayName string) (sdk.Player, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return sdk.Player{}, fmt.Errorf("player name is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.names[strings.ToLower(name)]; ok {
		return e.players[id], nil
	}

	p := sdk.Player{ID: e.newID(), DisplayName: name}
	e.players[p.ID] = p
	e.names[strings.ToLower(name)] = p.ID
	e.persist()

	e.logger.Info("Registered player", "player", p.DisplayName, "id", p.ID)
	return p, nil
}

// RegisterVerified returns the player bound to an id verified by an auth
// service, creating it on first use with displayName (or the id when the
// name is empty). Verified players are never found by name, so accounts
// sharing a display name stay distinct.
func (e *Engine) RegisterVerified(externalID, displayName string) (sdk.Player, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return sdk.Player{}, fmt.Errorf("verified player id is required")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = externalID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.identities[externalID]; ok {
		return e.players[id], nil
	}

	p := sdk.Player{ID: e.newID(), DisplayName: name}
	e.players[p.ID] = p
	e.identities[externalID] = p.ID
	e.persist()

	e.logger.Info("Registered verified player", "player", p.DisplayName, "id", p.ID, "external", externalID)
	return p, nil
}

// Tournaments lists the configured tournaments in configuration order.
func (e *Engine) Tournaments() []sdk.Tournament {
	out := make([]sdk.Tournament, 0, len(e.defIDs))
	for _, id := range e.defIDs {
		out = append(out, e.defs[id].Tournament())
	}
	return out
}

// Matches lists the matches a player is seated in, oldest first.
func (e *Engine) Matches(playerID string) []sdk.MatchSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []sdk.MatchSummary
	for _, id := range e.order {
		m := e.matches[id]
		seat := m.seatOf(playerID)
		if seat < 0 {
			continue
		}

		yourTurn := !m.Complete
		if m.Mode == sdk.ModeTurnBased {
			yourTurn = yourTurn && m.currentSeat() == seat
		} else {
			yourTurn = yourTurn && !m.entry(playerID).closed()
		}

		out = append(out, sdk.MatchSummary{
			ID:           m.ID,
			TournamentID: m.TournamentID,
			Name:         e.defs[m.TournamentID].Tournament().Name,
			Mode:         m.Mode,
			Turn:         m.Turn,
			YourTurn:     yourTurn,
			Complete:     m.Complete,
		})
	}
	return out
}

// Join seats the player in the oldest open match of the tournament, or
// opens a new match with a fresh seed when none has a free seat.
func (e *Engine) Join(playerID, tournamentID string) (*sdk.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.players[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	def, ok := e.defs[tournamentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTournament, tournamentID)
	}

	var m *Match
	for _, id := range e.order {
		c := e.matches[id]
		if c.TournamentID == def.ID && c.open() && c.seatOf(playerID) < 0 {
			m = c
			break
		}
	}
	if m == nil {
		m = &Match{
			ID:           e.newID(),
			TournamentID: def.ID,
			Mode:         def.Mode,
			Seats:        def.PlayersPerMatch,
			Seed:         e.seeds.NextSeed(),
			Created:      e.clock.Now(),
			Entries:      make(map[string]*Entry),
		}
		e.matches[m.ID] = m
		e.order = append(e.order, m.ID)
		e.logger.Info("Opened match", "match", m.ID, "tournament", def.ID, "seats", m.Seats)
	}

	m.Players = append(m.Players, p)
	m.entry(p.ID)
	if m.Mode == sdk.ModeTurnBased {
		e.armDeadline(m)
	}
	e.persist()

	e.logger.Info("Player joined match",
		"player", p.DisplayName,
		"match", m.ID,
		"seat", len(m.Players)-1)
	return e.ticket(m, p.ID, false), nil
}

// Resume hands out a fresh ticket for a match the player is already in:
// the current turn of a turn-based match, or a standard match the player
// has not finished. The ticket carries the last reported stream position so
// the client does not replay draws it has already seen.
func (e *Engine) Resume(playerID, matchID string) (*sdk.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, seat, err := e.seated(playerID, matchID)
	if err != nil {
		return nil, err
	}
	if m.Complete || m.entry(playerID).closed() {
		return nil, fmt.Errorf("%w: %s", ErrMatchClosed, matchID)
	}
	if m.Mode == sdk.ModeTurnBased && m.currentSeat() != seat {
		return nil, fmt.Errorf("%w: match %s", ErrNotYourTurn, matchID)
	}
	return e.ticket(m, playerID, false), nil
}

// Review returns a read-only ticket for a turn-based match the player is
// in, finished or not.
func (e *Engine) Review(playerID, matchID string) (*sdk.Ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, _, err := e.seated(playerID, matchID)
	if err != nil {
		return nil, err
	}
	if m.Mode != sdk.ModeTurnBased {
		return nil, fmt.Errorf("%w: only turn-based matches can be reviewed", ErrWrongMode)
	}
	return e.ticket(m, playerID, true), nil
}

// ReportScore records a live score and how far the player has read into the
// match's random stream. Positions only move forward. Neither is persisted
// until the next state change.
func (e *Engine) ReportScore(playerID, matchID string, score float64, position uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, _, err := e.seated(playerID, matchID)
	if err != nil {
		return err
	}
	entry := m.entry(playerID)
	if m.Complete || entry.closed() {
		return fmt.Errorf("%w: %s", ErrMatchClosed, matchID)
	}
	entry.Score = score
	entry.Position = max(entry.Position, position)
	return nil
}

// Submit records a final score in a standard match.
func (e *Engine) Submit(playerID, matchID string, score float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, _, err := e.seated(playerID, matchID)
	if err != nil {
		return err
	}
	if m.Mode != sdk.ModeStandard {
		return fmt.Errorf("%w: submit a turn instead", ErrWrongMode)
	}
	entry := m.entry(playerID)
	if entry.closed() {
		return fmt.Errorf("%w: %s", ErrMatchClosed, matchID)
	}

	entry.Score = score
	entry.Final = true
	m.settle()
	e.persist()

	e.logger.Info("Score submitted", "match", m.ID, "player", playerID, "score", score, "complete", m.Complete)
	return nil
}

// Forfeit abandons a match. A forfeit in a turn-based match ends it for
// everyone.
func (e *Engine) Forfeit(playerID, matchID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, _, err := e.seated(playerID, matchID)
	if err != nil {
		return err
	}
	entry := m.entry(playerID)
	if m.Complete || entry.closed() {
		return fmt.Errorf("%w: %s", ErrMatchClosed, matchID)
	}

	e.forfeit(m, playerID)
	e.persist()
	return nil
}

func (e *Engine) forfeit(m *Match, playerID string) {
	m.entry(playerID).Forfeit = true
	if m.Mode == sdk.ModeTurnBased {
		m.Complete = true
		m.Deadline = time.Time{}
		e.stopTimer(m.ID)
	} else {
		m.settle()
	}
	e.logger.Info("Player forfeited", "match", m.ID, "player", playerID, "complete", m.Complete)
}

// SubmitTurn stores the player's turn and passes play to the next seat.
func (e *Engine) SubmitTurn(playerID, matchID string, turn sdk.Turn) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, seat, err := e.seated(playerID, matchID)
	if err != nil {
		return err
	}
	if m.Mode != sdk.ModeTurnBased {
		return fmt.Errorf("%w: not a turn-based match", ErrWrongMode)
	}
	if m.Complete {
		return fmt.Errorf("%w: %s", ErrMatchClosed, matchID)
	}
	if m.currentSeat() != seat {
		return fmt.Errorf("%w: match %s", ErrNotYourTurn, matchID)
	}

	e.stopTimer(m.ID)
	entry := m.entry(playerID)
	entry.Score = turn.Score
	// the next turn draws from a freshly derived seed
	entry.Position = 0
	m.GameState = slices.Clone(turn.GameState)
	m.Turn++
	m.Deadline = time.Time{}

	if turn.MatchOver {
		m.Complete = true
		for _, p := range m.Players {
			if entry := m.entry(p.ID); !entry.Forfeit {
				entry.Final = true
			}
		}
	} else {
		e.armDeadline(m)
	}
	e.persist()

	e.logger.Info("Turn submitted",
		"match", m.ID,
		"player", playerID,
		"turn", m.Turn-1,
		"score", turn.Score,
		"complete", m.Complete)
	return nil
}

// Standings ranks the players seated in a match.
func (e *Engine) Standings(matchID string) ([]Standing, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}

	standings := make([]Standing, 0, len(m.Players))
	for _, p := range m.Players {
		entry := m.entry(p.ID)
		standings = append(standings, Standing{Player: p, Score: entry.Score, Forfeit: entry.Forfeit})
	}
	Rank(standings)
	return standings, nil
}

// Match returns a copy of a match's state.
func (e *Engine) Match(matchID string) (Match, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.matches[matchID]
	if !ok {
		return Match{}, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	return m.clone(), nil
}

func (e *Engine) seated(playerID, matchID string) (*Match, int, error) {
	m, ok := e.matches[matchID]
	if !ok {
		return nil, -1, fmt.Errorf("%w: %s", ErrUnknownMatch, matchID)
	}
	seat := m.seatOf(playerID)
	if seat < 0 {
		return nil, -1, fmt.Errorf("%w: %s", ErrNotParticipant, matchID)
	}
	return m, seat, nil
}

func (e *Engine) ticket(m *Match, playerID string, review bool) *sdk.Ticket {
	tournament := e.defs[m.TournamentID].Tournament()
	t := &sdk.Ticket{
		MatchID:        m.ID,
		TournamentID:   m.TournamentID,
		Name:           tournament.Name,
		Mode:           m.Mode,
		Review:         review,
		Seed:           m.Seed,
		Players:        slices.Clone(m.Players),
		GameParameters: tournament.GameParameters,
	}
	if !review {
		t.Position = m.entry(playerID).Position
	}
	if m.Mode == sdk.ModeTurnBased {
		t.Seed = random.Derive(m.Seed, uint64(m.Turn))
		t.Turn = m.Turn
		t.GameState = slices.Clone(m.GameState)
		t.Scores = m.scores()
		t.Deadline = m.Deadline
	}
	return t
}

// armDeadline starts the clock on the current turn once its seat is filled.
func (e *Engine) armDeadline(m *Match) {
	timeout := e.defs[m.TournamentID].TurnTimeout
	if timeout <= 0 || m.currentSeat() >= len(m.Players) {
		return
	}
	m.Deadline = e.clock.Now().Add(timeout)
	e.startTimer(m, timeout)
}

func (e *Engine) startTimer(m *Match, d time.Duration) {
	id, turn := m.ID, m.Turn
	e.stopTimer(id)
	e.timers[id] = e.clock.AfterFunc(d, func() { e.expire(id, turn) }, "tournament", "deadline")
}

func (e *Engine) stopTimer(matchID string) {
	if t, ok := e.timers[matchID]; ok {
		t.Stop()
		delete(e.timers, matchID)
	}
}

func (e *Engine) expire(matchID string, turn int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.matches[matchID]
	if !ok || m.Complete || m.Turn != turn {
		return
	}
	delete(e.timers, matchID)

	p := m.Players[m.currentSeat()]
	e.logger.Warn("Turn deadline passed", "match", matchID, "player", p.DisplayName, "turn", turn)
	e.forfeit(m, p.ID)
	e.persist()
}

// persist must be called with e.mu held.
func (e *Engine) persist() {
	if err := e.save(); err != nil {
		e.logger.Error("Failed to persist matches", "error", err)
	}
}

func (e *Engine) save() error {
	if e.path == "" {
		return nil
	}

	snap := snapshot{
		Identities: e.identities,
		Matches:    make([]*Match, 0, len(e.order)),
	}
	for _, p := range e.players {
		snap.Players = append(snap.Players, p)
	}
	slices.SortFunc(snap.Players, func(a, b sdk.Player) int { return strings.Compare(a.ID, b.ID) })
	for _, id := range e.order {
		snap.Matches = append(snap.Matches, e.matches[id])
	}
	return fileutil.WriteJSONAtomic(e.path, snap)
}
