package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/tourneykit/internal/auth"
	"github.com/lox/tourneykit/internal/protocol"
	"github.com/lox/tourneykit/internal/tournament"
	"github.com/lox/tourneykit/sdk"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *protocol.Message
	player    sdk.Player
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(server.ctx)

	return &Connection{
		conn:   conn,
		server: server,
		send:   make(chan *protocol.Message, 256),
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection. The write pump drains and closes the socket.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
	})
	return nil
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Player returns the authenticated player, if any
func (c *Connection) Player() (sdk.Player, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player, c.player.ID != ""
}

// PlayerName returns the authenticated player's display name
func (c *Connection) PlayerName() string {
	p, _ := c.Player()
	return p.DisplayName
}

func (c *Connection) setPlayer(p sdk.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; turn states ride in here
	maxMessageSize = 256 * 1024
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				_ = c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug("Received message", "type", msg.Type, "requestId", msg.RequestID)

	if msg.Type == protocol.TypeHello {
		var data protocol.HelloData
		if err := msg.Decode(&data); err != nil {
			c.sendError(msg.RequestID, protocol.CodeBadRequest, err.Error())
			return
		}
		c.handleHello(msg.RequestID, data)
		return
	}

	player, ok := c.Player()
	if !ok {
		c.sendError(msg.RequestID, protocol.CodeNotAuthenticated, "send hello first")
		return
	}
	engine := c.server.engine

	switch msg.Type {
	case protocol.TypeListTournaments:
		c.reply(msg.RequestID, protocol.TypeTournamentList, protocol.TournamentListData{
			Tournaments: engine.Tournaments(),
		})

	case protocol.TypeListMatches:
		c.reply(msg.RequestID, protocol.TypeMatchList, protocol.MatchListData{
			Matches: engine.Matches(player.ID),
		})

	case protocol.TypeJoin:
		var data protocol.JoinData
		if !c.decode(msg, &data) {
			return
		}
		var (
			ticket *sdk.Ticket
			err    error
		)
		switch {
		case data.MatchID != "":
			ticket, err = engine.Resume(player.ID, data.MatchID)
		case data.TournamentID != "":
			ticket, err = engine.Join(player.ID, data.TournamentID)
		default:
			err = fmt.Errorf("%w: tournamentId or matchId is required", errBadRequest)
		}
		c.replyTicket(msg.RequestID, ticket, err)

	case protocol.TypeReview:
		var data protocol.ReviewData
		if !c.decode(msg, &data) {
			return
		}
		ticket, err := engine.Review(player.ID, data.MatchID)
		c.replyTicket(msg.RequestID, ticket, err)

	case protocol.TypeScoreUpdate:
		var data protocol.ScoreData
		if !c.decode(msg, &data) {
			return
		}
		c.ack(msg.RequestID, engine.ReportScore(player.ID, data.MatchID, data.Score, data.Position))

	case protocol.TypeSubmitResult:
		var data protocol.ScoreData
		if !c.decode(msg, &data) {
			return
		}
		c.ack(msg.RequestID, engine.Submit(player.ID, data.MatchID, data.Score))

	case protocol.TypeSubmitTurn:
		var data protocol.TurnData
		if !c.decode(msg, &data) {
			return
		}
		c.ack(msg.RequestID, engine.SubmitTurn(player.ID, data.MatchID, data.Turn))

	case protocol.TypeAbort:
		var data protocol.AbortData
		if !c.decode(msg, &data) {
			return
		}
		c.ack(msg.RequestID, engine.Forfeit(player.ID, data.MatchID))

	default:
		c.sendError(msg.RequestID, protocol.CodeBadRequest,
			fmt.Sprintf("%s: %s", protocol.ErrUnknownMessageType, msg.Type))
	}
}

func (c *Connection) handleHello(requestID string, data protocol.HelloData) {
	if _, ok := c.Player(); ok {
		c.sendError(requestID, protocol.CodeBadRequest, "already authenticated")
		return
	}

	opts := c.server.opts
	if opts.GameID != "" && data.GameID != opts.GameID {
		c.sendError(requestID, protocol.CodeNotAuthenticated, fmt.Sprintf("unknown game %q", data.GameID))
		return
	}
	env, err := sdk.ParseEnvironment(data.Environment)
	if err != nil || env != opts.Environment {
		c.sendError(requestID, protocol.CodeNotAuthenticated,
			fmt.Sprintf("this server is the %s environment", opts.Environment))
		return
	}

	player, err := c.register(data)
	if err != nil {
		code := protocol.CodeBadRequest
		if errors.Is(err, errNotAuthenticated) {
			code = protocol.CodeNotAuthenticated
		}
		c.sendError(requestID, code, err.Error())
		return
	}
	c.setPlayer(player)
	c.logger.Info("Player connected", "player", player.DisplayName, "game", data.GameID, "version", data.Version)

	c.reply(requestID, protocol.TypeWelcome, protocol.WelcomeData{
		Player:        player,
		ServerVersion: sdk.Version,
	})
}

var errNotAuthenticated = errors.New("invalid or missing token")

// register resolves the engine player for a hello. A verified token binds
// the connection to the token's player id; names are only trusted when no
// validator vouches for the player.
func (c *Connection) register(data protocol.HelloData) (sdk.Player, error) {
	engine := c.server.engine
	validator := c.server.opts.Auth
	if validator == nil {
		return engine.Register(data.PlayerName)
	}

	identity, err := validator.Validate(c.ctx, data.GameID, data.Token)
	switch {
	case errors.Is(err, auth.ErrUnavailable) && c.server.opts.AuthFailOpen:
		c.logger.Warn("Auth unavailable, admitting player", "player", data.PlayerName, "error", err)
		return engine.Register(data.PlayerName)
	case err != nil:
		c.logger.Info("Player rejected", "player", data.PlayerName, "error", err)
		return sdk.Player{}, errNotAuthenticated
	case identity == nil:
		return engine.Register(data.PlayerName)
	}

	c.logger.Debug("Player verified", "id", identity.PlayerID, "name", identity.DisplayName)
	name := identity.DisplayName
	if name == "" {
		name = data.PlayerName
	}
	return engine.RegisterVerified(identity.PlayerID, name)
}

var errBadRequest = errors.New("bad request")

func (c *Connection) decode(msg *protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		c.sendError(msg.RequestID, protocol.CodeBadRequest, err.Error())
		return false
	}
	return true
}

func (c *Connection) replyTicket(requestID string, ticket *sdk.Ticket, err error) {
	if err != nil {
		c.fail(requestID, err)
		return
	}
	c.reply(requestID, protocol.TypeTicket, protocol.TicketData{Ticket: *ticket})
}

func (c *Connection) ack(requestID string, err error) {
	if err != nil {
		c.fail(requestID, err)
		return
	}
	c.reply(requestID, protocol.TypeAck, nil)
}

func (c *Connection) reply(requestID string, messageType protocol.MessageType, data any) {
	msg, err := protocol.NewReply(requestID, messageType, data)
	if err != nil {
		c.logger.Error("Failed to create reply", "type", messageType, "error", err)
		c.sendError(requestID, protocol.CodeInternal, "failed to encode reply")
		return
	}
	_ = c.SendMessage(msg) // Ignore send errors
}

func (c *Connection) fail(requestID string, err error) {
	code := errorCode(err)
	if code == protocol.CodeInternal {
		c.logger.Error("Request failed", "error", err)
	} else {
		c.logger.Debug("Request rejected", "code", code, "error", err)
	}
	c.sendError(requestID, code, err.Error())
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	_ = c.SendMessage(protocol.NewError(requestID, code, message)) // Ignore send errors during error handling
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return protocol.CodeBadRequest
	case errors.Is(err, tournament.ErrUnknownPlayer):
		return protocol.CodeNotAuthenticated
	case errors.Is(err, tournament.ErrUnknownTournament):
		return protocol.CodeUnknownTournament
	case errors.Is(err, tournament.ErrUnknownMatch):
		return protocol.CodeUnknownMatch
	case errors.Is(err, tournament.ErrNotParticipant):
		return protocol.CodeNotParticipant
	case errors.Is(err, tournament.ErrNotYourTurn):
		return protocol.CodeNotYourTurn
	case errors.Is(err, tournament.ErrMatchClosed):
		return protocol.CodeMatchClosed
	case errors.Is(err, tournament.ErrWrongMode):
		return protocol.CodeBadRequest
	default:
		return protocol.CodeInternal
	}
}
