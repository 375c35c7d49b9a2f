// Package wsclient connects a session to a tourneykit server over
// websockets.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/tourneykit/internal/protocol"
	"github.com/lox/tourneykit/sdk"
)

// SandboxURL is where sandbox sessions connect when no URL is configured.
const SandboxURL = "ws://localhost:8080/ws"

const writeWait = 10 * time.Second

var (
	// ErrNoServerURL is returned when a production session has no server URL
	ErrNoServerURL = errors.New("production environment requires a server URL")
	// ErrNotConnected is returned by requests made before Connect or after Close
	ErrNotConnected = errors.New("not connected")
)

// ServerError is an error reported by the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

// Option configures a Client
type Option func(*Client)

// WithServerURL sets the server to connect to
func WithServerURL(serverURL string) Option {
	return func(c *Client) { c.serverURL = serverURL }
}

// WithLogger sets the client logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDialer replaces websocket.DefaultDialer
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = dialer }
}

// Client implements sdk.Backend over a websocket. Requests are matched to
// replies by request id, so a client may be used from several goroutines.
type Client struct {
	serverURL string
	dialer    *websocket.Dialer
	logger    *log.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	pending map[string]chan *protocol.Message
	nextID  uint64
	readErr error

	writeMu sync.Mutex
}

var _ sdk.Backend = (*Client)(nil)

// New creates a client. Nothing is dialled until Connect.
func New(opts ...Option) *Client {
	c := &Client{
		dialer: websocket.DefaultDialer,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("wsclient")
	return c
}

// ResolveURL picks the websocket URL for an environment, normalising http
// schemes to their websocket equivalents.
func ResolveURL(serverURL string, env sdk.Environment) (string, error) {
	if serverURL == "" {
		if env == sdk.EnvironmentProduction {
			return "", ErrNoServerURL
		}
		return SandboxURL, nil
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	if u.Path == "" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Connect dials the server and introduces the player.
func (c *Client) Connect(ctx context.Context, creds sdk.Credentials) (*sdk.Player, error) {
	target, err := ResolveURL(c.serverURL, creds.Environment)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Connecting to server", "url", target, "environment", creds.Environment)
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, errors.New("already connected")
	}
	c.conn = conn
	c.done = make(chan struct{})
	c.pending = make(map[string]chan *protocol.Message)
	c.readErr = nil
	done := c.done
	c.mu.Unlock()

	go c.readMessages(conn, done)

	var welcome protocol.WelcomeData
	err = c.call(ctx, protocol.TypeHello, protocol.HelloData{
		GameID:      creds.GameID,
		Environment: creds.Environment.String(),
		PlayerName:  creds.PlayerName,
		Version:     sdk.Version,
		Token:       creds.Token,
	}, protocol.TypeWelcome, &welcome)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("Connected", "player", welcome.Player.DisplayName, "server", welcome.ServerVersion)
	return &welcome.Player, nil
}

// Close disconnects from the server.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := conn.Close()
	<-done
	return err
}

func (c *Client) Tournaments(ctx context.Context) ([]sdk.Tournament, error) {
	var data protocol.TournamentListData
	if err := c.call(ctx, protocol.TypeListTournaments, nil, protocol.TypeTournamentList, &data); err != nil {
		return nil, err
	}
	return data.Tournaments, nil
}

func (c *Client) Matches(ctx context.Context) ([]sdk.MatchSummary, error) {
	var data protocol.MatchListData
	if err := c.call(ctx, protocol.TypeListMatches, nil, protocol.TypeMatchList, &data); err != nil {
		return nil, err
	}
	return data.Matches, nil
}

func (c *Client) Join(ctx context.Context, req sdk.JoinRequest) (*sdk.Ticket, error) {
	var (
		data protocol.TicketData
		err  error
	)
	if req.Review {
		err = c.call(ctx, protocol.TypeReview, protocol.ReviewData{MatchID: req.MatchID}, protocol.TypeTicket, &data)
	} else {
		err = c.call(ctx, protocol.TypeJoin, protocol.JoinData{
			TournamentID: req.TournamentID,
			MatchID:      req.MatchID,
		}, protocol.TypeTicket, &data)
	}
	if err != nil {
		return nil, err
	}
	return &data.Ticket, nil
}

func (c *Client) ReportScore(ctx context.Context, matchID string, score float64, position uint64) error {
	data := protocol.ScoreData{MatchID: matchID, Score: score, Position: position}
	return c.call(ctx, protocol.TypeScoreUpdate, data, protocol.TypeAck, nil)
}

func (c *Client) SubmitResult(ctx context.Context, matchID string, score float64) error {
	return c.call(ctx, protocol.TypeSubmitResult, protocol.ScoreData{MatchID: matchID, Score: score}, protocol.TypeAck, nil)
}

func (c *Client) SubmitTurn(ctx context.Context, matchID string, turn sdk.Turn) error {
	return c.call(ctx, protocol.TypeSubmitTurn, protocol.TurnData{MatchID: matchID, Turn: turn}, protocol.TypeAck, nil)
}

func (c *Client) Abort(ctx context.Context, matchID string) error {
	return c.call(ctx, protocol.TypeAbort, protocol.AbortData{MatchID: matchID}, protocol.TypeAck, nil)
}

// call sends a request and waits for the reply carrying its request id.
func (c *Client) call(ctx context.Context, messageType protocol.MessageType, data any, want protocol.MessageType, out any) error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	if conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.nextID++
	requestID := strconv.FormatUint(c.nextID, 10)
	reply := make(chan *protocol.Message, 1)
	c.pending[requestID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	msg, err := protocol.NewReply(requestID, messageType, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", messageType, err)
	}

	select {
	case resp := <-reply:
		return decodeReply(resp, want, out)
	case <-done:
		return fmt.Errorf("%s: %w", messageType, c.closedErr())
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", messageType, ctx.Err())
	}
}

func decodeReply(resp *protocol.Message, want protocol.MessageType, out any) error {
	if resp.Type == protocol.TypeError {
		var data protocol.ErrorData
		if err := resp.Decode(&data); err != nil {
			return err
		}
		return &ServerError{Code: data.Code, Message: data.Message}
	}
	if resp.Type != want {
		return fmt.Errorf("unexpected reply %s, want %s", resp.Type, want)
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, c.readErr)
	}
	return ErrNotConnected
}

// readMessages routes replies to their waiting callers until the
// connection drops.
func (c *Client) readMessages(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			c.mu.Lock()
			c.readErr = err
			if c.conn == conn {
				c.conn = nil
				_ = conn.Close()
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.RequestID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Dropping unsolicited message", "type", msg.Type, "requestId", msg.RequestID)
			continue
		}
		select {
		case reply <- &msg:
		default:
			c.logger.Warn("Dropping duplicate reply", "type", msg.Type, "requestId", msg.RequestID)
		}
	}
}
