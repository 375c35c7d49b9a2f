// Package protocol defines the JSON messages exchanged between tourneykit
// clients and the sandbox tournament server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lox/tourneykit/sdk"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeHello           MessageType = "hello"
	TypeListTournaments MessageType = "list_tournaments"
	TypeListMatches     MessageType = "list_matches"
	TypeJoin            MessageType = "join"
	TypeScoreUpdate     MessageType = "score_update"
	TypeSubmitResult    MessageType = "submit_result"
	TypeSubmitTurn      MessageType = "submit_turn"
	TypeAbort           MessageType = "abort"
	TypeReview          MessageType = "review"

	// Server -> Client
	TypeWelcome        MessageType = "welcome"
	TypeTournamentList MessageType = "tournament_list"
	TypeMatchList      MessageType = "match_list"
	TypeTicket         MessageType = "ticket"
	TypeAck            MessageType = "ack"
	TypeError          MessageType = "error"
)

// Error codes carried in ErrorData.
const (
	CodeBadRequest        = "bad_request"
	CodeNotAuthenticated  = "not_authenticated"
	CodeUnknownTournament = "unknown_tournament"
	CodeUnknownMatch      = "unknown_match"
	CodeNotParticipant    = "not_participant"
	CodeNotYourTurn       = "not_your_turn"
	CodeMatchClosed       = "match_closed"
	CodeInternal          = "internal"
)

// ErrUnknownMessageType is returned for message types the receiver does not handle
var ErrUnknownMessageType = errors.New("unknown message type")

// Message is the envelope for every frame on the wire. Responses echo the
// RequestID of the request they answer.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", messageType, err)
		}
		raw = b
	}

	return &Message{
		Type:      messageType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

// NewReply creates a message answering requestID.
func NewReply(requestID string, messageType MessageType, data any) (*Message, error) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}
	msg.RequestID = requestID
	return msg, nil
}

// NewError creates an error reply.
func NewError(requestID, code, message string) *Message {
	msg, _ := NewReply(requestID, TypeError, ErrorData{Code: code, Message: message})
	return msg
}

// Decode unmarshals the message payload into v. An empty payload leaves v
// untouched.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Client -> Server Messages

type HelloData struct {
	GameID      string `json:"gameId"`
	Environment string `json:"environment"`
	PlayerName  string `json:"playerName"`
	Version     string `json:"version,omitempty"`
	Token       string `json:"token,omitempty"`
}

type JoinData struct {
	TournamentID string `json:"tournamentId,omitempty"`
	MatchID      string `json:"matchId,omitempty"`
}

type ReviewData struct {
	MatchID string `json:"matchId"`
}

type ScoreData struct {
	MatchID string  `json:"matchId"`
	Score   float64 `json:"score"`
	// Position is the random stream position, sent with live scores only
	Position uint64 `json:"position,omitempty"`
}

type TurnData struct {
	MatchID string   `json:"matchId"`
	Turn    sdk.Turn `json:"turn"`
}

type AbortData struct {
	MatchID string `json:"matchId"`
}

// Server -> Client Messages

type WelcomeData struct {
	Player        sdk.Player `json:"player"`
	ServerVersion string     `json:"serverVersion,omitempty"`
}

type TournamentListData struct {
	Tournaments []sdk.Tournament `json:"tournaments"`
}

type MatchListData struct {
	Matches []sdk.MatchSummary `json:"matches"`
}

type TicketData struct {
	Ticket sdk.Ticket `json:"ticket"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RemoteError is an error reported by the other end of the connection.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Err converts the payload into a *RemoteError.
func (d ErrorData) Err() error {
	return &RemoteError{Code: d.Code, Message: d.Message}
}
