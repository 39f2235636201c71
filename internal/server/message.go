package server

import (
	"encoding/json"
	"time"

	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/poker"
)

// MessageType represents a WebSocket message type
type MessageType string

const (
	// Client to server messages
	MessageTypeJoin   MessageType = "join"
	MessageTypeAction MessageType = "action"
	MessageTypeLeave  MessageType = "leave"

	// Server to client messages
	MessageTypeJoined         MessageType = "joined"
	MessageTypeActionRequired MessageType = "action_required"
	MessageTypeHandResult     MessageType = "hand_result"
	MessageTypeSessionEnd     MessageType = "session_end"
	MessageTypeError          MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message is the envelope for every frame in both directions
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type JoinData struct {
	Name  string `json:"name"`
	Hands int    `json:"hands,omitempty"`
}

type ActionData struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

// Server → Client Messages

type JoinedData struct {
	SessionID  string `json:"sessionId"`
	Seat       string `json:"seat"`
	Opponent   string `json:"opponent"`
	Stacks     [2]int `json:"stacks"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
	Hands      int    `json:"hands"`
}

// StatusInfo is the betting state as the client sees it
type StatusInfo struct {
	Phase    string `json:"phase"`
	Stacks   [2]int `json:"stacks"`
	Bets     [2]int `json:"bets"`
	Pot      int    `json:"pot"`
	ToCall   int    `json:"toCall"`
	BigBlind int    `json:"bigBlind"`
}

// StatusInfoFromGame converts a game status for the wire
func StatusInfoFromGame(s game.Status) StatusInfo {
	return StatusInfo{
		Phase:    s.Phase.String(),
		Stacks:   s.Stacks,
		Bets:     s.Bets,
		Pot:      s.Pot(),
		ToCall:   s.ToCall(),
		BigBlind: s.BigBlind,
	}
}

type ActionRequiredData struct {
	HandID         string     `json:"handId"`
	Hole           string     `json:"hole"`
	Board          []string   `json:"board"`
	ValidActions   []string   `json:"validActions"`
	Status         StatusInfo `json:"status"`
	TimeoutSeconds int        `json:"timeoutSeconds"`
}

type HandResultData struct {
	HandID       string   `json:"handId"`
	Board        []string `json:"board"`
	Hole         string   `json:"hole"`
	OpponentHole string   `json:"opponentHole,omitempty"`
	Winner       string   `json:"winner,omitempty"`
	Chop         bool     `json:"chop"`
	Showdown     bool     `json:"showdown"`
	Category     string   `json:"category,omitempty"`
	Pot          int      `json:"pot"`
	Stacks       [2]int   `json:"stacks"`
}

type SessionEndData struct {
	Reason    string  `json:"reason"`
	Hands     int     `json:"hands"`
	Stacks    [2]int  `json:"stacks"`
	NetBB     float64 `json:"netBB"`
	BBPer100  float64 `json:"bbPer100"`
	Showdowns int     `json:"showdowns"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func cardStrings(cards []poker.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func actionStrings(actions []game.ActionType) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}

// HandResultFromGame converts a finished hand for the player in seat. The
// opponent's cards are only revealed when the hand went to showdown.
func HandResultFromGame(res *game.HandResult, seat poker.Seat, names [2]string) HandResultData {
	data := HandResultData{
		HandID:   res.ID,
		Board:    cardStrings(res.Board.Cards()),
		Hole:     res.Hole[seat].String(),
		Chop:     res.Chop,
		Showdown: res.Showdown,
		Pot:      res.Pot,
		Stacks:   res.Stacks,
	}
	if res.Showdown {
		data.OpponentHole = res.Hole[seat.Other()].String()
		data.Category = res.Category.String()
	}
	if !res.Chop {
		data.Winner = names[res.Winner]
	}
	return data
}
