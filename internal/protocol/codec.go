package protocol

import (
	"encoding/json"
	"strings"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/game"
)

var (
	// ErrInvalidMessage is returned for frames that are not a well-formed
	// envelope or whose payload does not fit the command.
	ErrInvalidMessage = apperr.Validation("Invalid message format")
	// ErrUnknownType is returned for envelopes naming no known command.
	ErrUnknownType = apperr.Validation("Unknown message type")
)

// legacyPrefix is accepted on inbound types for older clients.
const legacyPrefix = "poker/"

// Envelope is the outer shape of every frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeCommand parses one inbound frame.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
		return nil, ErrInvalidMessage
	}

	switch strings.TrimPrefix(env.Type, legacyPrefix) {
	case TypeJoinTable:
		var c JoinTable
		if err := decodeData(env.Data, &c); err != nil || c.TableID == "" || c.BuyinAmount <= 0 {
			return nil, ErrInvalidMessage
		}
		return c, nil
	case TypeLeaveTable:
		var c LeaveTable
		if err := decodeData(env.Data, &c); err != nil || c.TableID == "" {
			return nil, ErrInvalidMessage
		}
		return c, nil
	case TypeAction:
		var wire struct {
			GameID     string `json:"gameId"`
			ActionType string `json:"actionType"`
			Amount     int64  `json:"amount"`
		}
		if err := decodeData(env.Data, &wire); err != nil || wire.GameID == "" || wire.Amount < 0 {
			return nil, ErrInvalidMessage
		}
		kind, err := game.ParseActionKind(wire.ActionType)
		if err != nil {
			return nil, ErrInvalidMessage
		}
		return Action{GameID: wire.GameID, ActionType: kind, Amount: wire.Amount}, nil
	case TypeGetState:
		var c GetState
		if err := decodeData(env.Data, &c); err != nil || c.GameID == "" {
			return nil, ErrInvalidMessage
		}
		return c, nil
	}
	return nil, ErrUnknownType
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return ErrInvalidMessage
	}
	return json.Unmarshal(data, v)
}

// Encode builds an outbound frame.
func Encode(typ string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Data: payload})
}
