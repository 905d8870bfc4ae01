// Package protocol defines the JSON messages exchanged over the table
// websocket. Every frame is an envelope {"type": ..., "data": {...}}.
package protocol

import (
	"github.com/viettienlv97/game-server/internal/game"
)

// Client -> Server
const (
	TypeJoinTable  = "join-table"
	TypeLeaveTable = "leave-table"
	TypeAction     = "action"
	TypeGetState   = "get-state"
)

// Server -> Client
const (
	TypeConnected          = "connected"
	TypeJoinTableSuccess   = "join-table-success"
	TypeJoinTableError     = "join-table-error"
	TypePlayerJoined       = "player-joined"
	TypeLeaveTableSuccess  = "leave-table-success"
	TypeLeaveTableError    = "leave-table-error"
	TypePlayerLeft         = "player-left"
	TypeActionSuccess      = "action-success"
	TypeActionError        = "action-error"
	TypePlayerAction       = "player-action"
	TypeGameState          = "game-state"
	TypeGameStateUpdate    = "game-state-update"
	TypePlayerDisconnected = "player-disconnected"
	TypeError              = "error"
)

// Command is one decoded client request. The set of implementations is
// closed: JoinTable, LeaveTable, Action and GetState.
type Command interface {
	Type() string
}

type JoinTable struct {
	TableID     string `json:"tableId"`
	BuyinAmount int64  `json:"buyinAmount"`
}

type LeaveTable struct {
	TableID string `json:"tableId"`
}

// Action is a betting move. Amount only matters for raises.
type Action struct {
	GameID     string          `json:"gameId"`
	ActionType game.ActionKind `json:"actionType"`
	Amount     int64           `json:"amount,omitempty"`
}

type GetState struct {
	GameID string `json:"gameId"`
}

func (JoinTable) Type() string  { return TypeJoinTable }
func (LeaveTable) Type() string { return TypeLeaveTable }
func (Action) Type() string     { return TypeAction }
func (GetState) Type() string   { return TypeGetState }

// Server -> Client payloads

type Connected struct {
	UserID string `json:"userId"`
}

type JoinTableSuccess struct {
	Player  game.Player `json:"player"`
	TableID string      `json:"tableId"`
}

type PlayerJoined struct {
	UserID      string `json:"userId"`
	Position    int    `json:"position"`
	StackAmount int64  `json:"stackAmount"`
}

type LeaveTableSuccess struct {
	TableID string `json:"tableId"`
}

type PlayerLeft struct {
	UserID string `json:"userId"`
}

type ActionSuccess struct {
	GameID     string          `json:"gameId"`
	ActionType game.ActionKind `json:"actionType"`
	Amount     int64           `json:"amount"`
}

type PlayerAction struct {
	UserID     string          `json:"userId"`
	ActionType game.ActionKind `json:"actionType"`
	Amount     int64           `json:"amount"`
}

// GameState carries a per-recipient view for game-state and
// game-state-update.
type GameState struct {
	GameState game.View `json:"gameState"`
}

type PlayerDisconnected struct {
	UserID string `json:"userId"`
}

// ErrorData is the payload of every *-error event and of error.
type ErrorData struct {
	Message string `json:"message"`
}
