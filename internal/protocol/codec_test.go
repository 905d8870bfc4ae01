package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viettienlv97/game-server/internal/game"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Command
		wantErr error
	}{
		{
			name: "join table",
			raw:  `{"type":"join-table","data":{"tableId":"t1","buyinAmount":500}}`,
			want: JoinTable{TableID: "t1", BuyinAmount: 500},
		},
		{
			name: "legacy prefix",
			raw:  `{"type":"poker/leave-table","data":{"tableId":"t1"}}`,
			want: LeaveTable{TableID: "t1"},
		},
		{
			name: "raise",
			raw:  `{"type":"action","data":{"gameId":"g1","actionType":"raise","amount":40}}`,
			want: Action{GameID: "g1", ActionType: game.Raise, Amount: 40},
		},
		{
			name: "allin alias",
			raw:  `{"type":"action","data":{"gameId":"g1","actionType":"allin"}}`,
			want: Action{GameID: "g1", ActionType: game.AllIn},
		},
		{
			name: "get state",
			raw:  `{"type":"get-state","data":{"gameId":"g1"}}`,
			want: GetState{GameID: "g1"},
		},
		{name: "not json", raw: `{"type":`, wantErr: ErrInvalidMessage},
		{name: "no type", raw: `{"data":{}}`, wantErr: ErrInvalidMessage},
		{name: "missing data", raw: `{"type":"join-table"}`, wantErr: ErrInvalidMessage},
		{name: "missing table", raw: `{"type":"join-table","data":{"buyinAmount":500}}`, wantErr: ErrInvalidMessage},
		{name: "string amount", raw: `{"type":"join-table","data":{"tableId":"t1","buyinAmount":"500"}}`, wantErr: ErrInvalidMessage},
		{name: "bad action kind", raw: `{"type":"action","data":{"gameId":"g1","actionType":"bluff"}}`, wantErr: ErrInvalidMessage},
		{name: "negative amount", raw: `{"type":"action","data":{"gameId":"g1","actionType":"raise","amount":-5}}`, wantErr: ErrInvalidMessage},
		{name: "unknown type", raw: `{"type":"chat","data":{}}`, wantErr: ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode(TypePlayerJoined, PlayerJoined{UserID: "u1", Position: 2, StackAmount: 300})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"player-joined","data":{"userId":"u1","position":2,"stackAmount":300}}`, string(b))

	b, err = Encode(TypeActionError, ErrorData{Message: "Not your turn"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"action-error","data":{"message":"Not your turn"}}`, string(b))
}

func TestGameStateHidesInternalFields(t *testing.T) {
	g := game.New("g1", "t1", 1, 0, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, g.AddPlayer(&game.Player{ID: "p1", UserID: "u1", Stack: 100}))

	b, err := Encode(TypeGameState, GameState{GameState: g.ViewFor("u1")})
	require.NoError(t, err)

	var env struct {
		Type string `json:"type"`
		Data struct {
			GameState struct {
				Game    map[string]any   `json:"game"`
				Players []map[string]any `json:"players"`
				Actions []any            `json:"actions"`
			} `json:"gameState"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, TypeGameState, env.Type)
	assert.Equal(t, "waiting", env.Data.GameState.Game["status"])
	assert.NotContains(t, env.Data.GameState.Game, "Players")
	require.Len(t, env.Data.GameState.Players, 1)
	assert.Equal(t, float64(100), env.Data.GameState.Players[0]["stackAmount"])
	assert.NotContains(t, env.Data.GameState.Players[0], "StartStack")
	assert.Empty(t, env.Data.GameState.Actions)
}
