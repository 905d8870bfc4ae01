package store

import (
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm/schema"

	"github.com/viettienlv97/game-server/internal/deck"
	"github.com/viettienlv97/game-server/internal/game"
)

var stamp = time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

// viaDriver pushes j through its SQL encoding and back.
func viaDriver[T any](t *testing.T, j datatypes.JSONType[T]) T {
	t.Helper()
	v, err := j.Value()
	require.NoError(t, err)
	var back datatypes.JSONType[T]
	require.NoError(t, back.Scan(v))
	return back.Data()
}

func TestTableRowRoundTrip(t *testing.T) {
	tbl := game.Table{
		ID:            "t1",
		Name:          "main",
		SmallBlind:    5,
		BigBlind:      10,
		MinBuyin:      100,
		MaxBuyin:      1000,
		MaxPlayers:    6,
		Status:        game.TablePlaying,
		CreatedBy:     "owner",
		GameNumber:    12,
		RakeCollected: 45,
		CreatedAt:     stamp,
	}

	row := tableToRow(&tbl)
	assert.Equal(t, "playing", row.Status)
	assert.Equal(t, tbl, row.table())
}

func TestGameToRows(t *testing.T) {
	g := game.New("g1", "t1", 3, 1, stamp)
	require.NoError(t, g.AddPlayer(&game.Player{ID: "p0", UserID: "alice", Position: 0, Stack: 200}))
	require.NoError(t, g.AddPlayer(&game.Player{ID: "p1", UserID: "bob", Position: 1, Stack: 300}))

	row, players := gameToRows(g)
	assert.Equal(t, "waiting", row.Status)
	assert.Equal(t, 3, row.GameNumber)
	assert.Equal(t, 1, row.DealerPosition)
	assert.Equal(t, -1, row.CurrentPosition)
	assert.Nil(t, row.CompletedAt)
	cards := viaDriver(t, row.CommunityCards)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)

	require.Len(t, players, 2)
	for _, p := range players {
		assert.Equal(t, "g1", p.GameID)
		assert.True(t, p.IsActive)
		assert.Empty(t, viaDriver(t, p.HoleCards))
	}

	left := stamp.Add(time.Minute)
	g.Status = game.Flop
	g.TurnPos = 1
	g.Pot = 40
	g.CurrentBet = 10
	g.Community = []deck.Card{
		deck.NewCard(deck.Hearts, deck.Ace),
		deck.NewCard(deck.Spades, deck.Ten),
		deck.NewCard(deck.Clubs, deck.Two),
	}
	bob := g.PlayerAt(1)
	bob.HoleCards = []deck.Card{deck.NewCard(deck.Diamonds, deck.King), deck.NewCard(deck.Diamonds, deck.Queen)}
	bob.Bet = 10
	bob.Dealer = true
	bob.Folded = true
	bob.LeftAt = &left

	row, players = gameToRows(g)
	assert.Equal(t, "flop", row.Status)
	assert.Equal(t, 1, row.CurrentPosition)
	assert.Equal(t, int64(40), row.PotAmount)
	assert.Equal(t, int64(10), row.CurrentBet)
	assert.Equal(t, g.Community, viaDriver(t, row.CommunityCards))

	b := players[1]
	assert.Equal(t, "p1", b.ID)
	assert.Equal(t, "bob", b.UserID)
	assert.Equal(t, int64(300), b.StackAmount)
	assert.Equal(t, int64(10), b.CurrentBet)
	assert.True(t, b.IsDealer)
	assert.True(t, b.IsFolded)
	assert.False(t, b.IsSmallBlind)
	require.NotNil(t, b.LeftAt)
	assert.Equal(t, left, *b.LeftAt)
	assert.Equal(t, bob.HoleCards, viaDriver(t, b.HoleCards))
}

func TestActionToRow(t *testing.T) {
	row := actionToRow(game.Action{
		ID: "a1", GameID: "g1", PlayerID: "p0", UserID: "alice",
		Kind: game.Raise, Amount: 45, Round: game.Preflop, CreatedAt: stamp,
	})
	assert.Equal(t, actionRow{
		ID: "a1", GameID: "g1", PlayerID: "p0", UserID: "alice",
		ActionType: "raise", Amount: 45, Round: "preflop", CreatedAt: stamp,
	}, row)
}

func TestHandRowRoundTrip(t *testing.T) {
	hole := []deck.Card{deck.NewCard(deck.Spades, deck.Ace), deck.NewCard(deck.Hearts, deck.Ace)}
	rec := game.HandRecord{
		ID:       "h1",
		GameID:   "g1",
		HandName: "One Pair",
		Pot:      100,
		Rake:     5,
		Winners:  []game.Payout{{PlayerID: "p0", UserID: "alice", Position: 0, Amount: 95}},
		Results: []game.SeatResult{
			{PlayerID: "p0", UserID: "alice", Position: 0, HoleCards: hole, HandName: "One Pair", FinalStack: 545, ProfitLoss: 45, Won: true},
			{PlayerID: "p1", UserID: "bob", Position: 1, HoleCards: []deck.Card{}, FinalStack: 450, ProfitLoss: -50},
		},
		CreatedAt: stamp,
	}

	row := recordToRow(&rec)
	assert.Equal(t, "One Pair", row.HandRank)
	assert.Equal(t, int64(100), row.PotAmount)
	assert.Equal(t, int64(5), row.RakeAmount)
	assert.Equal(t, rec, row.record())

	assert.Equal(t, rec.Winners, viaDriver(t, row.Winners))
	results := viaDriver(t, row.Results)
	require.Len(t, results, 2)
	assert.Equal(t, hole, results[0].HoleCards)
	assert.Equal(t, int64(-50), results[1].ProfitLoss)
}

// createTable returns the column block of the CREATE TABLE statement for
// name in sql.
func createTable(t *testing.T, sql, name string) string {
	t.Helper()
	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + name + ` \((.*?)\n\);`)
	m := re.FindStringSubmatch(sql)
	require.NotNil(t, m, "no CREATE TABLE for %s", name)
	return m[1]
}

func TestRowsMatchMigration(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()
	first, err := src.First()
	require.NoError(t, err)
	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	sql, err := io.ReadAll(up)
	require.NoError(t, err)
	require.NoError(t, up.Close())

	cache := &sync.Map{}
	for _, model := range []any{&tableRow{}, &gameRow{}, &playerRow{}, &actionRow{}, &handRow{}} {
		s, err := schema.Parse(model, cache, schema.NamingStrategy{})
		require.NoError(t, err)
		t.Run(s.Table, func(t *testing.T) {
			block := createTable(t, string(sql), s.Table)
			for _, f := range s.Fields {
				if f.DBName == "" {
					continue
				}
				col := regexp.MustCompile(`(?m)^\s+` + f.DBName + `\s`)
				assert.True(t, col.MatchString(block), "column %s.%s missing from migration", s.Table, f.DBName)
			}
		})
	}
}

func TestMigrationDownDropsEveryTable(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()
	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	sql, err := io.ReadAll(down)
	require.NoError(t, err)
	require.NoError(t, down.Close())

	for _, table := range []string{
		tableRow{}.TableName(), gameRow{}.TableName(), playerRow{}.TableName(),
		actionRow{}.TableName(), handRow{}.TableName(), "wallet_balances", "wallet_transactions",
	} {
		assert.True(t, strings.Contains(string(sql), "DROP TABLE IF EXISTS "+table+";"), table)
	}
}
