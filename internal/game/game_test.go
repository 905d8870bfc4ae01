package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/randutil"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func testEngine(rake float64) Engine {
	n := 0
	return Engine{
		Rake: rake,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
}

// seated builds a waiting game with one seat per stack at positions 0..n-1,
// held by users u0..un-1.
func seated(t *testing.T, stacks ...int64) *Game {
	t.Helper()
	g := New("g1", "t1", 1, 0, epoch)
	for i, stack := range stacks {
		require.NoError(t, g.AddPlayer(&Player{
			ID:       fmt.Sprintf("p%d", i),
			UserID:   fmt.Sprintf("u%d", i),
			Position: i,
			Stack:    stack,
		}))
	}
	return g
}

func started(t *testing.T, e Engine, stacks ...int64) *Game {
	t.Helper()
	g := seated(t, stacks...)
	_, err := e.Start(g, randutil.New(7), 5, 10, epoch)
	require.NoError(t, err)
	return g
}

func apply(t *testing.T, e Engine, g *Game, user string, kind ActionKind, amount int64) Outcome {
	t.Helper()
	out, err := e.Apply(g, user, kind, amount, epoch)
	require.NoError(t, err)
	return out
}

func chips(g *Game) int64 {
	total := g.Pot + g.Rake
	for _, p := range g.Players {
		total += p.Stack
	}
	return total
}

func TestSettle(t *testing.T) {
	seat := func(pos int) *Player {
		return &Player{ID: fmt.Sprintf("p%d", pos), Position: pos}
	}

	tests := []struct {
		name     string
		pot      int64
		winners  []*Player
		rake     float64
		wantRake int64
		want     []int64
	}{
		{"single winner with rake", 101, []*Player{seat(2)}, 0.05, 5, []int64{96}},
		{"odd chip to lowest position", 101, []*Player{seat(3), seat(1)}, 0, 0, []int64{51, 50}},
		{"three way split with rake", 100, []*Player{seat(4), seat(0), seat(2)}, 0.05, 5, []int64{32, 32, 31}},
		{"rake floors", 19, []*Player{seat(0)}, 0.05, 0, []int64{19}},
		{"no winners", 50, nil, 0.05, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(tt.pot, tt.winners, tt.rake)
			assert.Equal(t, tt.wantRake, s.Rake)

			var got []int64
			for i, p := range s.Payouts {
				got = append(got, p.Amount)
				if i > 0 {
					assert.Less(t, s.Payouts[i-1].Position, p.Position)
				}
			}
			assert.Equal(t, tt.want, got)
			if len(tt.winners) > 0 {
				assert.Equal(t, tt.pot, s.Total()+s.Rake)
			}
		})
	}
}

func TestSettleConservesChips(t *testing.T) {
	rng := randutil.New(11)
	for i := 0; i < 1000; i++ {
		pot := rng.Int64N(100000) + 1
		n := rng.IntN(9) + 1
		winners := make([]*Player, n)
		for j := range winners {
			winners[j] = &Player{Position: j}
		}
		s := Settle(pot, winners, float64(rng.IntN(11))/100)
		require.Equal(t, pot, s.Total()+s.Rake, "pot %d winners %d", pot, n)
	}
}

func TestStartPostsBlinds(t *testing.T) {
	t.Run("heads up dealer posts small blind", func(t *testing.T) {
		g := started(t, testEngine(0), 100, 100)

		assert.Equal(t, Preflop, g.Status)
		assert.Equal(t, int64(15), g.Pot)
		assert.Equal(t, int64(10), g.CurrentBet)
		assert.True(t, g.PlayerAt(0).Dealer)
		assert.True(t, g.PlayerAt(0).SmallBlind)
		assert.True(t, g.PlayerAt(1).BigBlind)
		assert.Equal(t, int64(95), g.PlayerAt(0).Stack)
		assert.Equal(t, int64(90), g.PlayerAt(1).Stack)
		assert.Equal(t, 0, g.TurnPos)
		assert.Empty(t, g.Community)
		for _, p := range g.Players {
			assert.Len(t, p.HoleCards, 2)
		}
	})

	t.Run("three handed", func(t *testing.T) {
		g := started(t, testEngine(0), 100, 100, 100)

		assert.True(t, g.PlayerAt(1).SmallBlind)
		assert.True(t, g.PlayerAt(2).BigBlind)
		assert.Equal(t, 0, g.TurnPos)
	})

	t.Run("needs two seats", func(t *testing.T) {
		g := seated(t, 100)
		_, err := testEngine(0).Start(g, randutil.New(1), 5, 10, epoch)
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestApplyValidation(t *testing.T) {
	e := testEngine(0)

	tests := []struct {
		name   string
		user   string
		kind   ActionKind
		amount int64
		want   apperr.Kind
	}{
		{"not your turn", "u1", Check, 0, apperr.KindValidation},
		{"unknown user", "nobody", Fold, 0, apperr.KindResource},
		{"check facing a bet", "u0", Check, 0, apperr.KindValidation},
		{"raise not above call", "u0", Raise, 5, apperr.KindValidation},
		{"raise above stack", "u0", Raise, 96, apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := started(t, e, 100, 100)
			before := g.Clone()

			_, err := e.Apply(g, tt.user, tt.kind, tt.amount, epoch)
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
			assert.Equal(t, before.Pot, g.Pot)
			assert.Empty(t, g.Actions)
		})
	}

	t.Run("call with nothing to call", func(t *testing.T) {
		g := started(t, e, 100, 100)
		apply(t, e, g, "u0", Call, 0)

		_, err := e.Apply(g, "u1", Call, 0, epoch)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("completed game rejects actions", func(t *testing.T) {
		g := started(t, e, 100, 100)
		apply(t, e, g, "u0", Fold, 0)

		_, err := e.Apply(g, "u1", Check, 0, epoch)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestCallCappedByStack(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 200, 40, 200)

	apply(t, e, g, "u0", Raise, 100)
	require.Equal(t, 1, g.TurnPos)
	require.Equal(t, int64(95), g.ToCall(g.PlayerAt(1)))

	out := apply(t, e, g, "u1", Call, 0)

	short := g.PlayerAt(1)
	assert.Equal(t, int64(35), out.Action.Amount)
	assert.Equal(t, int64(0), short.Stack)
	assert.True(t, short.AllIn)
	assert.Equal(t, int64(150), g.Pot)
	assert.Equal(t, int64(100), g.CurrentBet)
	assert.Equal(t, 2, g.TurnPos)
	assert.Equal(t, int64(440), chips(g))
}

func TestFoldToOneAwardsWholePot(t *testing.T) {
	e := testEngine(0.05)
	g := started(t, e, 100, 100)

	out := apply(t, e, g, "u0", Fold, 0)

	require.True(t, out.Completed)
	assert.Equal(t, Completed, g.Status)
	assert.Equal(t, int64(0), g.Pot)
	assert.Equal(t, int64(0), g.Rake)
	assert.Equal(t, int64(105), g.PlayerAt(1).Stack)
	assert.Equal(t, int64(95), g.PlayerAt(0).Stack)
	assert.Equal(t, -1, g.TurnPos)
	assert.NotNil(t, g.CompletedAt)

	require.NotNil(t, out.Record)
	assert.Equal(t, "Uncontested", out.Record.HandName)
	assert.Equal(t, int64(15), out.Record.Pot)
	require.Len(t, out.Record.Winners, 1)
	assert.Equal(t, "u1", out.Record.Winners[0].UserID)
	for _, r := range out.Record.Results {
		switch r.UserID {
		case "u0":
			assert.Equal(t, int64(-5), r.ProfitLoss)
		case "u1":
			assert.Equal(t, int64(5), r.ProfitLoss)
			assert.True(t, r.Won)
		}
	}
}

func TestSeatTakenMidHandSitsOut(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100)
	require.NoError(t, g.AddPlayer(&Player{ID: "p2", UserID: "u2", Position: 2, Stack: 300}))

	late := g.PlayerAt(2)
	assert.True(t, late.Active)
	assert.True(t, late.Folded)
	assert.False(t, late.Contesting())
	assert.Empty(t, late.HoleCards)
	assert.Equal(t, int64(300), late.StartStack)

	_, err := e.Apply(g, "u2", Fold, 0, epoch)
	assert.Equal(t, apperr.KindResource, apperr.KindOf(err))

	out := apply(t, e, g, "u0", Fold, 0)
	require.True(t, out.Completed)
	assert.Equal(t, int64(105), g.PlayerAt(1).Stack)
	assert.Equal(t, int64(300), late.Stack)
	require.Len(t, out.Record.Winners, 1)
	assert.Equal(t, "u1", out.Record.Winners[0].UserID)
	for _, r := range out.Record.Results {
		if r.UserID == "u2" {
			assert.Zero(t, r.ProfitLoss)
		}
	}
}

func TestTurnOrderSkipsFoldedSeats(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100, 100, 100)
	require.Equal(t, 3, g.TurnPos)

	apply(t, e, g, "u3", Fold, 0)
	assert.Equal(t, 0, g.TurnPos)
	apply(t, e, g, "u0", Call, 0)
	assert.Equal(t, 1, g.TurnPos)
	apply(t, e, g, "u1", Call, 0)
	assert.Equal(t, 2, g.TurnPos)

	out := apply(t, e, g, "u2", Check, 0)
	assert.Equal(t, []Status{Flop}, out.Streets)
	assert.Equal(t, Flop, g.Status)
	assert.Len(t, g.Community, 3)
	assert.Equal(t, int64(0), g.CurrentBet)
	assert.Equal(t, 1, g.TurnPos)

	apply(t, e, g, "u1", Check, 0)
	apply(t, e, g, "u2", Check, 0)
	assert.Equal(t, 0, g.TurnPos)
}

func TestRaiseReopensAction(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100, 100)

	apply(t, e, g, "u0", Call, 0)
	apply(t, e, g, "u1", Call, 0)
	apply(t, e, g, "u2", Raise, 20)
	assert.Equal(t, Preflop, g.Status)
	assert.Equal(t, int64(30), g.CurrentBet)
	assert.Equal(t, 0, g.TurnPos)

	apply(t, e, g, "u0", Call, 0)
	out := apply(t, e, g, "u1", Call, 0)
	assert.Equal(t, []Status{Flop}, out.Streets)
	assert.Equal(t, int64(90), g.Pot)
}

func TestHandPlaysToShowdown(t *testing.T) {
	e := testEngine(0.05)
	g := started(t, e, 100, 100)

	apply(t, e, g, "u0", Call, 0)
	apply(t, e, g, "u1", Check, 0)
	require.Equal(t, Flop, g.Status)
	// Heads-up the big blind acts first after the flop.
	require.Equal(t, 1, g.TurnPos)

	var last Outcome
	for _, street := range []Status{Flop, Turn, River} {
		require.Equal(t, street, g.Status)
		apply(t, e, g, "u1", Check, 0)
		last = apply(t, e, g, "u0", Check, 0)
	}

	require.True(t, last.Completed)
	assert.Equal(t, []Status{Showdown}, last.Streets)
	assert.Equal(t, Completed, g.Status)
	assert.Len(t, g.Community, 5)
	assert.Equal(t, int64(1), g.Rake)
	assert.Equal(t, int64(0), g.Pot)
	assert.Equal(t, int64(200), chips(g))

	require.NotNil(t, last.Record)
	assert.NotEmpty(t, last.Record.HandName)
	assert.Equal(t, int64(20), last.Record.Pot)
	for _, r := range last.Record.Results {
		assert.Len(t, r.BestHand, 5)
		assert.NotEmpty(t, r.HandName)
	}
	assert.Len(t, g.Actions, 8)
}

func TestAllInRunsOutBoard(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100)

	apply(t, e, g, "u0", AllIn, 0)
	assert.Equal(t, int64(100), g.CurrentBet)
	assert.Equal(t, 1, g.TurnPos)

	out := apply(t, e, g, "u1", Call, 0)

	assert.Equal(t, []Status{Flop, Turn, River, Showdown}, out.Streets)
	assert.True(t, out.Completed)
	assert.Len(t, g.Community, 5)
	assert.Equal(t, int64(200), chips(g))
}

func TestLeave(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100, 100)
	require.Equal(t, 0, g.TurnPos)

	out, err := e.Leave(g, "u0", epoch)
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.Refund)
	assert.False(t, out.Completed)
	assert.Equal(t, 1, g.TurnPos)
	assert.NotNil(t, g.PlayerAt(0).LeftAt)
	assert.Nil(t, g.PlayerByUser("u0"))

	out, err = e.Leave(g, "u1", epoch)
	require.NoError(t, err)
	assert.Equal(t, int64(95), out.Refund)
	assert.True(t, out.Completed)
	assert.Equal(t, int64(105), g.PlayerAt(2).Stack)

	_, err = e.Leave(g, "u1", epoch)
	assert.Equal(t, apperr.KindResource, apperr.KindOf(err))
}

func TestViewRedactsHoleCards(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100)

	v := g.ViewFor("u0")
	require.Len(t, v.Players, 2)
	assert.Len(t, v.Players[0].HoleCards, 2)
	assert.Empty(t, v.Players[1].HoleCards)
	assert.Equal(t, g.ID, v.Game.ID)

	apply(t, e, g, "u0", Fold, 0)
	v = g.ViewFor("u0")
	assert.Len(t, v.Players[1].HoleCards, 2)

	spectator := g.ViewFor("someone-else")
	for _, p := range spectator.Players {
		assert.Len(t, p.HoleCards, 2)
	}
}

func TestViewKeepsRecentActionsNewestFirst(t *testing.T) {
	g := seated(t, 100, 100)
	for i := 0; i < 25; i++ {
		g.Actions = append(g.Actions, Action{ID: fmt.Sprintf("a%d", i)})
	}

	v := g.ViewFor("u0")
	require.Len(t, v.Actions, RecentActions)
	assert.Equal(t, "a24", v.Actions[0].ID)
	assert.Equal(t, "a5", v.Actions[RecentActions-1].ID)
}

func TestRestoreRollsBack(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100)
	snapshot := g.Clone()

	apply(t, e, g, "u0", Raise, 50)
	require.NotEqual(t, snapshot.Pot, g.Pot)

	g.Restore(snapshot)
	assert.Equal(t, int64(15), g.Pot)
	assert.Equal(t, int64(95), g.PlayerAt(0).Stack)
	assert.Empty(t, g.Actions)
	assert.NotSame(t, snapshot.Players[0], g.Players[0])
}

func TestParseActionKind(t *testing.T) {
	for in, want := range map[string]ActionKind{
		"fold": Fold, "check": Check, "call": Call, "raise": Raise, "all-in": AllIn, "allin": AllIn,
	} {
		got, err := ParseActionKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseActionKind("bet")
	assert.Error(t, err)
}

func TestVoidReturnsContributions(t *testing.T) {
	e := testEngine(0)
	g := started(t, e, 100, 100, 100)

	apply(t, e, g, "u0", Raise, 25)
	_, err := e.Leave(g, "u1", epoch)
	require.NoError(t, err)
	before := g.Pot + g.PlayerAt(0).Stack + g.PlayerAt(2).Stack

	refunds := e.Void(g, epoch)

	got := map[string]int64{}
	var total int64
	for _, r := range refunds {
		got[r.UserID] = r.Amount
		total += r.Amount
	}
	assert.Equal(t, map[string]int64{"u0": 100, "u1": 5, "u2": 100}, got)
	assert.Equal(t, before, total)
	assert.Equal(t, Completed, g.Status)
	assert.Equal(t, int64(0), g.Pot)
	assert.Zero(t, g.ActiveCount())
}
