// Package game holds the authoritative hold'em state machine: dealing,
// blinds, the action processor, street transitions and pot settlement.
// Nothing in here is safe for concurrent use; callers serialize per game.
package game

import (
	rand "math/rand/v2"
	"time"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/deck"
	"github.com/viettienlv97/game-server/internal/evaluator"
)

// Engine carries the dependencies of state transitions.
type Engine struct {
	// Rake is the fraction of a showdown pot kept by the house.
	Rake float64
	// NewID mints identifiers for actions and hand records.
	NewID func() string
}

// Outcome describes what a transition did.
type Outcome struct {
	Action    *Action
	Streets   []Status
	Completed bool
	Record    *HandRecord
	Refund    int64
}

// Start deals a waiting game: shuffles a fresh deck, deals two hole cards
// to every active seat, sets the board aside and posts the blinds.
func (e Engine) Start(g *Game, rng *rand.Rand, smallBlind, bigBlind int64, now time.Time) (Outcome, error) {
	if g.Status != Waiting {
		return Outcome{}, apperr.Validation("Game already started")
	}
	if g.ActiveCount() < 2 {
		return Outcome{}, apperr.Validation("Not enough players to start")
	}

	d := deck.NewShuffled(rng)
	g.DealerPos = g.seatAtOrAfter(g.DealerPos).Position
	for _, p := range g.seatsFrom(g.DealerPos) {
		if !p.Active {
			continue
		}
		p.HoleCards = d.DealN(2)
		p.StartStack = p.Stack
		p.Bet, p.Contributed = 0, 0
		p.Folded, p.AllIn, p.acted = false, false, false
		p.Dealer = p.Position == g.DealerPos
		p.SmallBlind, p.BigBlind = false, false
	}
	g.board = d.DealN(5)
	g.Community = nil
	g.Pot, g.CurrentBet = 0, 0
	g.Status = Preflop

	sb := g.nextActive(g.DealerPos)
	if g.ActiveCount() == 2 {
		sb = g.PlayerAt(g.DealerPos)
	}
	bb := g.nextActive(sb.Position)
	sb.SmallBlind, bb.BigBlind = true, true
	g.post(sb, smallBlind)
	g.post(bb, bigBlind)

	var out Outcome
	if g.roundDone() {
		e.advance(g, now, &out)
		return out, nil
	}
	g.TurnPos = g.nextToAct(bb.Position)
	return out, nil
}

// post moves a forced bet from the seat's stack into the pot.
func (g *Game) post(p *Player, amount int64) {
	amount = min(amount, p.Stack)
	p.Stack -= amount
	p.Bet += amount
	p.Contributed += amount
	g.Pot += amount
	if p.Stack == 0 {
		p.AllIn = true
	}
	if p.Bet > g.CurrentBet {
		g.CurrentBet = p.Bet
	}
}

// Leave removes userID from the game. The remaining stack is returned in
// Outcome.Refund and zeroed on the seat.
func (e Engine) Leave(g *Game, userID string, now time.Time) (Outcome, error) {
	p := g.PlayerByUser(userID)
	if p == nil {
		return Outcome{}, apperr.Resource("Player not found at table")
	}

	wasTurn := g.Status.Betting() && g.TurnPos == p.Position
	out := Outcome{Refund: p.Stack}
	p.Stack = 0
	p.Active = false
	p.Folded = true
	left := now
	p.LeftAt = &left

	if !g.Status.Betting() {
		return out, nil
	}

	contesting := g.Contesting()
	if len(contesting) < 2 {
		e.awardUncontested(g, contesting, now, &out)
		return out, nil
	}
	if g.roundDone() {
		e.advance(g, now, &out)
	} else if wasTurn {
		g.TurnPos = g.nextToAct(p.Position)
	}
	return out, nil
}

// advance closes the current betting round and deals the next street. When
// fewer than two seats can still act the board is run out to showdown.
func (e Engine) advance(g *Game, now time.Time, out *Outcome) {
	for {
		for _, p := range g.Players {
			p.Bet = 0
			p.acted = false
		}
		g.CurrentBet = 0

		switch g.Status {
		case Preflop:
			g.reveal(3)
			g.Status = Flop
		case Flop:
			g.reveal(1)
			g.Status = Turn
		case Turn:
			g.reveal(1)
			g.Status = River
		case River:
			g.Status = Showdown
			out.Streets = append(out.Streets, Showdown)
			e.showdown(g, now, out)
			return
		default:
			return
		}
		out.Streets = append(out.Streets, g.Status)

		if g.countCanAct() >= 2 {
			g.TurnPos = g.nextToAct(g.DealerPos)
			return
		}
	}
}

func (g *Game) reveal(n int) {
	n = min(n, len(g.board))
	g.Community = append(g.Community, g.board[:n]...)
	g.board = g.board[n:]
}

// showdown evaluates every contesting seat, settles the pot among the best
// hands and completes the game.
func (e Engine) showdown(g *Game, now time.Time, out *Outcome) {
	contesting := g.Contesting()
	hands := make(map[string]evaluator.Hand, len(contesting))
	var best evaluator.Hand
	var winners []*Player
	for _, p := range contesting {
		cards := append(append([]deck.Card{}, p.HoleCards...), g.Community...)
		h, err := evaluator.Evaluate(cards)
		if err != nil {
			// Only reachable with a corrupted board; the seat cannot win.
			continue
		}
		hands[p.ID] = h
		switch c := evaluator.Compare(h, best); {
		case winners == nil || c > 0:
			best = h
			winners = []*Player{p}
		case c == 0:
			winners = append(winners, p)
		}
	}

	pot := g.Pot
	settlement := Settle(pot, winners, e.Rake)
	for _, pay := range settlement.Payouts {
		g.PlayerAt(pay.Position).Stack += pay.Amount
	}
	g.Rake = settlement.Rake
	g.Pot = 0

	record := e.record(g, pot, best.Name(), settlement, now)
	for i := range record.Results {
		if h, ok := hands[record.Results[i].PlayerID]; ok {
			record.Results[i].BestHand = h.Cards
			record.Results[i].HandName = h.Name()
		}
	}
	e.complete(g, record, now, out)
}

// awardUncontested pays the whole pot, without rake, to the last seat
// standing and completes the game.
func (e Engine) awardUncontested(g *Game, contesting []*Player, now time.Time, out *Outcome) {
	pot := g.Pot
	var settlement Settlement
	if len(contesting) == 1 {
		w := contesting[0]
		w.Stack += pot
		settlement.Payouts = []Payout{{PlayerID: w.ID, UserID: w.UserID, Position: w.Position, Amount: pot}}
		g.Pot = 0
	}
	e.complete(g, e.record(g, pot, "Uncontested", settlement, now), now, out)
}

func (e Engine) record(g *Game, pot int64, handName string, s Settlement, now time.Time) *HandRecord {
	won := make(map[string]bool, len(s.Payouts))
	for _, p := range s.Payouts {
		won[p.PlayerID] = true
	}
	results := make([]SeatResult, 0, len(g.Players))
	for _, p := range g.Players {
		results = append(results, SeatResult{
			PlayerID:   p.ID,
			UserID:     p.UserID,
			Position:   p.Position,
			HoleCards:  p.HoleCards,
			FinalStack: p.Stack,
			ProfitLoss: p.Stack - p.StartStack,
			Won:        won[p.ID],
		})
	}
	return &HandRecord{
		ID:        e.NewID(),
		GameID:    g.ID,
		HandName:  handName,
		Pot:       pot,
		Rake:      s.Rake,
		Winners:   s.Payouts,
		Results:   results,
		CreatedAt: now,
	}
}

func (e Engine) complete(g *Game, record *HandRecord, now time.Time, out *Outcome) {
	g.Status = Completed
	done := now
	g.CompletedAt = &done
	g.TurnPos = -1
	g.CurrentBet = 0
	g.Record = record
	for _, p := range g.Players {
		p.Bet = 0
	}
	out.Completed = true
	out.Record = record
}

// Void abandons the game without a showdown. Every seat gets back its
// stack plus what it put into the pot; the returned payouts are what the
// table owes each user. The game is left completed with all stacks zeroed.
func (e Engine) Void(g *Game, now time.Time) []Payout {
	var refunds []Payout
	for _, p := range g.Players {
		amount := p.Stack + p.Contributed
		if g.Status == Waiting || g.Status == Completed {
			amount = p.Stack
		}
		if amount > 0 {
			refunds = append(refunds, Payout{PlayerID: p.ID, UserID: p.UserID, Position: p.Position, Amount: amount})
		}
		p.Stack, p.Bet = 0, 0
		p.Active = false
		if p.LeftAt == nil {
			left := now
			p.LeftAt = &left
		}
	}
	g.Pot = 0
	if g.Status != Completed {
		g.Status = Completed
		done := now
		g.CompletedAt = &done
	}
	g.TurnPos, g.CurrentBet = -1, 0
	return refunds
}

// Funded returns the active seats that can play another hand.
func (g *Game) Funded() []*Player {
	var out []*Player
	for _, p := range g.Players {
		if p.Active && p.Stack > 0 {
			out = append(out, p)
		}
	}
	return out
}

// NextDealer returns the position after the current dealer among funded seats.
func (g *Game) NextDealer() int {
	for _, p := range g.seatsFrom(g.DealerPos + 1) {
		if p.Active && p.Stack > 0 {
			return p.Position
		}
	}
	return g.DealerPos
}

// seatsFrom returns all seats in cyclic position order starting at the
// first seat with position >= pos.
func (g *Game) seatsFrom(pos int) []*Player {
	out := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.Position >= pos {
			out = append(out, p)
		}
	}
	for _, p := range g.Players {
		if p.Position < pos {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) seatAtOrAfter(pos int) *Player {
	for _, p := range g.seatsFrom(pos) {
		if p.Active {
			return p
		}
	}
	return nil
}

// nextActive returns the next active seat strictly after pos, wrapping.
func (g *Game) nextActive(pos int) *Player {
	return g.seatAtOrAfter(pos + 1)
}

// nextToAct returns the position of the next seat strictly after pos that
// can act, wrapping around, or -1 if none can.
func (g *Game) nextToAct(pos int) int {
	for _, p := range g.seatsFrom(pos + 1) {
		if p.CanAct() {
			return p.Position
		}
	}
	return -1
}

func (g *Game) countCanAct() int {
	n := 0
	for _, p := range g.Players {
		if p.CanAct() {
			n++
		}
	}
	return n
}

// roundDone reports whether the betting round is closed: every seat that
// can still act has acted since the last raise and matched the bet.
func (g *Game) roundDone() bool {
	var actors []*Player
	for _, p := range g.Players {
		if p.CanAct() {
			actors = append(actors, p)
		}
	}
	switch len(actors) {
	case 0:
		return true
	case 1:
		if actors[0].Bet >= g.CurrentBet {
			return true
		}
	}
	for _, p := range actors {
		if !p.acted || p.Bet != g.CurrentBet {
			return false
		}
	}
	return true
}
