package game

import (
	"time"

	"github.com/viettienlv97/game-server/internal/apperr"
)

// ToCall returns what p must add to match the current bet.
func (g *Game) ToCall(p *Player) int64 {
	return max(g.CurrentBet-p.Bet, 0)
}

// Apply validates and applies one action by userID. The stack/pot transfer
// happens in a single step after all validation; the Action record is
// appended after it.
func (e Engine) Apply(g *Game, userID string, kind ActionKind, amount int64, now time.Time) (Outcome, error) {
	if !g.Status.Betting() {
		return Outcome{}, apperr.Validation("Game is not accepting actions")
	}
	p := g.PlayerByUser(userID)
	if p == nil || !p.Contesting() {
		return Outcome{}, apperr.Resource("Player not found or not active")
	}
	if p.Position != g.TurnPos {
		return Outcome{}, apperr.Validation("Not your turn")
	}

	toCall := g.ToCall(p)
	var move int64
	switch kind {
	case Fold:
	case Check:
		if toCall != 0 {
			return Outcome{}, apperr.Validation("Cannot check, %d to call", toCall)
		}
	case Call:
		if toCall == 0 {
			return Outcome{}, apperr.Validation("Nothing to call")
		}
		move = min(toCall, p.Stack)
	case Raise:
		if amount <= toCall {
			return Outcome{}, apperr.Validation("Raise must be greater than %d", toCall)
		}
		if amount > p.Stack {
			return Outcome{}, apperr.Validation("Raise exceeds stack of %d", p.Stack)
		}
		move = amount
	case AllIn:
		if p.Stack == 0 {
			return Outcome{}, apperr.Validation("No chips left")
		}
		move = p.Stack
	default:
		return Outcome{}, apperr.Validation("Unknown action type %q", kind)
	}

	round := g.Status
	g.transfer(p, kind, move)
	p.acted = true

	action := Action{
		ID:        e.NewID(),
		GameID:    g.ID,
		PlayerID:  p.ID,
		UserID:    p.UserID,
		Kind:      kind,
		Amount:    move,
		Round:     round,
		CreatedAt: now,
	}
	g.Actions = append(g.Actions, action)
	out := Outcome{Action: &action}

	contesting := g.Contesting()
	switch {
	case len(contesting) <= 1:
		e.awardUncontested(g, contesting, now, &out)
	case g.roundDone():
		e.advance(g, now, &out)
	default:
		g.TurnPos = g.nextToAct(p.Position)
	}
	return out, nil
}

// transfer is the single mutation step of an action.
func (g *Game) transfer(p *Player, kind ActionKind, move int64) {
	if kind == Fold {
		p.Folded = true
		return
	}
	p.Stack -= move
	p.Bet += move
	p.Contributed += move
	g.Pot += move
	if p.Stack == 0 && move > 0 {
		p.AllIn = true
	}
	if p.Bet > g.CurrentBet {
		g.CurrentBet = p.Bet
		// A raise reopens the action for everyone else.
		for _, other := range g.Players {
			if other != p {
				other.acted = false
			}
		}
	}
}
