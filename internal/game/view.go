package game

import "github.com/viettienlv97/game-server/internal/deck"

// RecentActions is how many log entries a view carries.
const RecentActions = 20

// View is the game state as seen by one user.
type View struct {
	Game    Game     `json:"game"`
	Players []Player `json:"players"`
	Actions []Action `json:"actions"`
}

// ViewFor builds the snapshot for userID. Other seats' hole cards are
// hidden until the hand is revealed. Actions are newest first.
func (g *Game) ViewFor(userID string) View {
	v := View{
		Game:    *g,
		Players: make([]Player, 0, len(g.Players)),
		Actions: make([]Action, 0, min(len(g.Actions), RecentActions)),
	}
	v.Game.Community = append([]deck.Card{}, g.Community...)
	v.Game.Players, v.Game.Actions, v.Game.Record, v.Game.board = nil, nil, nil, nil

	for _, p := range g.Players {
		seat := *p
		if p.UserID == userID || g.Status.Revealed() {
			seat.HoleCards = append([]deck.Card{}, p.HoleCards...)
		} else {
			seat.HoleCards = []deck.Card{}
		}
		v.Players = append(v.Players, seat)
	}
	for i := len(g.Actions) - 1; i >= 0 && len(v.Actions) < RecentActions; i-- {
		v.Actions = append(v.Actions, g.Actions[i])
	}
	return v
}
