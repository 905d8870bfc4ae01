package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/viettienlv97/game-server/internal/deck"
)

// TableStatus is the lifecycle of a table.
type TableStatus string

const (
	TableWaiting TableStatus = "waiting"
	TablePlaying TableStatus = "playing"
	TablePaused  TableStatus = "paused"
	TableClosed  TableStatus = "closed"
)

// Table is a configured table. Players never mutate it directly.
type Table struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SmallBlind    int64       `json:"smallBlind"`
	BigBlind      int64       `json:"bigBlind"`
	MinBuyin      int64       `json:"minBuyin"`
	MaxBuyin      int64       `json:"maxBuyin"`
	MaxPlayers    int         `json:"maxPlayers"`
	Status        TableStatus `json:"status"`
	CreatedBy     string      `json:"createdBy"`
	GameNumber    int         `json:"gameNumber"`
	RakeCollected int64       `json:"rakeCollected"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Status is the lifecycle of a single game.
type Status string

const (
	Waiting   Status = "waiting"
	Preflop   Status = "preflop"
	Flop      Status = "flop"
	Turn      Status = "turn"
	River     Status = "river"
	Showdown  Status = "showdown"
	Completed Status = "completed"
)

// Betting reports whether players act in this status.
func (s Status) Betting() bool {
	switch s {
	case Preflop, Flop, Turn, River:
		return true
	}
	return false
}

// Revealed reports whether hole cards are public in this status.
func (s Status) Revealed() bool {
	return s == Showdown || s == Completed
}

// ActionKind is what a player does on their turn.
type ActionKind string

const (
	Fold  ActionKind = "fold"
	Check ActionKind = "check"
	Call  ActionKind = "call"
	Raise ActionKind = "raise"
	AllIn ActionKind = "all-in"
)

// ParseActionKind accepts the wire names, including the legacy "allin".
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	case "all-in", "allin":
		return AllIn, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// Player is a seat occupied by a user within one game.
type Player struct {
	ID          string      `json:"id"`
	GameID      string      `json:"gameId"`
	UserID      string      `json:"userId"`
	Position    int         `json:"position"`
	HoleCards   []deck.Card `json:"holeCards"`
	Stack       int64       `json:"stackAmount"`
	Bet         int64       `json:"currentBet"`
	StartStack  int64       `json:"-"`
	Contributed int64       `json:"-"` // chips put into the pot this game
	Active      bool        `json:"isActive"`
	Folded      bool        `json:"isFolded"`
	AllIn       bool        `json:"isAllIn"`
	Dealer      bool        `json:"isDealer"`
	SmallBlind  bool        `json:"isSmallBlind"`
	BigBlind    bool        `json:"isBigBlind"`
	LeftAt      *time.Time  `json:"leftAt,omitempty"`

	acted bool
}

// Contesting reports whether the seat can still win the pot.
func (p *Player) Contesting() bool {
	return p.Active && !p.Folded
}

// CanAct reports whether the seat still takes turns.
func (p *Player) CanAct() bool {
	return p.Contesting() && !p.AllIn
}

// Action is an append-only log record.
type Action struct {
	ID        string     `json:"id"`
	GameID    string     `json:"gameId"`
	PlayerID  string     `json:"playerId"`
	UserID    string     `json:"userId"`
	Kind      ActionKind `json:"actionType"`
	Amount    int64      `json:"amount"`
	Round     Status     `json:"round"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Payout is the share of a pot paid to one winning seat.
type Payout struct {
	PlayerID string `json:"playerId"`
	UserID   string `json:"userId"`
	Position int    `json:"position"`
	Amount   int64  `json:"amount"`
}

// SeatResult is one seat's line in a hand record.
type SeatResult struct {
	PlayerID   string      `json:"playerId"`
	UserID     string      `json:"userId"`
	Position   int         `json:"position"`
	HoleCards  []deck.Card `json:"holeCards"`
	BestHand   []deck.Card `json:"bestHand,omitempty"`
	HandName   string      `json:"handRank,omitempty"`
	FinalStack int64       `json:"finalAmount"`
	ProfitLoss int64       `json:"profitLoss"`
	Won        bool        `json:"wonPot"`
}

// HandRecord is written once per completed game.
type HandRecord struct {
	ID        string       `json:"id"`
	GameID    string       `json:"gameId"`
	HandName  string       `json:"handRank"`
	Pot       int64        `json:"pot"`
	Rake      int64        `json:"rake"`
	Winners   []Payout     `json:"winners"`
	Results   []SeatResult `json:"results"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Game is the authoritative state of one hand at a table.
type Game struct {
	ID          string      `json:"id"`
	TableID     string      `json:"tableId"`
	Number      int         `json:"gameNumber"`
	Status      Status      `json:"status"`
	DealerPos   int         `json:"dealerPosition"`
	TurnPos     int         `json:"currentPlayerPosition"`
	Pot         int64       `json:"potAmount"`
	CurrentBet  int64       `json:"currentBet"`
	Community   []deck.Card `json:"communityCards"`
	Rake        int64       `json:"rakeAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`

	Players []*Player   `json:"-"`
	Actions []Action    `json:"-"`
	Record  *HandRecord `json:"-"`

	board []deck.Card
}

// New returns a waiting game with no seats.
func New(id, tableID string, number, dealerPos int, now time.Time) *Game {
	return &Game{
		ID:        id,
		TableID:   tableID,
		Number:    number,
		Status:    Waiting,
		DealerPos: dealerPos,
		TurnPos:   -1,
		CreatedAt: now,
	}
}

// AddPlayer seats p, keeping seats ordered by position. A seat taken while
// a hand is being played sits out, folded, until the next deal.
func (g *Game) AddPlayer(p *Player) error {
	if g.Status == Completed {
		return fmt.Errorf("game %s is completed", g.ID)
	}
	for _, other := range g.Players {
		if other.Position == p.Position {
			return fmt.Errorf("position %d already taken", p.Position)
		}
	}
	p.GameID = g.ID
	p.Active = true
	p.StartStack = p.Stack
	if g.Status.Betting() {
		p.Folded = true
	}
	g.Players = append(g.Players, p)
	slices.SortFunc(g.Players, func(a, b *Player) int { return a.Position - b.Position })
	return nil
}

// PlayerByUser returns the active seat held by userID.
func (g *Game) PlayerByUser(userID string) *Player {
	for _, p := range g.Players {
		if p.UserID == userID && p.Active {
			return p
		}
	}
	return nil
}

// PlayerAt returns the seat at position pos, active or not.
func (g *Game) PlayerAt(pos int) *Player {
	for _, p := range g.Players {
		if p.Position == pos {
			return p
		}
	}
	return nil
}

// ActiveCount is the number of seats still occupied.
func (g *Game) ActiveCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Active {
			n++
		}
	}
	return n
}

// Contesting returns the seats that can still win the pot.
func (g *Game) Contesting() []*Player {
	var out []*Player
	for _, p := range g.Players {
		if p.Contesting() {
			out = append(out, p)
		}
	}
	return out
}

// FreePosition returns the lowest position not used in this game.
func (g *Game) FreePosition() int {
	pos := 0
	for {
		if g.PlayerAt(pos) == nil {
			return pos
		}
		pos++
	}
}

// Clone returns a deep copy used to roll back a failed mutation.
func (g *Game) Clone() *Game {
	c := *g
	c.Community = slices.Clone(g.Community)
	c.board = slices.Clone(g.board)
	c.Actions = slices.Clone(g.Actions)
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		c.CompletedAt = &t
	}
	if g.Record != nil {
		r := *g.Record
		c.Record = &r
	}
	c.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		cp.HoleCards = slices.Clone(p.HoleCards)
		if p.LeftAt != nil {
			t := *p.LeftAt
			cp.LeftAt = &t
		}
		c.Players[i] = &cp
	}
	return &c
}

// Restore copies the state of snapshot back into g.
func (g *Game) Restore(snapshot *Game) {
	*g = *snapshot.Clone()
}
