package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/game"
)

// ChangeKind names the operation a Change reports.
type ChangeKind int

const (
	Joined ChangeKind = iota + 1
	Left
	Acted
	Closed
	Dealt
)

func (k ChangeKind) String() string {
	switch k {
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Acted:
		return "acted"
	case Closed:
		return "closed"
	case Dealt:
		return "dealt"
	}
	return "unknown"
}

// Change describes a committed mutation. It is passed to the commit
// callback while the table lock is still held; the games it points to must
// not be retained or modified after the callback returns.
type Change struct {
	Kind   ChangeKind
	UserID string
	Table  game.Table
	// Game is the game the operation mutated.
	Game *game.Game
	// Successor is the game dealt after Game completed, if any.
	Successor *game.Game
	// Player is the seat as it was taken, before any blind was posted.
	Player  *game.Player
	Action  *game.Action
	Outcome game.Outcome
	Refunds []game.Payout
}

// Current is the table's running game after the change.
func (c Change) Current() *game.Game {
	if c.Successor != nil {
		return c.Successor
	}
	return c.Game
}

// CommitFunc receives every successful change in per-table order.
type CommitFunc func(Change)

func (f CommitFunc) call(c Change) {
	if f != nil {
		f(c)
	}
}

// TableSpec is what a client supplies to create a table.
type TableSpec struct {
	Name       string `json:"name"`
	SmallBlind int64  `json:"smallBlind"`
	BigBlind   int64  `json:"bigBlind"`
	MinBuyin   int64  `json:"minBuyin"`
	MaxBuyin   int64  `json:"maxBuyin"`
	MaxPlayers int    `json:"maxPlayers"`
}

// Validate normalizes the spec and checks its bounds.
func (s *TableSpec) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.MaxPlayers == 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	switch {
	case s.Name == "":
		return apperr.Validation("Table name is required")
	case s.SmallBlind <= 0 || s.BigBlind <= s.SmallBlind:
		return apperr.Validation("Blinds must satisfy 0 < small blind < big blind")
	case s.MinBuyin <= 0 || s.MaxBuyin < s.MinBuyin:
		return apperr.Validation("Buy-ins must satisfy 0 < minimum <= maximum")
	case s.MinBuyin < s.BigBlind:
		return apperr.Validation("Minimum buy-in must cover the big blind")
	case s.MaxPlayers < 2 || s.MaxPlayers > DefaultMaxPlayers:
		return apperr.Validation("Max players must be between 2 and %d", DefaultMaxPlayers)
	}
	return nil
}

func tableUnavailable() error {
	return apperr.Resource("Table not found or not available")
}

func notSeated() error {
	return apperr.Resource("Player not found at table")
}

// CreateTable validates spec and registers a waiting table owned by owner.
func (r *Registry) CreateTable(ctx context.Context, spec TableSpec, owner string) (game.Table, error) {
	if err := spec.Validate(); err != nil {
		return game.Table{}, err
	}
	t := game.Table{
		ID:         r.newID(),
		Name:       spec.Name,
		SmallBlind: spec.SmallBlind,
		BigBlind:   spec.BigBlind,
		MinBuyin:   spec.MinBuyin,
		MaxBuyin:   spec.MaxBuyin,
		MaxPlayers: spec.MaxPlayers,
		Status:     game.TableWaiting,
		CreatedBy:  owner,
		CreatedAt:  r.clock.Now(),
	}
	ctx, cancel := opContext(ctx)
	defer cancel()
	if err := r.store.SaveTable(ctx, &t); err != nil {
		return game.Table{}, apperr.Internal(err, "save table")
	}
	r.register(t)
	r.logger.Info("table created", "table", t.ID, "name", t.Name, "owner", owner)
	return t, nil
}

// JoinTable buys userID into the table's current game, creating the game
// if needed and dealing it once two seats are taken.
func (r *Registry) JoinTable(ctx context.Context, userID, tableID string, buyin int64, commit CommitFunc) (game.Player, error) {
	e, ok := r.table(tableID)
	if !ok {
		return game.Player{}, tableUnavailable()
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.table
	if t.Status == game.TableClosed {
		return game.Player{}, tableUnavailable()
	}
	if buyin < t.MinBuyin || buyin > t.MaxBuyin {
		return game.Player{}, apperr.Validation("Buy-in amount must be between %d and %d", t.MinBuyin, t.MaxBuyin)
	}
	balance, err := r.wallet.Balance(ctx, userID)
	if err != nil {
		return game.Player{}, apperr.Internal(err, "read balance")
	}
	if balance < buyin {
		return game.Player{}, apperr.Funds("Insufficient balance")
	}
	if e.current != nil && e.current.ActiveCount() >= t.MaxPlayers {
		return game.Player{}, apperr.Resource("Table is full")
	}

	tx := r.begin(e, e.current)
	if err := tx.reserve(userID); err != nil {
		return game.Player{}, err
	}
	if err := tx.debit(ctx, userID, buyin, "buy-in "+tableID); err != nil {
		tx.rollback(ctx)
		if isFunds(err) {
			return game.Player{}, apperr.Funds("Insufficient balance")
		}
		return game.Player{}, apperr.Internal(err, "debit buy-in")
	}

	now := r.clock.Now()
	g := e.current
	if g == nil || g.Status == game.Completed {
		g = r.successor(tx, g, now)
	}

	p := &game.Player{ID: r.newID(), UserID: userID, Position: g.FreePosition(), Stack: buyin}
	if err := g.AddPlayer(p); err != nil {
		tx.rollback(ctx)
		return game.Player{}, apperr.Internal(err, "seat player")
	}
	seated := *p
	tx.save(g)

	var (
		out  game.Outcome
		succ *game.Game
	)
	if g.Status == game.Waiting && g.ActiveCount() >= 2 {
		out, err = r.engine.Start(g, e.rng, t.SmallBlind, t.BigBlind, now)
		if err != nil {
			tx.rollback(ctx)
			return game.Player{}, apperr.Internal(err, "start game")
		}
		r.logger.Info("game started", "table", t.ID, "game", g.ID, "number", g.Number, "players", g.ActiveCount())
		if out.Completed {
			succ = r.wrapUp(tx, g, now)
		}
	}
	r.syncStatus(e)

	if err := tx.commit(ctx); err != nil {
		return game.Player{}, err
	}
	r.logger.Info("player joined", "table", t.ID, "game", g.ID, "user", userID, "position", p.Position, "buyin", buyin)
	commit.call(Change{
		Kind:      Joined,
		UserID:    userID,
		Table:     e.table,
		Game:      g,
		Successor: succ,
		Player:    &seated,
		Outcome:   out,
	})
	return seated, nil
}

// LeaveTable removes userID from the table and credits the remaining stack
// back to the wallet. It returns the refunded amount.
func (r *Registry) LeaveTable(ctx context.Context, userID, tableID string, commit CommitFunc) (int64, error) {
	e, ok := r.table(tableID)
	if !ok {
		return 0, notSeated()
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.current
	if g == nil || g.PlayerByUser(userID) == nil {
		return 0, notSeated()
	}

	tx := r.begin(e, g)
	now := r.clock.Now()
	out, err := r.engine.Leave(g, userID, now)
	if err != nil {
		tx.rollback(ctx)
		return 0, err
	}
	if err := tx.credit(ctx, userID, out.Refund, "cash-out "+tableID); err != nil {
		tx.rollback(ctx)
		return 0, apperr.Internal(err, "credit refund")
	}
	tx.release = append(tx.release, userID)
	tx.save(g)

	var succ *game.Game
	if out.Completed {
		succ = r.wrapUp(tx, g, now)
	}
	r.syncStatus(e)

	if err := tx.commit(ctx); err != nil {
		return 0, err
	}
	r.logger.Info("player left", "table", tableID, "game", g.ID, "user", userID, "refund", out.Refund)
	commit.call(Change{
		Kind:      Left,
		UserID:    userID,
		Table:     e.table,
		Game:      g,
		Successor: succ,
		Outcome:   out,
	})
	return out.Refund, nil
}

// Act applies one betting action by userID in gameID.
func (r *Registry) Act(ctx context.Context, userID, gameID string, kind game.ActionKind, amount int64, commit CommitFunc) (game.Action, error) {
	e, ok := r.gameEntry(gameID)
	if !ok {
		return game.Action{}, apperr.Resource("Game not found")
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.games[gameID]
	if !ok {
		return game.Action{}, apperr.Resource("Game not found")
	}

	tx := r.begin(e, g)
	now := r.clock.Now()
	out, err := r.engine.Apply(g, userID, kind, amount, now)
	if err != nil {
		return game.Action{}, err
	}
	tx.save(g)
	tx.actions = append(tx.actions, *out.Action)

	var succ *game.Game
	if out.Completed {
		succ = r.wrapUp(tx, g, now)
	}
	r.syncStatus(e)

	if err := tx.commit(ctx); err != nil {
		return game.Action{}, err
	}
	r.logger.Debug("action", "game", g.ID, "user", userID, "kind", kind, "amount", out.Action.Amount, "status", g.Status)
	commit.call(Change{
		Kind:      Acted,
		UserID:    userID,
		Table:     e.table,
		Game:      g,
		Successor: succ,
		Action:    out.Action,
		Outcome:   out,
	})
	return *out.Action, nil
}

// State returns gameID as seen by userID. reply, if set, receives the view
// under the table lock, in order with the commit callbacks of the table.
func (r *Registry) State(userID, gameID string, reply func(game.View)) (game.View, error) {
	e, ok := r.gameEntry(gameID)
	if !ok {
		return game.View{}, apperr.Resource("Game not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[gameID]
	if !ok {
		return game.View{}, apperr.Resource("Game not found")
	}
	v := g.ViewFor(userID)
	if reply != nil {
		reply(v)
	}
	return v, nil
}

// PlayerGames returns the unfinished games in which userID holds an active
// seat, as seen by that user.
func (r *Registry) PlayerGames(userID string) []game.View {
	views := []game.View{}
	tableID, ok := r.SeatOf(userID)
	if !ok {
		return views
	}
	e, ok := r.table(tableID)
	if !ok {
		return views
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.current
	if g == nil || g.Status == game.Completed || g.PlayerByUser(userID) == nil {
		return views
	}
	return append(views, g.ViewFor(userID))
}

// DealWaiting deals the current game of every open table that is waiting
// with two or more seats taken. It returns how many games were dealt.
func (r *Registry) DealWaiting(ctx context.Context, commit CommitFunc) (int, error) {
	dealt := 0
	var errs []error
	for _, e := range r.entries() {
		ok, err := r.deal(ctx, e, commit)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			dealt++
		}
	}
	return dealt, errors.Join(errs...)
}

func (r *Registry) deal(ctx context.Context, e *entry, commit CommitFunc) (bool, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	g := e.current
	if e.table.Status == game.TableClosed || g == nil || g.Status != game.Waiting || g.ActiveCount() < 2 {
		return false, nil
	}

	tx := r.begin(e, g)
	now := r.clock.Now()
	out, err := r.engine.Start(g, e.rng, e.table.SmallBlind, e.table.BigBlind, now)
	if err != nil {
		tx.rollback(ctx)
		return false, apperr.Internal(err, "start game %s", g.ID)
	}
	tx.save(g)
	var succ *game.Game
	if out.Completed {
		succ = r.wrapUp(tx, g, now)
	}
	r.syncStatus(e)

	if err := tx.commit(ctx); err != nil {
		return false, err
	}
	r.logger.Info("game started", "table", e.table.ID, "game", g.ID, "number", g.Number, "players", g.ActiveCount())
	commit.call(Change{
		Kind:      Dealt,
		Table:     e.table,
		Game:      g,
		Successor: succ,
		Outcome:   out,
	})
	return true, nil
}

// CloseTable voids the running game, refunds every seat and closes the
// table to new players.
func (r *Registry) CloseTable(ctx context.Context, tableID string, commit CommitFunc) error {
	e, ok := r.table(tableID)
	if !ok {
		return tableUnavailable()
	}
	ctx, cancel := opContext(ctx)
	defer cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.table.Status == game.TableClosed {
		return tableUnavailable()
	}

	g := e.current
	tx := r.begin(e, g)
	var refunds []game.Payout
	if g != nil {
		for _, p := range g.Players {
			if p.Active {
				tx.release = append(tx.release, p.UserID)
			}
		}
		refunds = r.engine.Void(g, r.clock.Now())
		for _, refund := range refunds {
			if err := tx.credit(ctx, refund.UserID, refund.Amount, "table closed "+tableID); err != nil {
				tx.rollback(ctx)
				return apperr.Internal(err, "refund %s", refund.UserID)
			}
		}
		tx.save(g)
	}
	e.table.Status = game.TableClosed

	if err := tx.commit(ctx); err != nil {
		return err
	}
	r.logger.Info("table closed", "table", tableID, "refunds", len(refunds))
	commit.call(Change{
		Kind:    Closed,
		Table:   e.table,
		Game:    g,
		Refunds: refunds,
	})
	return nil
}

// successor creates the next game of the table, moving every funded seat of
// prev over with its stack. The table counter advances with it.
func (r *Registry) successor(tx *txn, prev *game.Game, now time.Time) *game.Game {
	e := tx.e
	dealer := 0
	if prev != nil {
		dealer = prev.NextDealer()
	}
	e.table.GameNumber++
	g := game.New(r.newID(), e.table.ID, e.table.GameNumber, dealer, now)
	if prev != nil {
		for _, p := range prev.Funded() {
			_ = g.AddPlayer(&game.Player{ID: r.newID(), UserID: p.UserID, Position: p.Position, Stack: p.Stack})
			p.Active = false
		}
	}
	r.trackGame(e, g)
	tx.created = append(tx.created, g.ID)
	e.current = g
	return g
}

// wrapUp finishes a completed game: rake is booked, the hand record queued,
// busted seats released and, with two or more funded seats left, the next
// game is dealt. Past maxChainedGames the next game is left waiting for
// DealWaiting. It returns the last game it created, if any.
func (r *Registry) wrapUp(tx *txn, g *game.Game, now time.Time) *game.Game {
	e := tx.e
	var succ *game.Game
	for chained := 0; g.Status == game.Completed; chained++ {
		e.table.RakeCollected += g.Rake
		if g.Record != nil {
			tx.records = append(tx.records, g.Record)
		}
		for _, p := range g.Players {
			if p.Active && p.Stack == 0 {
				p.Active = false
				left := now
				p.LeftAt = &left
				tx.release = append(tx.release, p.UserID)
			}
		}
		tx.save(g)
		r.logger.Info("game completed", "table", e.table.ID, "game", g.ID, "number", g.Number, "rake", g.Rake)

		if len(g.Funded()) < 2 || e.table.Status == game.TableClosed {
			return succ
		}
		next := r.successor(tx, g, now)
		tx.save(next)
		if chained >= r.chainLimit {
			return next
		}
		if _, err := r.engine.Start(next, e.rng, e.table.SmallBlind, e.table.BigBlind, now); err != nil {
			r.logger.Error("start successor", "table", e.table.ID, "game", next.ID, "error", err)
			return next
		}
		succ = next
		g = next
	}
	return succ
}

func (r *Registry) syncStatus(e *entry) {
	if e.table.Status == game.TableClosed {
		return
	}
	if e.current != nil && e.current.Status.Betting() {
		e.table.Status = game.TablePlaying
		return
	}
	e.table.Status = game.TableWaiting
}
