// Package registry owns the tables and routes every player operation to the
// running game of a table. Each table has its own mutex, which serializes
// every mutation of its current game together with the wallet and store
// writes that belong to it and the commit callback that broadcasts the
// result. Different tables never contend beyond a short map lookup.
package registry

import (
	"cmp"
	"context"
	"errors"
	rand "math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/game"
	"github.com/viettienlv97/game-server/internal/ids"
	"github.com/viettienlv97/game-server/internal/randutil"
	"github.com/viettienlv97/game-server/internal/store"
	"github.com/viettienlv97/game-server/internal/wallet"
)

// DefaultMaxPlayers applies when a table spec leaves MaxPlayers at zero.
const DefaultMaxPlayers = 9

// maxChainedGames bounds successor games that complete while being dealt
// (every seat all-in from the blinds). The game after the last is left
// waiting for DealWaiting.
const maxChainedGames = 8

// Config tunes a Registry.
type Config struct {
	// Rake is the fraction of each showdown pot kept by the house.
	Rake float64
	// Seed makes shuffles reproducible. Zero means crypto-seeded.
	Seed int64
}

// Registry is the authoritative owner of all tables in the process.
type Registry struct {
	logger *log.Logger
	clock  quartz.Clock
	wallet wallet.Service
	store  store.Store
	engine game.Engine
	newID  func() string

	// chainLimit is maxChainedGames outside tests.
	chainLimit int

	mu     sync.RWMutex
	tables map[string]*entry
	games  map[string]*entry
	seated map[string]string // user id -> table id

	randMu  sync.Mutex
	newRand func() *rand.Rand
}

// entry is one table and the games it has dealt that are not yet pruned.
type entry struct {
	mu      sync.Mutex
	table   game.Table
	current *game.Game
	games   map[string]*game.Game
	rng     *rand.Rand
}

// New returns an empty registry.
func New(cfg Config, w wallet.Service, s store.Store, clock quartz.Clock, logger *log.Logger) *Registry {
	return &Registry{
		logger: logger.WithPrefix("registry"),
		clock:  clock,
		wallet: w,
		store:  s,
		engine: game.Engine{Rake: cfg.Rake, NewID: ids.New},
		newID:  ids.New,
		tables: make(map[string]*entry),
		games:  make(map[string]*entry),
		seated: make(map[string]string),

		chainLimit: maxChainedGames,
		newRand:    randutil.Source(cfg.Seed),
	}
}

func (r *Registry) nextRand() *rand.Rand {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.newRand()
}

func (r *Registry) register(t game.Table) *entry {
	e := &entry{table: t, games: make(map[string]*game.Game), rng: r.nextRand()}
	r.mu.Lock()
	r.tables[t.ID] = e
	r.mu.Unlock()
	return e
}

func (r *Registry) table(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[id]
	return e, ok
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*entry, 0, len(r.tables))
	for _, e := range r.tables {
		entries = append(entries, e)
	}
	return entries
}

func (r *Registry) gameEntry(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.games[id]
	return e, ok
}

func (r *Registry) trackGame(e *entry, g *game.Game) {
	e.games[g.ID] = g
	r.mu.Lock()
	r.games[g.ID] = e
	r.mu.Unlock()
}

func (r *Registry) untrackGame(e *entry, id string) {
	delete(e.games, id)
	r.mu.Lock()
	delete(r.games, id)
	r.mu.Unlock()
}

// reserve marks userID as seated at tableID. It fails when the user already
// holds a seat anywhere.
func (r *Registry) reserve(userID, tableID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.seated[userID]; ok {
		if at == tableID {
			return apperr.Validation("Already playing at this table")
		}
		return apperr.Validation("Already playing at another table")
	}
	r.seated[userID] = tableID
	return nil
}

func (r *Registry) release(userID string) {
	r.mu.Lock()
	delete(r.seated, userID)
	r.mu.Unlock()
}

// Restore registers the tables persisted by a previous run. Games that were
// running at shutdown are not resumed; tables come back waiting.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	tables, err := r.store.LoadTables(ctx)
	if err != nil {
		return 0, apperr.Internal(err, "restore tables")
	}
	n := 0
	for _, t := range tables {
		if t.Status == game.TableClosed {
			continue
		}
		t.Status = game.TableWaiting
		r.register(t)
		n++
	}
	r.logger.Info("restored tables", "count", n)
	return n, nil
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Tables        int
	RunningGames  int
	SeatedPlayers int
	RakeCollected int64
}

// Stats walks every table. It takes each table lock in turn.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tables))
	for _, e := range r.tables {
		entries = append(entries, e)
	}
	seated := len(r.seated)
	r.mu.RUnlock()

	s := Stats{Tables: len(entries), SeatedPlayers: seated}
	for _, e := range entries {
		e.mu.Lock()
		if e.current != nil && e.current.Status.Betting() {
			s.RunningGames++
		}
		s.RakeCollected += e.table.RakeCollected
		e.mu.Unlock()
	}
	return s
}

// PruneCompleted forgets completed games that finished more than olderThan
// ago, in memory and in the store. Current games are never pruned.
func (r *Registry) PruneCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := r.clock.Now().Add(-olderThan)

	entries := r.entries()

	pruned := 0
	for _, e := range entries {
		e.mu.Lock()
		for id, g := range e.games {
			if g == e.current || g.Status != game.Completed || g.CompletedAt == nil || !g.CompletedAt.Before(cutoff) {
				continue
			}
			r.untrackGame(e, id)
			pruned++
		}
		e.mu.Unlock()
	}

	stored, err := r.store.PruneGames(ctx, cutoff)
	if err != nil {
		return pruned, apperr.Internal(err, "prune games")
	}
	r.logger.Debug("pruned completed games", "memory", pruned, "store", stored)
	return max(pruned, stored), nil
}

// TableSummary is a table with its occupancy.
type TableSummary struct {
	game.Table
	Seated        int    `json:"seatedPlayers"`
	CurrentGameID string `json:"currentGameId,omitempty"`
}

func (e *entry) summary() TableSummary {
	s := TableSummary{Table: e.table}
	if e.current != nil {
		s.Seated = e.current.ActiveCount()
		s.CurrentGameID = e.current.ID
	}
	return s
}

// ListTables returns every table, optionally filtered by status, newest
// first.
func (r *Registry) ListTables(status game.TableStatus) []TableSummary {
	entries := r.entries()

	out := make([]TableSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		s := e.summary()
		e.mu.Unlock()
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b TableSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Table returns one table by id.
func (r *Registry) Table(id string) (TableSummary, error) {
	e, ok := r.table(id)
	if !ok {
		return TableSummary{}, apperr.Resource("Table not found")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary(), nil
}

// SeatOf returns the table a user is seated at.
func (r *Registry) SeatOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.seated[userID]
	return t, ok
}

func isFunds(err error) bool {
	return errors.Is(err, wallet.ErrInsufficientFunds)
}
