package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/viettienlv97/game-server/internal/game"
)

// Memory keeps everything in process. It is the default backend for local
// play and tests.
type Memory struct {
	mu      sync.Mutex
	tables  map[string]game.Table
	games   map[string]*game.Game
	actions map[string][]game.Action
	records map[string][]game.HandRecord
}

func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string]game.Table),
		games:   make(map[string]*game.Game),
		actions: make(map[string][]game.Action),
		records: make(map[string][]game.HandRecord),
	}
}

func (m *Memory) SaveTable(_ context.Context, t *game.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.ID] = *t
	return nil
}

func (m *Memory) SaveGame(_ context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *Memory) AppendAction(_ context.Context, a game.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.GameID] = append(m.actions[a.GameID], a)
	return nil
}

func (m *Memory) AppendHandRecord(_ context.Context, r *game.HandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.GameID] = append(m.records[r.GameID], *r)
	return nil
}

func (m *Memory) LoadTables(_ context.Context) ([]game.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]game.Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b game.Table) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (m *Memory) HandRecords(_ context.Context, gameID string) ([]game.HandRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records[gameID]), nil
}

// Game returns the last saved copy of a game.
func (m *Memory) Game(_ context.Context, id string) (*game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

// Actions returns the logged actions of a game in order.
func (m *Memory) Actions(_ context.Context, gameID string) ([]game.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.actions[gameID]), nil
}

func (m *Memory) PruneGames(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, g := range m.games {
		if g.Status != game.Completed || g.CompletedAt == nil || !g.CompletedAt.Before(cutoff) {
			continue
		}
		delete(m.games, id)
		delete(m.actions, id)
		delete(m.records, id)
		n++
	}
	return n, nil
}
