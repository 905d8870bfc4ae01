package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viettienlv97/game-server/internal/game"
)

func TestMemoryTables(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveTable(ctx, &game.Table{ID: "b", Name: "second", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, s.SaveTable(ctx, &game.Table{ID: "a", Name: "first", CreatedAt: now}))
	require.NoError(t, s.SaveTable(ctx, &game.Table{ID: "a", Name: "renamed", CreatedAt: now}))

	tables, err := s.LoadTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "renamed", tables[0].Name)
	assert.Equal(t, "second", tables[1].Name)
}

func TestMemorySaveGameStoresCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	g := game.New("g1", "t1", 1, 0, time.Now())
	require.NoError(t, g.AddPlayer(&game.Player{ID: "p1", UserID: "u1", Stack: 100}))

	require.NoError(t, s.SaveGame(ctx, g))
	g.Players[0].Stack = 0

	saved, err := s.Game(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), saved.Players[0].Stack)

	_, err = s.Game(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryPruneGames(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	old := game.New("old", "t1", 1, 0, now.Add(-48*time.Hour))
	old.Status = game.Completed
	done := now.Add(-47 * time.Hour)
	old.CompletedAt = &done

	running := game.New("running", "t1", 2, 0, now.Add(-48*time.Hour))

	for _, g := range []*game.Game{old, running} {
		require.NoError(t, s.SaveGame(ctx, g))
	}
	require.NoError(t, s.AppendAction(ctx, game.Action{ID: "a1", GameID: "old"}))
	require.NoError(t, s.AppendHandRecord(ctx, &game.HandRecord{ID: "h1", GameID: "old"}))

	n, err := s.PruneGames(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Game(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	records, err := s.HandRecords(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = s.Game(ctx, "running")
	assert.NoError(t, err)
}
