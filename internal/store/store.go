// Package store persists tables, games, seats, the action log and hand
// records. The registry treats every write as part of the mutation it
// belongs to: a failed write rolls the in-memory state back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/viettienlv97/game-server/internal/game"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence port of the registry.
type Store interface {
	SaveTable(ctx context.Context, t *game.Table) error
	// SaveGame upserts the game row and every seat in it.
	SaveGame(ctx context.Context, g *game.Game) error
	AppendAction(ctx context.Context, a game.Action) error
	AppendHandRecord(ctx context.Context, r *game.HandRecord) error
	LoadTables(ctx context.Context) ([]game.Table, error)
	HandRecords(ctx context.Context, gameID string) ([]game.HandRecord, error)
	// PruneGames deletes completed games finished before cutoff together
	// with their seats, actions and hand records.
	PruneGames(ctx context.Context, cutoff time.Time) (int, error)
}
