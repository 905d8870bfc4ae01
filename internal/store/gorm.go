package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/viettienlv97/game-server/internal/deck"
	"github.com/viettienlv97/game-server/internal/game"
)

type tableRow struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	SmallBlind    int64
	BigBlind      int64
	MinBuyin      int64
	MaxBuyin      int64
	MaxPlayers    int
	Status        string
	CreatedBy     string
	GameNumber    int
	RakeCollected int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (tableRow) TableName() string { return "poker_tables" }

func tableToRow(t *game.Table) tableRow {
	return tableRow{
		ID:            t.ID,
		Name:          t.Name,
		SmallBlind:    t.SmallBlind,
		BigBlind:      t.BigBlind,
		MinBuyin:      t.MinBuyin,
		MaxBuyin:      t.MaxBuyin,
		MaxPlayers:    t.MaxPlayers,
		Status:        string(t.Status),
		CreatedBy:     t.CreatedBy,
		GameNumber:    t.GameNumber,
		RakeCollected: t.RakeCollected,
		CreatedAt:     t.CreatedAt,
	}
}

func (r tableRow) table() game.Table {
	return game.Table{
		ID:            r.ID,
		Name:          r.Name,
		SmallBlind:    r.SmallBlind,
		BigBlind:      r.BigBlind,
		MinBuyin:      r.MinBuyin,
		MaxBuyin:      r.MaxBuyin,
		MaxPlayers:    r.MaxPlayers,
		Status:        game.TableStatus(r.Status),
		CreatedBy:     r.CreatedBy,
		GameNumber:    r.GameNumber,
		RakeCollected: r.RakeCollected,
		CreatedAt:     r.CreatedAt,
	}
}

type gameRow struct {
	ID              string `gorm:"primaryKey"`
	TableID         string
	GameNumber      int
	Status          string
	DealerPosition  int
	CurrentPosition int
	PotAmount       int64
	CurrentBet      int64
	CommunityCards  datatypes.JSONType[[]deck.Card]
	RakeAmount      int64
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

func (gameRow) TableName() string { return "poker_games" }

type playerRow struct {
	ID           string `gorm:"primaryKey"`
	GameID       string
	UserID       string
	Position     int
	HoleCards    datatypes.JSONType[[]deck.Card]
	StackAmount  int64
	CurrentBet   int64
	IsActive     bool
	IsFolded     bool
	IsAllIn      bool
	IsDealer     bool
	IsSmallBlind bool
	IsBigBlind   bool
	LeftAt       *time.Time
}

func (playerRow) TableName() string { return "poker_players" }

// gameToRows splits g into its game row and one row per seat.
func gameToRows(g *game.Game) (gameRow, []playerRow) {
	row := gameRow{
		ID:              g.ID,
		TableID:         g.TableID,
		GameNumber:      g.Number,
		Status:          string(g.Status),
		DealerPosition:  g.DealerPos,
		CurrentPosition: g.TurnPos,
		PotAmount:       g.Pot,
		CurrentBet:      g.CurrentBet,
		CommunityCards:  datatypes.NewJSONType(cardsOrEmpty(g.Community)),
		RakeAmount:      g.Rake,
		CreatedAt:       g.CreatedAt,
		CompletedAt:     g.CompletedAt,
	}
	players := make([]playerRow, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, playerRow{
			ID:           p.ID,
			GameID:       g.ID,
			UserID:       p.UserID,
			Position:     p.Position,
			HoleCards:    datatypes.NewJSONType(cardsOrEmpty(p.HoleCards)),
			StackAmount:  p.Stack,
			CurrentBet:   p.Bet,
			IsActive:     p.Active,
			IsFolded:     p.Folded,
			IsAllIn:      p.AllIn,
			IsDealer:     p.Dealer,
			IsSmallBlind: p.SmallBlind,
			IsBigBlind:   p.BigBlind,
			LeftAt:       p.LeftAt,
		})
	}
	return row, players
}

type actionRow struct {
	ID         string `gorm:"primaryKey"`
	GameID     string
	PlayerID   string
	UserID     string
	ActionType string
	Amount     int64
	Round      string
	CreatedAt  time.Time
}

func (actionRow) TableName() string { return "poker_actions" }

func actionToRow(a game.Action) actionRow {
	return actionRow{
		ID:         a.ID,
		GameID:     a.GameID,
		PlayerID:   a.PlayerID,
		UserID:     a.UserID,
		ActionType: string(a.Kind),
		Amount:     a.Amount,
		Round:      string(a.Round),
		CreatedAt:  a.CreatedAt,
	}
}

type handRow struct {
	ID         string `gorm:"primaryKey"`
	GameID     string
	HandRank   string
	PotAmount  int64
	RakeAmount int64
	Winners    datatypes.JSONType[[]game.Payout]
	Results    datatypes.JSONType[[]game.SeatResult]
	CreatedAt  time.Time
}

func (handRow) TableName() string { return "poker_hand_history" }

func recordToRow(r *game.HandRecord) handRow {
	return handRow{
		ID:         r.ID,
		GameID:     r.GameID,
		HandRank:   r.HandName,
		PotAmount:  r.Pot,
		RakeAmount: r.Rake,
		Winners:    datatypes.NewJSONType(r.Winners),
		Results:    datatypes.NewJSONType(r.Results),
		CreatedAt:  r.CreatedAt,
	}
}

func (r handRow) record() game.HandRecord {
	return game.HandRecord{
		ID:        r.ID,
		GameID:    r.GameID,
		HandName:  r.HandRank,
		Pot:       r.PotAmount,
		Rake:      r.RakeAmount,
		Winners:   r.Winners.Data(),
		Results:   r.Results.Data(),
		CreatedAt: r.CreatedAt,
	}
}

// Gorm persists to postgres through gorm. The schema comes from Migrate.
type Gorm struct {
	db *gorm.DB
}

// OpenGorm connects to the postgres database at dsn. SQL is logged through
// logger at debug level.
func OpenGorm(dsn string, logger *log.Logger) (*Gorm, error) {
	level := gormlogger.Warn
	if logger.GetLevel() <= log.DebugLevel {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(logger.WithPrefix("gorm"), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (s *Gorm) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Gorm) SaveTable(ctx context.Context, t *game.Table) error {
	row := tableToRow(t)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save table %s: %w", t.ID, err)
	}
	return nil
}

func (s *Gorm) SaveGame(ctx context.Context, g *game.Game) error {
	row, players := gameToRows(g)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if len(players) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&players).Error
	})
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}
	return nil
}

func (s *Gorm) AppendAction(ctx context.Context, a game.Action) error {
	row := actionToRow(a)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

func (s *Gorm) AppendHandRecord(ctx context.Context, r *game.HandRecord) error {
	row := recordToRow(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append hand record: %w", err)
	}
	return nil
}

func (s *Gorm) LoadTables(ctx context.Context) ([]game.Table, error) {
	var rows []tableRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	out := make([]game.Table, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.table())
	}
	return out, nil
}

func (s *Gorm) HandRecords(ctx context.Context, gameID string) ([]game.HandRecord, error) {
	var rows []handRow
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load hand records: %w", err)
	}
	out := make([]game.HandRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *Gorm) PruneGames(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", string(game.Completed), cutoff).
		Delete(&gameRow{})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("prune games: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func cardsOrEmpty(cards []deck.Card) []deck.Card {
	if cards == nil {
		return []deck.Card{}
	}
	return cards
}
