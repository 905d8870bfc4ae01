package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps balances and a transaction journal in a local database file.
type SQLite struct {
	db       *sql.DB
	starting int64
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path string, starting int64) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, starting: starting}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ensure(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO wallet_balances (user_id, balance, updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO NOTHING
`, userID, s.starting, time.Now().UTC().UnixMilli())
	return err
}

func (s *SQLite) Balance(ctx context.Context, userID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := s.ensure(ctx, tx, userID); err != nil {
		return 0, err
	}
	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM wallet_balances WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, tx.Commit()
}

func (s *SQLite) Debit(ctx context.Context, userID string, amount int64, reason string) error {
	return s.apply(ctx, userID, -amount, reason)
}

func (s *SQLite) Credit(ctx context.Context, userID string, amount int64, reason string) error {
	return s.apply(ctx, userID, amount, reason)
}

func (s *SQLite) apply(ctx context.Context, userID string, delta int64, reason string) error {
	if err := checkAmount(max(delta, -delta)); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.ensure(ctx, tx, userID); err != nil {
		return err
	}
	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM wallet_balances WHERE user_id = ?`, userID).Scan(&balance); err != nil {
		return err
	}
	if balance+delta < 0 {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, -delta, balance)
	}

	nowMs := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
UPDATE wallet_balances SET balance = balance + ?, updated_at_ms = ? WHERE user_id = ?
`, delta, nowMs, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO wallet_transactions (user_id, amount, reason, created_at_ms) VALUES (?, ?, ?, ?)
`, userID, delta, reason, nowMs); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS wallet_balances (
    user_id TEXT PRIMARY KEY,
    balance INTEGER NOT NULL CHECK (balance >= 0),
    updated_at_ms INTEGER NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL REFERENCES wallet_balances(user_id),
    amount INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_wallet_transactions_user ON wallet_transactions(user_id, created_at_ms DESC)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
