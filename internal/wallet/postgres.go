package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps balances in the wallet_balances table created by the
// store migrations. Debits lock the row with SELECT ... FOR UPDATE.
type Postgres struct {
	db       *pgxpool.Pool
	starting int64
}

// NewPostgres connects a pool to dsn and checks it is reachable.
func NewPostgres(ctx context.Context, dsn string, starting int64) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse wallet dsn: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create wallet pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("wallet database unreachable: %w", err)
	}
	return &Postgres{db: pool, starting: starting}, nil
}

func (p *Postgres) Close() { p.db.Close() }

func (p *Postgres) ensure(ctx context.Context, userID string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO wallet_balances (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, p.starting)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	return nil
}

func (p *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	if err := p.ensure(ctx, userID); err != nil {
		return 0, err
	}
	var balance int64
	if err := p.db.QueryRow(ctx, `SELECT balance FROM wallet_balances WHERE user_id = $1`, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (p *Postgres) Debit(ctx context.Context, userID string, amount int64, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := p.ensure(ctx, userID); err != nil {
		return err
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin debit: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM wallet_balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&current)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if current < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, current)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE wallet_balances SET balance = balance - $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, reason) VALUES ($1, $2, $3)
	`, userID, -amount, reason); err != nil {
		return fmt.Errorf("record debit: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Credit(ctx context.Context, userID string, amount int64, reason string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := p.ensure(ctx, userID); err != nil {
		return err
	}
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE wallet_balances SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, reason) VALUES ($1, $2, $3)
	`, userID, amount, reason); err != nil {
		return fmt.Errorf("record credit: %w", err)
	}
	return tx.Commit(ctx)
}
