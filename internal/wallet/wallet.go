// Package wallet holds players' off-table chip balances. Buy-ins debit the
// wallet and leaving a table credits the remaining stack back.
package wallet

import (
	"context"
	"errors"
	"fmt"
)

// ErrInsufficientFunds is returned by Debit when the balance is too low.
var ErrInsufficientFunds = errors.New("insufficient balance")

// ErrInvalidAmount is returned for non-positive amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Service is the balance store the table registry settles against.
// Implementations must be safe for concurrent use.
type Service interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64, reason string) error
	Credit(ctx context.Context, userID string, amount int64, reason string) error
}

// Config selects and configures a wallet backend.
type Config struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string
	// DSN is the sqlite file path or the postgres connection string.
	DSN string
	// StartingBalance seeds users the wallet has not seen before.
	StartingBalance int64
}

// Open returns the backend named by cfg.Driver and a func releasing it.
func Open(ctx context.Context, cfg Config) (Service, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.StartingBalance), func() error { return nil }, nil
	case "sqlite":
		s, err := NewSQLite(ctx, cfg.DSN, cfg.StartingBalance)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		p, err := NewPostgres(ctx, cfg.DSN, cfg.StartingBalance)
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { p.Close(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown wallet driver %q", cfg.Driver)
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}
