package wallet

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process wallet. Balances are lost on restart.
type Memory struct {
	mu       sync.Mutex
	starting int64
	balances map[string]int64
}

// NewMemory returns a wallet that gives unknown users starting chips.
func NewMemory(starting int64) *Memory {
	return &Memory{starting: starting, balances: make(map[string]int64)}
}

func (m *Memory) balance(userID string) int64 {
	b, ok := m.balances[userID]
	if !ok {
		b = m.starting
		m.balances[userID] = b
	}
	return b
}

func (m *Memory) Balance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(userID), nil
}

func (m *Memory) Debit(_ context.Context, userID string, amount int64, _ string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balance(userID)
	if b < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, b)
	}
	m.balances[userID] = b - amount
	return nil
}

func (m *Memory) Credit(_ context.Context, userID string, amount int64, _ string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = m.balance(userID) + amount
	return nil
}
