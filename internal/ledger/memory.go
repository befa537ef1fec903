package ledger

import (
	"context"
	"sync"

	"github.com/alexbotov/roundengine/internal/game"
)

// Memory is an in-memory ledger for tests and local runs. The mutex
// makes each Debit's check-and-subtract atomic, so balances never go
// negative under concurrent rounds.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
}

var _ game.Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]int64)}
}

// Deposit seeds a balance outside the engine's debit/credit flow.
func (m *Memory) Deposit(userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
}

// Balance returns the current balance; unknown users read as zero.
func (m *Memory) Balance(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

// Debit removes amount, or returns game.ErrInsufficientFunds leaving
// the balance untouched.
func (m *Memory) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return 0, game.ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	return m.balances[userID], nil
}

// Credit adds amount and returns the new balance.
func (m *Memory) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return m.balances[userID], nil
}
