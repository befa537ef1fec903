// Package store provides the active-round stores: an in-memory store
// for tests and single-node deployments, and a Postgres store that
// survives restarts mid-round.
package store

import (
	"context"
	"sync"

	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/game"
)

// Memory is an in-memory round store. Load hands out deep copies, so
// a failed transition never leaks partially mutated state back into
// the store.
type Memory struct {
	mu     sync.RWMutex
	rounds map[string]*domain.Round
}

var _ game.RoundStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rounds: make(map[string]*domain.Round)}
}

// Save stores a copy of the round.
func (m *Memory) Save(ctx context.Context, r *domain.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[r.ID] = cloneRound(r)
	return nil
}

// Load returns a copy of the round, or game.ErrRoundNotFound.
func (m *Memory) Load(ctx context.Context, roundID string) (*domain.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, game.ErrRoundNotFound
	}
	return cloneRound(r), nil
}

// Delete removes the round; deleting an unknown ID is not an error.
func (m *Memory) Delete(ctx context.Context, roundID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rounds, roundID)
	return nil
}

// Len returns the number of active rounds.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rounds)
}

func cloneRound(r *domain.Round) *domain.Round {
	c := *r

	if r.Seed != nil {
		c.Seed = append(domain.Seed(nil), r.Seed...)
	}
	if r.Grid != nil {
		c.Grid = append([]domain.Cell(nil), r.Grid...)
	}
	if r.Bonus != nil {
		b := *r.Bonus
		c.Bonus = &b
	}
	if r.UsedPowerUps != nil {
		c.UsedPowerUps = make(map[domain.PowerUpType]bool, len(r.UsedPowerUps))
		for k, v := range r.UsedPowerUps {
			c.UsedPowerUps[k] = v
		}
	}
	return &c
}
