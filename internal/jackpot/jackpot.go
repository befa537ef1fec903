// Package jackpot manages the progressive jackpot pool, the one piece
// of state shared by every concurrent round.
//
// The pool has a narrow lifecycle: seeded to a floor amount at start,
// grown by a fixed contribution on every wager, and drained back to the
// floor on each award. Contribution is a single atomic add; award is a
// compare-and-swap so two simultaneously qualifying spins can never
// drain the same amount.
package jackpot

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

// Pool is the process-local jackpot pool. All methods are safe for
// concurrent use without external locking.
type Pool struct {
	amount atomic.Int64
	floor  int64
	rate   float64
}

// NewPool creates a pool seeded at floor, contributing rate of every
// wager.
func NewPool(floor int64, rate float64) *Pool {
	p := &Pool{floor: floor, rate: rate}
	p.amount.Store(floor)
	return p
}

// Contribute adds the pool's cut of a wager and returns the new total.
func (p *Pool) Contribute(wager int64) int64 {
	cut := int64(float64(wager) * p.rate)
	if cut <= 0 {
		return p.amount.Load()
	}
	return p.amount.Add(cut)
}

// TryAward attempts to drain the pool. It succeeds only when the pool
// has grown beyond its floor, pays out the full amount, and resets the
// pool to the floor. Under concurrent qualifying spins exactly one call
// wins; the rest observe the reset pool and fail.
//
// Every wager contributes before its outcome can qualify, so a genuine
// winner always sees the pool above the floor.
func (p *Pool) TryAward() (int64, bool) {
	for {
		current := p.amount.Load()
		if current <= p.floor {
			return 0, false
		}
		if p.amount.CompareAndSwap(current, p.floor) {
			return current, true
		}
	}
}

// Amount returns the current pool value.
func (p *Pool) Amount() int64 {
	return p.amount.Load()
}

// Floor returns the reseed amount.
func (p *Pool) Floor() int64 {
	return p.floor
}

// Restore overwrites the pool value, used to resume a persisted pool at
// startup. Values below the floor are clamped to it.
func (p *Pool) Restore(amount int64) {
	if amount < p.floor {
		amount = p.floor
	}
	p.amount.Store(amount)
}

// Store persists pool snapshots and award records so the pool value
// survives restarts and every award leaves an audit trail.
type Store struct {
	db *sql.DB
}

// NewStore creates a jackpot store over an existing database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadAmount reads the persisted pool value. Returns (floor, nil) on a
// fresh database with no snapshot row yet.
func (s *Store) LoadAmount(ctx context.Context, floor int64) (int64, error) {
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT amount FROM jackpot_pool WHERE id = 1
	`).Scan(&amount)
	if err == sql.ErrNoRows {
		return floor, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load jackpot pool: %w", err)
	}
	return amount, nil
}

// SaveAmount writes the current pool value.
func (s *Store) SaveAmount(ctx context.Context, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jackpot_pool (id, amount, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET amount = $1, updated_at = NOW()
	`, amount)
	if err != nil {
		return fmt.Errorf("failed to save jackpot pool: %w", err)
	}
	return nil
}

// RecordAward appends an award row.
func (s *Store) RecordAward(ctx context.Context, roundID, userID string, amount int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jackpot_awards (round_id, user_id, amount, awarded_at)
		VALUES ($1, $2, $3, NOW())
	`, roundID, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to record jackpot award: %w", err)
	}
	return nil
}
