package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/game"
)

// Postgres persists active rounds so in-flight rounds survive a
// restart. The grid, bonus state and power-up usage are stored as
// JSONB; the seed as hex, readable only by the service.
type Postgres struct {
	db *sql.DB
}

var _ game.RoundStore = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed round store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Save upserts the round.
func (p *Postgres) Save(ctx context.Context, r *domain.Round) error {
	gridJSON, err := json.Marshal(r.Grid)
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}
	bonusJSON, err := json.Marshal(r.Bonus)
	if err != nil {
		return fmt.Errorf("failed to encode bonus state: %w", err)
	}
	powerUpsJSON, err := json.Marshal(r.UsedPowerUps)
	if err != nil {
		return fmt.Errorf("failed to encode power-up usage: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO rounds (id, user_id, mode, difficulty, seed, nonce_cursor, wager,
		                    grid, grid_size, bonus, moves_made, max_moves,
		                    last_reveal_x, last_reveal_y, active_payout, used_power_ups,
		                    status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			nonce_cursor = EXCLUDED.nonce_cursor,
			wager = EXCLUDED.wager,
			grid = EXCLUDED.grid,
			bonus = EXCLUDED.bonus,
			moves_made = EXCLUDED.moves_made,
			last_reveal_x = EXCLUDED.last_reveal_x,
			last_reveal_y = EXCLUDED.last_reveal_y,
			active_payout = EXCLUDED.active_payout,
			used_power_ups = EXCLUDED.used_power_ups,
			status = EXCLUDED.status
	`, r.ID, r.UserID, string(r.Mode), r.Difficulty, r.Seed.String(), int64(r.NonceCursor), r.Wager,
		string(gridJSON), r.GridSize, string(bonusJSON), r.MovesMade, r.MaxMoves,
		r.LastRevealX, r.LastRevealY, r.ActivePayout, string(powerUpsJSON),
		string(r.Status), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save round: %w", err)
	}
	return nil
}

// Load reads the round, or game.ErrRoundNotFound.
func (p *Postgres) Load(ctx context.Context, roundID string) (*domain.Round, error) {
	var r domain.Round
	var mode, status, seedHex string
	var nonceCursor int64
	var gridJSON, bonusJSON, powerUpsJSON string

	err := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, mode, difficulty, seed, nonce_cursor, wager,
		       grid, grid_size, bonus, moves_made, max_moves,
		       last_reveal_x, last_reveal_y, active_payout, used_power_ups,
		       status, created_at
		FROM rounds WHERE id = $1
	`, roundID).Scan(
		&r.ID, &r.UserID, &mode, &r.Difficulty, &seedHex, &nonceCursor, &r.Wager,
		&gridJSON, &r.GridSize, &bonusJSON, &r.MovesMade, &r.MaxMoves,
		&r.LastRevealX, &r.LastRevealY, &r.ActivePayout, &powerUpsJSON,
		&status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to load round: %w", err)
	}

	r.Mode = domain.RoundMode(mode)
	r.Status = domain.RoundStatus(status)
	r.NonceCursor = uint64(nonceCursor)

	r.Seed, err = domain.ParseSeed(seedHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	if err := json.Unmarshal([]byte(gridJSON), &r.Grid); err != nil {
		return nil, fmt.Errorf("failed to decode grid: %w", err)
	}
	if err := json.Unmarshal([]byte(bonusJSON), &r.Bonus); err != nil {
		return nil, fmt.Errorf("failed to decode bonus state: %w", err)
	}
	if err := json.Unmarshal([]byte(powerUpsJSON), &r.UsedPowerUps); err != nil {
		return nil, fmt.Errorf("failed to decode power-up usage: %w", err)
	}

	return &r, nil
}

// Delete removes the round; deleting an unknown ID is not an error.
func (p *Postgres) Delete(ctx context.Context, roundID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rounds WHERE id = $1`, roundID)
	if err != nil {
		return fmt.Errorf("failed to delete round: %w", err)
	}
	return nil
}
