// Package history keeps the permanent record of settled outcomes. It
// consumes the engine's outcome events and serves per-user history,
// which is also where fairness disputes start: the stored seed and
// nonce range are everything a player needs to replay a round.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/roundengine/internal/domain"
)

// Recorder persists outcome events as they are published.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates an outcome recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Publish stores the outcome. Implements the engine's event sink;
// errors are swallowed because settlement must not fail on a history
// write, but a gap in the record would show in reconciliation.
func (r *Recorder) Publish(event domain.OutcomeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, round_id, user_id, mode, wager, payout, profit_loss,
		                      seed, nonce_start, nonce_end, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, uuid.New().String(), event.RoundID, event.UserID, string(event.Mode),
		event.Wager, event.Payout, event.ProfitLoss, event.Seed,
		int64(event.NonceStart), int64(event.NonceEnd), string(event.Status), event.OccurredAt)
}

// ForUser returns a user's settled outcomes, newest first.
func (r *Recorder) ForUser(ctx context.Context, userID string, limit int) ([]*domain.OutcomeEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT round_id, user_id, mode, wager, payout, profit_loss,
		       seed, nonce_start, nonce_end, status, occurred_at
		FROM outcomes WHERE user_id = $1 ORDER BY occurred_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.OutcomeEvent
	for rows.Next() {
		var e domain.OutcomeEvent
		var mode, status string
		var nonceStart, nonceEnd int64

		err := rows.Scan(&e.RoundID, &e.UserID, &mode, &e.Wager, &e.Payout,
			&e.ProfitLoss, &e.Seed, &nonceStart, &nonceEnd, &status, &e.OccurredAt)
		if err != nil {
			return nil, err
		}

		e.Mode = domain.RoundMode(mode)
		e.Status = domain.RoundStatus(status)
		e.NonceStart = uint64(nonceStart)
		e.NonceEnd = uint64(nonceEnd)
		events = append(events, &e)
	}
	return events, rows.Err()
}
