// Package ledger implements the engine's account boundary: a
// Postgres ledger with a double-entry transaction log, an in-memory
// ledger for tests, and an adapter for a remote wallet platform.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/roundengine/internal/audit"
	"github.com/alexbotov/roundengine/internal/game"
)

// Transaction types recorded in the ledger log.
const (
	TxTypeDebit  = "debit"
	TxTypeCredit = "credit"
)

// Transaction is one recorded balance movement.
type Transaction struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"` // cents
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// Postgres is the database-backed ledger.
type Postgres struct {
	db       *sql.DB
	audit    *audit.Service
	currency string
}

var _ game.Ledger = (*Postgres)(nil)

// NewPostgres creates a Postgres-backed ledger.
func NewPostgres(db *sql.DB, auditSvc *audit.Service, currency string) *Postgres {
	return &Postgres{
		db:       db,
		audit:    auditSvc,
		currency: currency,
	}
}

// Balance returns the current balance in cents. Unknown users read as
// a zero balance.
func (p *Postgres) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx, `
		SELECT balance FROM balances WHERE user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Debit removes amount from the balance and returns the new balance.
// The balance check and the subtraction are one conditional UPDATE, so
// concurrent debits can never drive a balance negative.
func (p *Postgres) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative debit amount %d", amount)
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback()

	var newBalance int64
	err = dbTx.QueryRowContext(ctx, `
		UPDATE balances SET balance = balance - $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING balance
	`, amount, time.Now().UTC(), userID).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, game.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to debit: %w", err)
	}

	if err := p.record(ctx, dbTx, userID, TxTypeDebit, amount, newBalance+amount, newBalance); err != nil {
		return 0, err
	}
	if err := dbTx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Credit adds amount to the balance, creating the account on first
// touch, and returns the new balance.
func (p *Postgres) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative credit amount %d", amount)
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer dbTx.Rollback()

	var newBalance int64
	err = dbTx.QueryRowContext(ctx, `
		INSERT INTO balances (user_id, balance, currency, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = balances.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING balance
	`, userID, amount, p.currency, time.Now().UTC()).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("failed to credit: %w", err)
	}

	if err := p.record(ctx, dbTx, userID, TxTypeCredit, amount, newBalance-amount, newBalance); err != nil {
		return 0, err
	}
	if err := dbTx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (p *Postgres) record(ctx context.Context, dbTx *sql.Tx, userID, txType string, amount, before, after int64) error {
	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, amount, balance_before, balance_after, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.New().String(), userID, txType, amount, before, after, p.currency, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// Transactions retrieves a user's movement history, newest first.
func (p *Postgres) Transactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, balance_before, balance_after, currency, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var tx Transaction
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount,
			&tx.BalanceBefore, &tx.BalanceAfter, &tx.Currency, &tx.CreatedAt)
		if err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
