// Package database provides database connection and schema management.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// New creates a database connection.
func New(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates all required tables.
func (db *DB) Migrate() error {
	schema := `
	-- Active rounds: in-flight grid rounds and reel sessions. Settled
	-- rounds are deleted; their history lives in outcomes.
	CREATE TABLE IF NOT EXISTS rounds (
		id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		mode VARCHAR(10) NOT NULL,
		difficulty VARCHAR(50),
		seed VARCHAR(128) NOT NULL,
		nonce_cursor BIGINT NOT NULL DEFAULT 0,
		wager BIGINT NOT NULL DEFAULT 0,
		grid JSONB,
		grid_size INTEGER NOT NULL DEFAULT 0,
		bonus JSONB,
		moves_made INTEGER NOT NULL DEFAULT 0,
		max_moves INTEGER NOT NULL DEFAULT 0,
		last_reveal_x INTEGER NOT NULL DEFAULT -1,
		last_reveal_y INTEGER NOT NULL DEFAULT -1,
		active_payout BIGINT NOT NULL DEFAULT 0,
		used_power_ups JSONB,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL
	);

	-- Settled outcomes, the permanent record behind history queries
	-- and fairness disputes.
	CREATE TABLE IF NOT EXISTS outcomes (
		id UUID PRIMARY KEY,
		round_id UUID NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		mode VARCHAR(10) NOT NULL,
		wager BIGINT NOT NULL,
		payout BIGINT NOT NULL,
		profit_loss BIGINT NOT NULL,
		seed VARCHAR(128),
		nonce_start BIGINT NOT NULL,
		nonce_end BIGINT NOT NULL,
		status VARCHAR(20) NOT NULL,
		occurred_at TIMESTAMP NOT NULL
	);

	-- Balances, one row per user.
	CREATE TABLE IF NOT EXISTS balances (
		user_id VARCHAR(255) PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT 'USD',
		updated_at TIMESTAMP NOT NULL
	);

	-- Transaction log, one row per balance movement.
	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		type VARCHAR(20) NOT NULL,
		amount BIGINT NOT NULL,
		balance_before BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		currency VARCHAR(3) NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	-- Progressive jackpot pool, a single row.
	CREATE TABLE IF NOT EXISTS jackpot_pool (
		id INTEGER PRIMARY KEY,
		amount BIGINT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Jackpot awards, the regulatory record of every pool win.
	CREATE TABLE IF NOT EXISTS jackpot_awards (
		id UUID PRIMARY KEY,
		round_id UUID NOT NULL,
		user_id VARCHAR(255) NOT NULL,
		amount BIGINT NOT NULL,
		awarded_at TIMESTAMP NOT NULL
	);

	-- Audit events.
	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		type VARCHAR(100) NOT NULL,
		severity VARCHAR(20) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		user_id VARCHAR(255),
		round_id UUID,
		description TEXT NOT NULL,
		data JSONB,
		component VARCHAR(100) NOT NULL
	);

	-- Operational state such as the gaming gate.
	CREATE TABLE IF NOT EXISTS system_state (
		key VARCHAR(100) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		updated_by VARCHAR(255) NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_rounds_user ON rounds(user_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_user ON outcomes(user_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_occurred ON outcomes(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user ON audit_events(user_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Reset drops all tables (for testing).
func (db *DB) Reset() error {
	_, err := db.Exec(`
		DROP TABLE IF EXISTS system_state CASCADE;
		DROP TABLE IF EXISTS audit_events CASCADE;
		DROP TABLE IF EXISTS jackpot_awards CASCADE;
		DROP TABLE IF EXISTS jackpot_pool CASCADE;
		DROP TABLE IF EXISTS transactions CASCADE;
		DROP TABLE IF EXISTS balances CASCADE;
		DROP TABLE IF EXISTS outcomes CASCADE;
		DROP TABLE IF EXISTS rounds CASCADE;
	`)
	return err
}

// CleanData truncates all tables without dropping them (for testing).
func (db *DB) CleanData() error {
	_, err := db.Exec(`
		TRUNCATE TABLE system_state, audit_events, jackpot_awards, jackpot_pool,
		               transactions, balances, outcomes, rounds CASCADE;
	`)
	return err
}
