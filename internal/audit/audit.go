// Package audit provides the significant-event log for the round
// engine: round lifecycle, large wins, jackpot awards, fairness
// verifications and entropy failures.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexbotov/roundengine/internal/domain"
)

// Event types recorded by the engine.
const (
	EventRoundStarted     = "round_started"
	EventRoundSettled     = "round_settled"
	EventSpinSettled      = "spin_settled"
	EventLargeWin         = "large_win"
	EventJackpotAward     = "jackpot_award"
	EventPowerUpUsed      = "power_up_used"
	EventFairnessVerify   = "fairness_verify"
	EventGamingDisabled   = "gaming_disabled"
	EventGamingEnabled    = "gaming_enabled"
	EventEntropyFailure   = "entropy_failure"
	EventRNGHealthCheck   = "rng_health_check"
	EventConfigRejected   = "config_rejected"
	EventSystemError      = "system_error"
)

// Service provides audit logging functionality.
type Service struct {
	db *sql.DB
}

// New creates a new audit service.
func New(db *sql.DB) *Service {
	return &Service{db: db}
}

// LogEvent records a significant event.
func (s *Service) LogEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, severity, timestamp, user_id, round_id, description, data, component)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, event.ID, event.Type, event.Severity, event.Timestamp, event.UserID, event.RoundID,
		event.Description, string(event.Data), event.Component)

	return err
}

// Log is a convenience method for logging events.
func (s *Service) Log(ctx context.Context, eventType string, severity domain.EventSeverity, description string, data interface{}, opts ...EventOption) error {
	event := &domain.AuditEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Severity:    severity,
		Timestamp:   time.Now().UTC(),
		Description: description,
		Component:   "engine",
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err == nil {
			event.Data = jsonData
		}
	}

	for _, opt := range opts {
		opt(event)
	}

	return s.LogEvent(ctx, event)
}

// EventOption is a functional option for configuring audit events.
type EventOption func(*domain.AuditEvent)

// WithUser sets the user ID for the event.
func WithUser(userID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.UserID = &userID
	}
}

// WithRound sets the round ID for the event.
func WithRound(roundID string) EventOption {
	return func(e *domain.AuditEvent) {
		e.RoundID = &roundID
	}
}

// WithComponent sets the component for the event.
func WithComponent(component string) EventOption {
	return func(e *domain.AuditEvent) {
		e.Component = component
	}
}

// GetEvents retrieves audit events with optional filtering.
func (s *Service) GetEvents(ctx context.Context, filter *EventFilter) ([]*domain.AuditEvent, error) {
	query := `SELECT id, type, severity, timestamp, user_id, round_id, description, data, component
			  FROM audit_events WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.UserID != "" {
			query += fmt.Sprintf(" AND user_id = $%d", paramIdx)
			args = append(args, filter.UserID)
			paramIdx++
		}
		if filter.RoundID != "" {
			query += fmt.Sprintf(" AND round_id = $%d", paramIdx)
			args = append(args, filter.RoundID)
			paramIdx++
		}
		if filter.Type != "" {
			query += fmt.Sprintf(" AND type = $%d", paramIdx)
			args = append(args, filter.Type)
			paramIdx++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND timestamp >= $%d", paramIdx)
			args = append(args, filter.From)
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND timestamp <= $%d", paramIdx)
			args = append(args, filter.To)
			paramIdx++
		}
	}

	query += " ORDER BY timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", paramIdx)
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		var userID, roundID sql.NullString
		var data string

		err := rows.Scan(&event.ID, &event.Type, &event.Severity, &event.Timestamp,
			&userID, &roundID, &event.Description, &data, &event.Component)
		if err != nil {
			return nil, err
		}

		if userID.Valid {
			event.UserID = &userID.String
		}
		if roundID.Valid {
			event.RoundID = &roundID.String
		}
		if data != "" {
			event.Data = json.RawMessage(data)
		}

		events = append(events, &event)
	}

	return events, nil
}

// EventFilter defines criteria for filtering audit events.
type EventFilter struct {
	UserID  string
	RoundID string
	Type    string
	From    time.Time
	To      time.Time
	Limit   int
}
