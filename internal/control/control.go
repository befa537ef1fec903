// Package control provides the operational gate over round starts.
// Operators can stop new rounds on demand, and the engine trips the
// gate itself when it loses a resource it cannot gamble without, such
// as the entropy source. In-flight rounds are left alone so players
// can always finish or cash out what they already paid for.
package control

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexbotov/roundengine/internal/audit"
	"github.com/alexbotov/roundengine/internal/domain"
)

var ErrGamingDisabled = errors.New("gaming is currently disabled")

// Service holds the gate state, persisted so a restart does not
// silently re-enable a deliberately stopped system.
type Service struct {
	db    *sql.DB
	audit *audit.Service

	mu             sync.RWMutex
	gamingEnabled  bool
	disabledAt     *time.Time
	disabledBy     string
	disabledReason string
}

// New creates a control service with gaming enabled.
func New(db *sql.DB, auditSvc *audit.Service) *Service {
	return &Service{
		db:            db,
		audit:         auditSvc,
		gamingEnabled: true,
	}
}

// Check returns ErrGamingDisabled when round starts are stopped. The
// engine calls this before every round or session start.
func (s *Service) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.gamingEnabled {
		return ErrGamingDisabled
	}
	return nil
}

// Trip disables round starts after a fatal engine fault. Unlike
// Disable it never fails: persistence is best effort because the
// in-memory gate must close even when the database is also down.
func (s *Service) Trip(ctx context.Context, reason string) {
	s.mu.Lock()
	now := time.Now().UTC()
	s.gamingEnabled = false
	s.disabledAt = &now
	s.disabledBy = "engine"
	s.disabledReason = reason
	s.mu.Unlock()

	s.persistState(ctx, false, "engine")

	s.audit.Log(ctx, audit.EventGamingDisabled, domain.SeverityCritical,
		fmt.Sprintf("Gaming disabled by engine fault: %s", reason),
		map[string]string{"reason": reason},
		audit.WithComponent("control"))
}

// Disable stops round starts on operator demand.
func (s *Service) Disable(ctx context.Context, reason, authorizedBy string) error {
	s.mu.Lock()
	now := time.Now().UTC()
	s.gamingEnabled = false
	s.disabledAt = &now
	s.disabledBy = authorizedBy
	s.disabledReason = reason
	s.mu.Unlock()

	if err := s.persistState(ctx, false, authorizedBy); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventGamingDisabled, domain.SeverityCritical,
		fmt.Sprintf("Gaming disabled: %s", reason),
		map[string]interface{}{
			"authorized_by": authorizedBy,
			"reason":        reason,
		},
		audit.WithComponent("control"))

	return nil
}

// Enable resumes round starts.
func (s *Service) Enable(ctx context.Context, authorizedBy string) error {
	s.mu.Lock()
	s.gamingEnabled = true
	s.disabledAt = nil
	s.disabledBy = ""
	s.disabledReason = ""
	s.mu.Unlock()

	if err := s.persistState(ctx, true, authorizedBy); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.EventGamingEnabled, domain.SeverityInfo,
		"Gaming enabled",
		map[string]interface{}{"authorized_by": authorizedBy},
		audit.WithComponent("control"))

	return nil
}

func (s *Service) persistState(ctx context.Context, enabled bool, by string) error {
	value := "true"
	if !enabled {
		value = "false"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_state (key, value, updated_at, updated_by)
		VALUES ('gaming_enabled', $1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $1, updated_at = $2, updated_by = $3
	`, value, time.Now().UTC(), by)
	if err != nil {
		return fmt.Errorf("failed to persist gaming state: %w", err)
	}
	return nil
}

// Status describes the current gate state.
type Status struct {
	GamingEnabled  bool       `json:"gaming_enabled"`
	DisabledAt     *time.Time `json:"disabled_at,omitempty"`
	DisabledBy     string     `json:"disabled_by,omitempty"`
	DisabledReason string     `json:"disabled_reason,omitempty"`
}

// GetStatus returns the current gate state.
func (s *Service) GetStatus() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Status{
		GamingEnabled:  s.gamingEnabled,
		DisabledAt:     s.disabledAt,
		DisabledBy:     s.disabledBy,
		DisabledReason: s.disabledReason,
	}
}

// LoadState loads the persisted gate state on startup.
func (s *Service) LoadState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_state WHERE key = 'gaming_enabled'`).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	s.gamingEnabled = value != "false"
	return nil
}
