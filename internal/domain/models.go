// Package domain contains core domain models for the game round engine.
//
// The engine turns a player's wager into a seeded, reproducible outcome
// and manages the lifecycle of an in-progress round. Account balances and
// transport concerns live outside these models; the engine only reports
// monetary deltas.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Money represents monetary values in the smallest currency unit.
type Money struct {
	Amount   int64  `json:"amount"`   // Amount in smallest unit (cents)
	Currency string `json:"currency"` // ISO 4217 currency code
}

// NewMoney creates a new Money value from the major unit.
func NewMoney(amount float64, currency string) Money {
	return Money{
		Amount:   int64(amount * 100),
		Currency: currency,
	}
}

// Float64 returns the monetary value as a float.
func (m Money) Float64() float64 {
	return float64(m.Amount) / 100.0
}

// Add adds two money values.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Sub subtracts money value.
func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Seed is the per-round entropy all of a round's draws derive from.
// It is generated once at round start, never regenerated, and withheld
// from the client until the round is terminal so outcomes cannot be
// predicted but can be verified after the fact.
type Seed []byte

// String returns the seed in hex, the form published for verification.
func (s Seed) String() string {
	return hex.EncodeToString(s)
}

// Hash returns the SHA-256 commitment of the seed in hex. The
// commitment is shown to the player at round start, before any
// outcome, so the published seed can later be checked against it.
func (s Seed) Hash() string {
	sum := sha256.Sum256(s)
	return hex.EncodeToString(sum[:])
}

// ParseSeed decodes a hex-published seed.
func ParseSeed(h string) (Seed, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	return Seed(b), nil
}

// CellKind identifies what a grid cell holds.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellTrap
	CellSmallTreasure
	CellMediumTreasure
	CellBigTreasure
	CellJackpot
)

// String returns the wire name of the cell kind.
func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellTrap:
		return "trap"
	case CellSmallTreasure:
		return "small_treasure"
	case CellMediumTreasure:
		return "medium_treasure"
	case CellBigTreasure:
		return "big_treasure"
	case CellJackpot:
		return "jackpot"
	}
	return "unknown"
}

// MarshalJSON encodes the kind by name.
func (k CellKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its wire name.
func (k *CellKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for c := CellEmpty; c <= CellJackpot; c++ {
		if c.String() == name {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown cell kind %q", name)
}

// IsTreasure reports whether revealing the cell pays out.
func (k CellKind) IsTreasure() bool {
	switch k {
	case CellSmallTreasure, CellMediumTreasure, CellBigTreasure, CellJackpot:
		return true
	}
	return false
}

// CellState tracks what the player can see of a cell.
type CellState int

const (
	CellHidden CellState = iota
	CellRevealed
	CellHinted
)

// Cell is one position on a treasure-hunt grid. Cells are created at
// round start and only ever mutated by the round state machine (reveal)
// or a power-up (hint); they are never removed.
type Cell struct {
	X     int       `json:"x"`
	Y     int       `json:"y"`
	Kind  CellKind  `json:"kind"`
	State CellState `json:"state"`
	Value int64     `json:"value"` // payout in cents if revealed
}

// SymbolKind identifies a reel symbol.
type SymbolKind int

const (
	SymbolCherry SymbolKind = iota
	SymbolLemon
	SymbolOrange
	SymbolPlum
	SymbolGrapes
	SymbolBell
	SymbolBar
	SymbolSeven
	SymbolWild
)

// String returns the wire name of the symbol.
func (s SymbolKind) String() string {
	switch s {
	case SymbolCherry:
		return "cherry"
	case SymbolLemon:
		return "lemon"
	case SymbolOrange:
		return "orange"
	case SymbolPlum:
		return "plum"
	case SymbolGrapes:
		return "grapes"
	case SymbolBell:
		return "bell"
	case SymbolBar:
		return "bar"
	case SymbolSeven:
		return "seven"
	case SymbolWild:
		return "wild"
	}
	return "unknown"
}

// MarshalJSON encodes the symbol by name.
func (s SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a symbol from its wire name.
func (s *SymbolKind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	sym, ok := ParseSymbol(name)
	if !ok {
		return fmt.Errorf("unknown symbol %q", name)
	}
	*s = sym
	return nil
}

// ParseSymbol maps a wire name back to a SymbolKind.
func ParseSymbol(name string) (SymbolKind, bool) {
	for s := SymbolCherry; s <= SymbolWild; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// IsWild reports whether the symbol substitutes for others.
func (s SymbolKind) IsWild() bool { return s == SymbolWild }

// PowerUpType identifies a single-use round assist.
type PowerUpType int

const (
	PowerUpDetector PowerUpType = iota // hints safe cells, no move consumed
	PowerUpMap                         // auto-reveals safe cells as moves
	PowerUpCompass                     // direction hint to nearest treasure
)

// String returns the wire name of the power-up.
func (p PowerUpType) String() string {
	switch p {
	case PowerUpDetector:
		return "detector"
	case PowerUpMap:
		return "map"
	case PowerUpCompass:
		return "compass"
	}
	return "unknown"
}

// ParsePowerUp maps a wire name back to a PowerUpType.
func ParsePowerUp(name string) (PowerUpType, bool) {
	switch name {
	case "detector":
		return PowerUpDetector, true
	case "map":
		return PowerUpMap, true
	case "compass":
		return PowerUpCompass, true
	}
	return 0, false
}

// RoundMode distinguishes the two game families the engine runs.
type RoundMode string

const (
	ModeGrid RoundMode = "grid"
	ModeReel RoundMode = "reel"
)

// RoundStatus is the lifecycle state of a round. The three non-active
// states are terminal: no transition ever leaves them.
type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundWon       RoundStatus = "won"
	RoundLost      RoundStatus = "lost"
	RoundCashedOut RoundStatus = "cashed_out"
)

// Terminal reports whether the status admits no further transitions.
func (s RoundStatus) Terminal() bool {
	return s == RoundWon || s == RoundLost || s == RoundCashedOut
}

// BonusState carries the reel-mode bonus feature state across spins
// within one reel session.
type BonusState struct {
	ActiveReels         int     `json:"active_reels"`
	InFreeSpins         bool    `json:"in_free_spins"`
	FreeSpinsRemaining  int     `json:"free_spins_remaining"`
	FreeSpinsMultiplier float64 `json:"free_spins_multiplier"`
}

// Round is the aggregate root for one grid round or one reel session.
// It is owned exclusively by the engine from start until a terminal
// transition, after which the outcome passes to the ledger and the
// round is removed from the active store.
type Round struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Mode         RoundMode            `json:"mode"`
	Difficulty   string               `json:"difficulty,omitempty"`
	Seed         Seed                 `json:"-"` // published only post-resolution
	NonceCursor  uint64               `json:"nonce_cursor"`
	Wager        int64                `json:"wager"`
	Grid         []Cell               `json:"grid,omitempty"` // row-major, grid mode only
	GridSize     int                  `json:"grid_size,omitempty"`
	Bonus        *BonusState          `json:"bonus,omitempty"` // reel mode only
	MovesMade    int                  `json:"moves_made"`
	MaxMoves     int                  `json:"max_moves,omitempty"`
	LastRevealX  int                  `json:"last_reveal_x"` // -1 until the first reveal
	LastRevealY  int                  `json:"last_reveal_y"`
	ActivePayout int64                `json:"active_payout"`
	UsedPowerUps map[PowerUpType]bool `json:"used_power_ups,omitempty"`
	Status       RoundStatus          `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
}

// CellAt returns the cell at (x, y), or nil when out of bounds.
func (r *Round) CellAt(x, y int) *Cell {
	if x < 0 || y < 0 || x >= r.GridSize || y >= r.GridSize {
		return nil
	}
	return &r.Grid[y*r.GridSize+x]
}

// OutcomeEvent is the record the engine emits after every terminal
// transition or settled spin for downstream ledger, statistics and
// challenge systems. The engine does not know who consumes it.
type OutcomeEvent struct {
	RoundID    string      `json:"round_id"`
	UserID     string      `json:"user_id"`
	Mode       RoundMode   `json:"mode"`
	Wager      int64       `json:"wager"`
	Payout     int64       `json:"payout"`
	ProfitLoss int64       `json:"profit_loss"`
	Seed       string      `json:"seed"` // hex, published for verification
	NonceStart uint64      `json:"nonce_start"`
	NonceEnd   uint64      `json:"nonce_end"` // exclusive
	Status     RoundStatus `json:"status"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventSeverity represents audit event severity.
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// AuditEvent represents a significant engine event: round lifecycle,
// jackpot awards, fairness verifications, entropy failures.
type AuditEvent struct {
	ID          string          `json:"id" db:"id"`
	Type        string          `json:"type" db:"type"`
	Severity    EventSeverity   `json:"severity" db:"severity"`
	Timestamp   time.Time       `json:"timestamp" db:"timestamp"`
	UserID      *string         `json:"user_id,omitempty" db:"user_id"`
	RoundID     *string         `json:"round_id,omitempty" db:"round_id"`
	Description string          `json:"description" db:"description"`
	Data        json.RawMessage `json:"data,omitempty" db:"data"`
	Component   string          `json:"component" db:"component"`
}
