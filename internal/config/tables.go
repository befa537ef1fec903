// Package config - static game tables: outcome buckets, payout
// multipliers, reel weights. Loaded once at startup, validated once,
// shared read-only across all rounds. A malformed table is fatal at
// load time and never surfaces as a per-round error.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alexbotov/roundengine/internal/domain"
)

// ErrInvalidTables indicates a malformed game table. Request handling
// must never see this: tables are validated before the engine starts.
var ErrInvalidTables = errors.New("invalid game tables")

// CellMultipliers maps treasure kinds to payout multiples of the wager.
type CellMultipliers struct {
	Small   float64 `yaml:"small"`
	Medium  float64 `yaml:"medium"`
	Big     float64 `yaml:"big"`
	Jackpot float64 `yaml:"jackpot"`
}

// For returns the multiplier for a treasure kind, 0 for non-treasures.
func (m CellMultipliers) For(k domain.CellKind) float64 {
	switch k {
	case domain.CellSmallTreasure:
		return m.Small
	case domain.CellMediumTreasure:
		return m.Medium
	case domain.CellBigTreasure:
		return m.Big
	case domain.CellJackpot:
		return m.Jackpot
	}
	return 0
}

// OutcomeBucket is one entry of a difficulty's probability table: the
// chance of this board composition and the cell counts it places.
type OutcomeBucket struct {
	Probability float64 `yaml:"probability"`
	Traps       int     `yaml:"traps"`
	Small       int     `yaml:"small"`
	Medium      int     `yaml:"medium"`
	Big         int     `yaml:"big"`
	Jackpots    int     `yaml:"jackpots"`
}

// CellCount returns the number of non-empty cells the bucket places.
func (b OutcomeBucket) CellCount() int {
	return b.Traps + b.Small + b.Medium + b.Big + b.Jackpots
}

// TreasureValue returns the total treasure value on a board of this
// bucket, in multiples of the wager.
func (b OutcomeBucket) TreasureValue(m CellMultipliers) float64 {
	return float64(b.Small)*m.Small +
		float64(b.Medium)*m.Medium +
		float64(b.Big)*m.Big +
		float64(b.Jackpots)*m.Jackpot
}

// DifficultyConfig describes one grid-mode difficulty.
type DifficultyConfig struct {
	Name      string          `yaml:"name"`
	GridSize  int             `yaml:"grid_size"`
	EntryCost int64           `yaml:"entry_cost"` // cents, on top of the wager
	MaxMoves  int             `yaml:"max_moves"`
	TargetRTP float64         `yaml:"target_rtp"`
	Buckets   []OutcomeBucket `yaml:"buckets"`
}

// TheoreticalRTP computes the expected payout/wager ratio under the
// reference policy of revealing cells until the round terminates on its
// own (trap hit or max moves reached). Used at load time to check the
// configured target, and by the RTP convergence tests.
func (d *DifficultyConfig) TheoreticalRTP(m CellMultipliers) float64 {
	cells := d.GridSize * d.GridSize
	var rtp float64
	for _, b := range d.Buckets {
		safe := cells - b.Traps

		// P(no trap in the first MaxMoves uniformly random reveals)
		pWin := 1.0
		for i := 0; i < d.MaxMoves; i++ {
			pWin *= float64(safe-i) / float64(cells-i)
		}

		// Given a win, the revealed set is a uniform subset of the safe
		// cells, so the expected captured value is MaxMoves/safe of the
		// board total. A trap hit zeroes the payout, contributing nothing.
		rtp += b.Probability * pWin * float64(d.MaxMoves) / float64(safe) * b.TreasureValue(m)
	}
	return rtp
}

// PowerUpTable holds the fixed costs and effect sizes of power-ups.
type PowerUpTable struct {
	DetectorCost  int64 `yaml:"detector_cost"`
	DetectorHints int   `yaml:"detector_hints"`
	MapCost       int64 `yaml:"map_cost"`
	MapReveals    int   `yaml:"map_reveals"`
	CompassCost   int64 `yaml:"compass_cost"`
}

// Cost returns the debit for a power-up type.
func (p PowerUpTable) Cost(t domain.PowerUpType) int64 {
	switch t {
	case domain.PowerUpDetector:
		return p.DetectorCost
	case domain.PowerUpMap:
		return p.MapCost
	case domain.PowerUpCompass:
		return p.CompassCost
	}
	return 0
}

// SymbolWeight is one entry of the reel symbol table. Order in the
// slice is the deterministic walk order for weighted selection.
type SymbolWeight struct {
	Symbol string  `yaml:"symbol"`
	Weight float64 `yaml:"weight"`
}

// ReelConfig describes the reel-mode game.
type ReelConfig struct {
	MaxReels   int `yaml:"max_reels"`
	Rows       int `yaml:"rows"`
	StartReels int `yaml:"start_reels"`

	Weights  []SymbolWeight       `yaml:"weights"`
	Paytable map[string][]float64 `yaml:"paytable"` // runs of 3..MaxReels, wager multiples

	WildExpandChance   float64 `yaml:"wild_expand_chance"`
	FreeSpinTrigger    int     `yaml:"free_spin_trigger"` // visible wilds needed
	FreeSpinCount      int     `yaml:"free_spin_count"`
	FreeSpinMultiplier float64 `yaml:"free_spin_multiplier"`

	JackpotSymbol       string  `yaml:"jackpot_symbol"`
	JackpotContribution float64 `yaml:"jackpot_contribution"` // fraction of each wager
	JackpotFloor        int64   `yaml:"jackpot_floor"`        // cents

	// Resolved by Validate.
	weights     []WeightedSymbol
	payouts     map[domain.SymbolKind][]float64
	jackpotKind domain.SymbolKind
}

// WeightedSymbol is a resolved, typed symbol weight.
type WeightedSymbol struct {
	Kind   domain.SymbolKind
	Weight float64
}

// WeightedSymbols returns the resolved symbol table in walk order.
func (r *ReelConfig) WeightedSymbols() []WeightedSymbol { return r.weights }

// Payouts returns the run-length payout row for a symbol, nil if the
// symbol never pays.
func (r *ReelConfig) Payouts(k domain.SymbolKind) []float64 { return r.payouts[k] }

// JackpotKind returns the symbol whose full row triggers the jackpot.
func (r *ReelConfig) JackpotKind() domain.SymbolKind { return r.jackpotKind }

// Tables bundles every static game table.
type Tables struct {
	Multipliers  CellMultipliers    `yaml:"multipliers"`
	Difficulties []DifficultyConfig `yaml:"difficulties"`
	Reel         ReelConfig         `yaml:"reel"`
	PowerUps     PowerUpTable       `yaml:"power_ups"`
}

// Difficulty looks up a difficulty by name.
func (t *Tables) Difficulty(name string) (*DifficultyConfig, bool) {
	for i := range t.Difficulties {
		if t.Difficulties[i].Name == name {
			return &t.Difficulties[i], true
		}
	}
	return nil, false
}

// LoadTables reads and validates game tables, from the YAML file at
// path when given, otherwise the built-in defaults.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		t := DefaultTables()
		if err := t.Validate(); err != nil {
			return nil, err
		}
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game tables: %w", err)
	}

	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTables, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every invariant the engine relies on at request time,
// and resolves string symbol names into closed enum kinds. Called once
// at load; a failure means the service must not start taking rounds.
func (t *Tables) Validate() error {
	if t.Multipliers.Small <= 0 || t.Multipliers.Medium <= 0 ||
		t.Multipliers.Big <= 0 || t.Multipliers.Jackpot <= 0 {
		return fmt.Errorf("%w: cell multipliers must be positive", ErrInvalidTables)
	}

	if len(t.Difficulties) == 0 {
		return fmt.Errorf("%w: no difficulties configured", ErrInvalidTables)
	}

	for i := range t.Difficulties {
		if err := t.validateDifficulty(&t.Difficulties[i]); err != nil {
			return err
		}
	}

	return t.validateReel()
}

func (t *Tables) validateDifficulty(d *DifficultyConfig) error {
	if d.GridSize < 2 {
		return fmt.Errorf("%w: difficulty %q: grid size %d too small", ErrInvalidTables, d.Name, d.GridSize)
	}
	cells := d.GridSize * d.GridSize

	if len(d.Buckets) == 0 {
		return fmt.Errorf("%w: difficulty %q has no outcome buckets", ErrInvalidTables, d.Name)
	}

	var probSum float64
	minSafe := cells
	for _, b := range d.Buckets {
		if b.Probability <= 0 {
			return fmt.Errorf("%w: difficulty %q: bucket probability must be positive", ErrInvalidTables, d.Name)
		}
		probSum += b.Probability

		// The generator only ever places what fits on the board.
		if b.CellCount() > cells {
			return fmt.Errorf("%w: difficulty %q: bucket places %d cells on a %d-cell board",
				ErrInvalidTables, d.Name, b.CellCount(), cells)
		}
		if safe := cells - b.Traps; safe < minSafe {
			minSafe = safe
		}
	}
	if math.Abs(probSum-1.0) > 1e-9 {
		return fmt.Errorf("%w: difficulty %q: bucket probabilities sum to %v, want 1.0",
			ErrInvalidTables, d.Name, probSum)
	}

	if d.MaxMoves < 1 || d.MaxMoves > minSafe {
		return fmt.Errorf("%w: difficulty %q: max moves %d outside [1, %d]",
			ErrInvalidTables, d.Name, d.MaxMoves, minSafe)
	}
	if d.EntryCost < 0 {
		return fmt.Errorf("%w: difficulty %q: negative entry cost", ErrInvalidTables, d.Name)
	}

	if rtp := d.TheoreticalRTP(t.Multipliers); math.Abs(rtp-d.TargetRTP) > 0.01 {
		return fmt.Errorf("%w: difficulty %q: theoretical RTP %.4f deviates from target %.4f",
			ErrInvalidTables, d.Name, rtp, d.TargetRTP)
	}

	return nil
}

func (t *Tables) validateReel() error {
	r := &t.Reel
	if r.MaxReels < 3 || r.Rows < 1 {
		return fmt.Errorf("%w: reel geometry %dx%d invalid", ErrInvalidTables, r.MaxReels, r.Rows)
	}
	if r.StartReels < 3 || r.StartReels > r.MaxReels {
		return fmt.Errorf("%w: start reels %d outside [3, %d]", ErrInvalidTables, r.StartReels, r.MaxReels)
	}

	r.weights = r.weights[:0]
	var weightSum float64
	for _, w := range r.Weights {
		kind, ok := domain.ParseSymbol(w.Symbol)
		if !ok {
			return fmt.Errorf("%w: unknown reel symbol %q", ErrInvalidTables, w.Symbol)
		}
		if w.Weight <= 0 {
			return fmt.Errorf("%w: symbol %q: weight must be positive", ErrInvalidTables, w.Symbol)
		}
		r.weights = append(r.weights, WeightedSymbol{Kind: kind, Weight: w.Weight})
		weightSum += w.Weight
	}
	if weightSum <= 0 {
		return fmt.Errorf("%w: empty reel symbol table", ErrInvalidTables)
	}

	runLengths := r.MaxReels - 2 // runs of 3..MaxReels
	r.payouts = make(map[domain.SymbolKind][]float64, len(r.Paytable))
	for name, row := range r.Paytable {
		kind, ok := domain.ParseSymbol(name)
		if !ok {
			return fmt.Errorf("%w: unknown paytable symbol %q", ErrInvalidTables, name)
		}
		if len(row) != runLengths {
			return fmt.Errorf("%w: paytable for %q has %d entries, want %d",
				ErrInvalidTables, name, len(row), runLengths)
		}
		for _, pay := range row {
			if pay < 0 {
				return fmt.Errorf("%w: paytable for %q has negative payout", ErrInvalidTables, name)
			}
		}
		r.payouts[kind] = row
	}

	jackpotKind, ok := domain.ParseSymbol(r.JackpotSymbol)
	if !ok {
		return fmt.Errorf("%w: unknown jackpot symbol %q", ErrInvalidTables, r.JackpotSymbol)
	}
	r.jackpotKind = jackpotKind

	if r.WildExpandChance < 0 || r.WildExpandChance > 1 {
		return fmt.Errorf("%w: wild expand chance %v outside [0, 1]", ErrInvalidTables, r.WildExpandChance)
	}
	if r.FreeSpinTrigger < 1 || r.FreeSpinCount < 1 || r.FreeSpinMultiplier < 1 {
		return fmt.Errorf("%w: free spin parameters invalid", ErrInvalidTables)
	}
	if r.JackpotContribution < 0 || r.JackpotContribution >= 1 {
		return fmt.Errorf("%w: jackpot contribution %v outside [0, 1)", ErrInvalidTables, r.JackpotContribution)
	}
	if r.JackpotFloor < 0 {
		return fmt.Errorf("%w: negative jackpot floor", ErrInvalidTables)
	}

	return nil
}

// DefaultTables returns the built-in game tables. Multipliers and
// bucket compositions are tuned so each difficulty's theoretical RTP
// under the reference policy matches its target.
func DefaultTables() *Tables {
	return &Tables{
		Multipliers: CellMultipliers{
			Small:   0.4,
			Medium:  1.2,
			Big:     2.5,
			Jackpot: 7.0,
		},
		Difficulties: []DifficultyConfig{
			{
				Name:      "easy",
				GridSize:  5,
				EntryCost: 0,
				MaxMoves:  10,
				TargetRTP: 0.946,
				Buckets: []OutcomeBucket{
					{Probability: 0.45, Traps: 3, Small: 12, Medium: 2},
					{Probability: 0.30, Traps: 3, Small: 11, Medium: 4, Big: 1},
					{Probability: 0.15, Traps: 3, Small: 8, Medium: 5, Big: 2},
					{Probability: 0.08, Traps: 3, Small: 8, Medium: 4, Big: 3},
					{Probability: 0.02, Traps: 3, Small: 8, Medium: 4, Big: 2, Jackpots: 1},
				},
			},
			{
				Name:      "medium",
				GridSize:  5,
				EntryCost: 50,
				MaxMoves:  6,
				TargetRTP: 0.967,
				Buckets: []OutcomeBucket{
					{Probability: 0.40, Traps: 5, Small: 9, Medium: 5, Big: 1},
					{Probability: 0.30, Traps: 5, Small: 12, Medium: 5, Big: 2},
					{Probability: 0.20, Traps: 5, Small: 10, Medium: 6, Big: 2},
					{Probability: 0.08, Traps: 5, Small: 8, Medium: 6, Big: 3},
					{Probability: 0.02, Traps: 5, Small: 8, Medium: 5, Big: 3, Jackpots: 1},
				},
			},
			{
				Name:      "hard",
				GridSize:  6,
				EntryCost: 100,
				MaxMoves:  8,
				TargetRTP: 0.944,
				Buckets: []OutcomeBucket{
					{Probability: 0.40, Traps: 8, Small: 11, Medium: 11, Big: 5},
					{Probability: 0.30, Traps: 8, Small: 11, Medium: 10, Big: 6},
					{Probability: 0.20, Traps: 8, Small: 9, Medium: 12, Big: 6},
					{Probability: 0.08, Traps: 8, Small: 9, Medium: 10, Big: 7, Jackpots: 1},
					{Probability: 0.02, Traps: 8, Small: 8, Medium: 10, Big: 6, Jackpots: 2},
				},
			},
		},
		Reel: ReelConfig{
			MaxReels:   5,
			Rows:       3,
			StartReels: 3,
			Weights: []SymbolWeight{
				{Symbol: "cherry", Weight: 11.5},
				{Symbol: "lemon", Weight: 11.5},
				{Symbol: "orange", Weight: 11.5},
				{Symbol: "plum", Weight: 11.5},
				{Symbol: "grapes", Weight: 11.5},
				{Symbol: "bell", Weight: 11.5},
				{Symbol: "bar", Weight: 11.5},
				{Symbol: "seven", Weight: 11.5},
				{Symbol: "wild", Weight: 8.0},
			},
			Paytable: map[string][]float64{
				"cherry": {2, 5, 10},
				"lemon":  {2, 5, 10},
				"orange": {3, 6, 12},
				"plum":   {3, 8, 16},
				"grapes": {4, 10, 20},
				"bell":   {4, 10, 20},
				"bar":    {7, 20, 50},
				"seven":  {10, 30, 100},
				"wild":   {8, 20, 60},
			},
			WildExpandChance:    0.10,
			FreeSpinTrigger:     3,
			FreeSpinCount:       5,
			FreeSpinMultiplier:  2.0,
			JackpotSymbol:       "bar",
			JackpotContribution: 0.01,
			JackpotFloor:        100000, // $1,000.00
		},
		PowerUps: PowerUpTable{
			DetectorCost:  100,
			DetectorHints: 3,
			MapCost:       250,
			MapReveals:    2,
			CompassCost:   50,
		},
	}
}
