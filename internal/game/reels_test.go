package game

import (
	"testing"

	"github.com/alexbotov/roundengine/internal/domain"
)

// column builds a one-symbol-per-row reel for a 3-row window.
func column(top, mid, bot domain.SymbolKind) []domain.SymbolKind {
	return []domain.SymbolKind{top, mid, bot}
}

func TestScoreWindow(t *testing.T) {
	tables := mustTables(t)
	rc := &tables.Reel

	cherry := domain.SymbolCherry
	lemon := domain.SymbolLemon
	seven := domain.SymbolSeven
	bar := domain.SymbolBar
	wild := domain.SymbolWild

	tests := []struct {
		name       string
		window     [][]domain.SymbolKind
		wager      int64
		multiplier float64
		wantTotal  int64
		wantLines  int
	}{
		{
			// Middle row runs cherry-cherry-cherry: 3-of-a-kind pays 2x.
			name: "ThreeOfAKind",
			window: [][]domain.SymbolKind{
				column(lemon, cherry, seven),
				column(seven, cherry, lemon),
				column(lemon, cherry, seven),
			},
			wager: 50, multiplier: 1,
			wantTotal: 100, wantLines: 1,
		},
		{
			// A wild in the middle of the run substitutes.
			name: "WildSubstitutes",
			window: [][]domain.SymbolKind{
				column(cherry, lemon, seven),
				column(wild, seven, lemon),
				column(cherry, lemon, seven),
			},
			wager: 50, multiplier: 1,
			wantTotal: 100, wantLines: 1,
		},
		{
			// Leading wilds take the symbol of the first non-wild.
			name: "LeadingWildsAdoptSymbol",
			window: [][]domain.SymbolKind{
				column(wild, lemon, cherry),
				column(wild, seven, lemon),
				column(seven, lemon, cherry),
			},
			wager: 100, multiplier: 1,
			wantTotal: 1000, wantLines: 1, // seven run of 3 pays 10x
		},
		{
			// A run of nothing but wilds pays the wild row.
			name: "AllWildRow",
			window: [][]domain.SymbolKind{
				column(wild, lemon, cherry),
				column(wild, seven, lemon),
				column(wild, lemon, seven),
			},
			wager: 100, multiplier: 1,
			wantTotal: 800, wantLines: 1, // wild run of 3 pays 8x
		},
		{
			// Runs must start at the leftmost reel.
			name: "RunNotFromLeftEdge",
			window: [][]domain.SymbolKind{
				column(lemon, seven, cherry),
				column(cherry, cherry, lemon),
				column(cherry, cherry, seven),
			},
			wager: 50, multiplier: 1,
			wantTotal: 0, wantLines: 0,
		},
		{
			// Two reels matching is below the minimum run.
			name: "RunOfTwo",
			window: [][]domain.SymbolKind{
				column(cherry, lemon, seven),
				column(cherry, seven, lemon),
				column(lemon, cherry, cherry),
			},
			wager: 50, multiplier: 1,
			wantTotal: 0, wantLines: 0,
		},
		{
			// Five active reels, full bar row: run of 5 pays 50x.
			name: "RunOfFive",
			window: [][]domain.SymbolKind{
				column(bar, lemon, cherry),
				column(bar, seven, lemon),
				column(bar, lemon, seven),
				column(bar, cherry, lemon),
				column(bar, lemon, cherry),
			},
			wager: 10, multiplier: 1,
			wantTotal: 500, wantLines: 1,
		},
		{
			// Free-spin multiplier doubles each row before summing.
			name: "MultiplierApplies",
			window: [][]domain.SymbolKind{
				column(cherry, lemon, seven),
				column(cherry, seven, lemon),
				column(cherry, lemon, seven),
			},
			wager: 50, multiplier: 2,
			wantTotal: 200, wantLines: 1,
		},
		{
			// Two rows can pay on the same spin.
			name: "TwoRowsPay",
			window: [][]domain.SymbolKind{
				column(cherry, lemon, seven),
				column(cherry, lemon, cherry),
				column(cherry, lemon, lemon),
			},
			wager: 50, multiplier: 1,
			wantTotal: 200, wantLines: 2, // cherry 2x + lemon 2x
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, total := scoreWindow(rc, tt.window, tt.wager, tt.multiplier)
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(lines) != tt.wantLines {
				t.Errorf("line wins = %d, want %d", len(lines), tt.wantLines)
			}
			var sum int64
			for _, l := range lines {
				sum += l.Payout
			}
			if sum != total {
				t.Errorf("line payouts sum to %d, total is %d", sum, total)
			}
		})
	}
}

func TestNoNegativePayout(t *testing.T) {
	tables := mustTables(t)
	rc := &tables.Reel
	seed := mustSeed(t)

	var nonce uint64
	for spin := 0; spin < 2000; spin++ {
		window, next := spinReels(rc, seed, nonce, 5)
		nonce = next
		_, total := scoreWindow(rc, window, 100, 1)
		if total < 0 {
			t.Fatalf("spin %d produced negative payout %d", spin, total)
		}
	}
}

func TestJackpotRow(t *testing.T) {
	tables := mustTables(t)
	rc := &tables.Reel
	bar := rc.JackpotKind()
	lemon := domain.SymbolLemon
	wild := domain.SymbolWild

	t.Run("FullRow", func(t *testing.T) {
		window := [][]domain.SymbolKind{
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
		}
		if !jackpotRow(rc, window) {
			t.Error("full jackpot-symbol row not detected")
		}
	})

	t.Run("WildDoesNotSubstitute", func(t *testing.T) {
		window := [][]domain.SymbolKind{
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
			column(wild, lemon, lemon),
			column(bar, lemon, lemon),
			column(bar, lemon, lemon),
		}
		if jackpotRow(rc, window) {
			t.Error("wild counted toward the jackpot row")
		}
	})

	t.Run("BrokenRow", func(t *testing.T) {
		window := [][]domain.SymbolKind{
			column(bar, bar, bar),
			column(bar, bar, lemon),
			column(lemon, bar, bar),
			column(bar, bar, bar),
			column(bar, bar, bar),
		}
		// Middle row is complete here.
		if !jackpotRow(rc, window) {
			t.Error("complete middle row not detected")
		}
		window[2][1] = lemon
		if jackpotRow(rc, window) {
			t.Error("no row is complete, but jackpotRow reported one")
		}
	})
}
