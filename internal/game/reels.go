package game

import (
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/rng"
)

// drawSymbol selects one reel symbol by walking the weighted table in
// configured order against a single seeded draw.
func drawSymbol(rc *config.ReelConfig, seed domain.Seed, nonce uint64) domain.SymbolKind {
	table := rc.WeightedSymbols()

	var total float64
	for _, w := range table {
		total += w.Weight
	}
	target := rng.Draw(seed, nonce) * total

	var cumulative float64
	for _, w := range table {
		cumulative += w.Weight
		if target < cumulative {
			return w.Kind
		}
	}
	return table[len(table)-1].Kind
}

// spinReels draws a full window of symbols for the active reels,
// reel by reel, top row first, one nonce per position. The returned
// window is indexed [reel][row]; the returned nonce is the cursor
// after the draws.
func spinReels(rc *config.ReelConfig, seed domain.Seed, nonce uint64, activeReels int) ([][]domain.SymbolKind, uint64) {
	window := make([][]domain.SymbolKind, activeReels)
	for reel := 0; reel < activeReels; reel++ {
		window[reel] = make([]domain.SymbolKind, rc.Rows)
		for row := 0; row < rc.Rows; row++ {
			window[reel][row] = drawSymbol(rc, seed, nonce)
			nonce++
		}
	}
	return window, nonce
}

// LineWin is one paying run on a row.
type LineWin struct {
	Row    int               `json:"row"`
	Symbol domain.SymbolKind `json:"symbol"`
	Count  int               `json:"count"`
	Payout int64             `json:"payout"` // cents, multiplier applied
}

// scoreWindow evaluates every row of a spin window left to right. A run
// is consecutive matching symbols starting at the leftmost reel, with
// wilds substituting for any symbol; a run entirely of wilds pays as
// wilds. Runs shorter than three pay nothing and rows never wrap.
// The multiplier (1 outside free spins) applies per row before
// truncation to cents.
func scoreWindow(rc *config.ReelConfig, window [][]domain.SymbolKind, wager int64, multiplier float64) ([]LineWin, int64) {
	var wins []LineWin
	var total int64

	for row := 0; row < rc.Rows; row++ {
		symbol, count := rowRun(window, row)
		if count < 3 {
			continue
		}
		payRow := rc.Payouts(symbol)
		idx := count - 3
		if payRow == nil || idx >= len(payRow) {
			continue
		}
		payout := int64(float64(wager) * payRow[idx] * multiplier)
		if payout <= 0 {
			continue
		}
		wins = append(wins, LineWin{Row: row, Symbol: symbol, Count: count, Payout: payout})
		total += payout
	}
	return wins, total
}

// rowRun finds the leftmost run on a row: its effective symbol and
// length. With only wilds seen so far the run's symbol is still open;
// the first non-wild fixes it.
func rowRun(window [][]domain.SymbolKind, row int) (domain.SymbolKind, int) {
	symbol := domain.SymbolWild
	fixed := false
	count := 0

	for reel := 0; reel < len(window); reel++ {
		s := window[reel][row]
		switch {
		case s.IsWild():
			count++
		case !fixed:
			symbol, fixed = s, true
			count++
		case s == symbol:
			count++
		default:
			return symbol, count
		}
	}
	return symbol, count
}

// countWilds returns the number of wilds visible anywhere in the window.
func countWilds(window [][]domain.SymbolKind) int {
	n := 0
	for _, reel := range window {
		for _, s := range reel {
			if s.IsWild() {
				n++
			}
		}
	}
	return n
}

// jackpotRow reports whether some row shows the designated jackpot
// symbol on every reel of the window. Wilds do not substitute here;
// the jackpot predicate wants the literal symbol.
func jackpotRow(rc *config.ReelConfig, window [][]domain.SymbolKind) bool {
	if len(window) == 0 {
		return false
	}
	kind := rc.JackpotKind()
	for row := 0; row < rc.Rows; row++ {
		full := true
		for reel := 0; reel < len(window); reel++ {
			if window[reel][row] != kind {
				full = false
				break
			}
		}
		if full {
			return true
		}
	}
	return false
}
