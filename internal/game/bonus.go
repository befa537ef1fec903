package game

import (
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/rng"
)

// BonusOutcome reports the bonus features that fired on one spin.
type BonusOutcome struct {
	ReelExpanded     bool  `json:"reel_expanded"`
	FreeSpinsAwarded int   `json:"free_spins_awarded"`
	FreeSpinsEnded   bool  `json:"free_spins_ended"`
	JackpotWon       bool  `json:"jackpot_won"`
	JackpotAmount    int64 `json:"jackpot_amount"`
}

// evaluateBonus applies the bonus features to the spin that produced
// window, mutating bonus in place. wasFree says whether the spin
// consumed a free spin. The cursor advances past any bonus draws, so
// the nonce stream stays replayable.
//
// Evaluation order is fixed: the expansion roll first (the only seeded
// draw here), then free-spin bookkeeping, then the jackpot predicate.
// An expansion applies from the next spin; this window was already
// drawn at the old width.
func evaluateBonus(rc *config.ReelConfig, bonus *domain.BonusState, window [][]domain.SymbolKind,
	seed domain.Seed, cursor *uint64, wasFree bool, pool JackpotPool) BonusOutcome {

	var out BonusOutcome
	wilds := countWilds(window)

	if wilds > 0 && bonus.ActiveReels < rc.MaxReels {
		roll := rng.Draw(seed, *cursor)
		*cursor++
		if roll < rc.WildExpandChance {
			bonus.ActiveReels++
			out.ReelExpanded = true
		}
	}

	if wasFree {
		bonus.FreeSpinsRemaining--
		if bonus.FreeSpinsRemaining <= 0 {
			bonus.InFreeSpins = false
			bonus.FreeSpinsRemaining = 0
			bonus.FreeSpinsMultiplier = 1
			out.FreeSpinsEnded = true
		}
	}

	if !bonus.InFreeSpins && wilds >= rc.FreeSpinTrigger {
		bonus.InFreeSpins = true
		bonus.FreeSpinsRemaining = rc.FreeSpinCount
		bonus.FreeSpinsMultiplier = rc.FreeSpinMultiplier
		out.FreeSpinsAwarded = rc.FreeSpinCount
		out.FreeSpinsEnded = false
	}

	// The jackpot requires every reel unlocked and a full row of the
	// designated symbol. TryAward is the only writer that may take the
	// pool, so two racing spins can never both win.
	if pool != nil && bonus.ActiveReels == rc.MaxReels && len(window) == rc.MaxReels && jackpotRow(rc, window) {
		if amount, won := pool.TryAward(); won {
			out.JackpotWon = true
			out.JackpotAmount = amount
		}
	}

	return out
}
