package game

import (
	"sync"
	"testing"

	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/jackpot"
)

// reelConfig returns resolved reel tables with the given wild
// expansion chance, so expansion paths can be forced deterministically.
func reelConfig(t *testing.T, expandChance float64) *config.ReelConfig {
	t.Helper()
	tables := config.DefaultTables()
	tables.Reel.WildExpandChance = expandChance
	if err := tables.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return &tables.Reel
}

func plainWindow(reels int) [][]domain.SymbolKind {
	w := make([][]domain.SymbolKind, reels)
	for i := range w {
		w[i] = column(domain.SymbolCherry, domain.SymbolLemon, domain.SymbolOrange)
	}
	return w
}

func wildWindow(reels, wilds int) [][]domain.SymbolKind {
	w := plainWindow(reels)
	for i := 0; i < wilds && i < reels; i++ {
		w[i][0] = domain.SymbolWild
	}
	return w
}

func jackpotWindow(rc *config.ReelConfig, reels int) [][]domain.SymbolKind {
	w := plainWindow(reels)
	for i := range w {
		w[i][1] = rc.JackpotKind()
	}
	return w
}

func TestWildExpansion(t *testing.T) {
	seed := mustSeed(t)

	t.Run("ExpandsWhenRollHits", func(t *testing.T) {
		rc := reelConfig(t, 1.0)
		bonus := &domain.BonusState{ActiveReels: 3, FreeSpinsMultiplier: 1}
		cursor := uint64(9)

		out := evaluateBonus(rc, bonus, wildWindow(3, 1), seed, &cursor, false, nil)
		if !out.ReelExpanded || bonus.ActiveReels != 4 {
			t.Errorf("expansion: ReelExpanded=%v ActiveReels=%d, want true/4", out.ReelExpanded, bonus.ActiveReels)
		}
		if cursor != 10 {
			t.Errorf("cursor = %d, want 10: the expansion roll consumes one nonce", cursor)
		}
	})

	t.Run("RollConsumedEvenOnMiss", func(t *testing.T) {
		rc := reelConfig(t, 0.0)
		bonus := &domain.BonusState{ActiveReels: 3, FreeSpinsMultiplier: 1}
		cursor := uint64(9)

		out := evaluateBonus(rc, bonus, wildWindow(3, 1), seed, &cursor, false, nil)
		if out.ReelExpanded || bonus.ActiveReels != 3 {
			t.Error("expansion fired with zero chance")
		}
		if cursor != 10 {
			t.Errorf("cursor = %d, want 10: a visible wild always consumes the roll nonce", cursor)
		}
	})

	t.Run("NoWildNoRoll", func(t *testing.T) {
		rc := reelConfig(t, 1.0)
		bonus := &domain.BonusState{ActiveReels: 3, FreeSpinsMultiplier: 1}
		cursor := uint64(9)

		out := evaluateBonus(rc, bonus, plainWindow(3), seed, &cursor, false, nil)
		if out.ReelExpanded || cursor != 9 {
			t.Errorf("no wild visible: ReelExpanded=%v cursor=%d, want false/9", out.ReelExpanded, cursor)
		}
	})

	t.Run("CappedAtMaxReels", func(t *testing.T) {
		rc := reelConfig(t, 1.0)
		bonus := &domain.BonusState{ActiveReels: rc.MaxReels, FreeSpinsMultiplier: 1}
		cursor := uint64(9)

		out := evaluateBonus(rc, bonus, wildWindow(rc.MaxReels, 1), seed, &cursor, false, nil)
		if out.ReelExpanded || bonus.ActiveReels != rc.MaxReels {
			t.Error("expansion past the reel cap")
		}
		if cursor != 9 {
			t.Errorf("cursor = %d, want 9: no roll at the cap", cursor)
		}
	})
}

func TestFreeSpins(t *testing.T) {
	seed := mustSeed(t)
	rc := reelConfig(t, 0.0)

	t.Run("Trigger", func(t *testing.T) {
		bonus := &domain.BonusState{ActiveReels: 3, FreeSpinsMultiplier: 1}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, wildWindow(3, 3), seed, &cursor, false, nil)
		if out.FreeSpinsAwarded != rc.FreeSpinCount {
			t.Errorf("FreeSpinsAwarded = %d, want %d", out.FreeSpinsAwarded, rc.FreeSpinCount)
		}
		if !bonus.InFreeSpins || bonus.FreeSpinsRemaining != rc.FreeSpinCount {
			t.Errorf("bonus state after trigger: %+v", bonus)
		}
		if bonus.FreeSpinsMultiplier != rc.FreeSpinMultiplier {
			t.Errorf("multiplier = %v, want %v", bonus.FreeSpinsMultiplier, rc.FreeSpinMultiplier)
		}
	})

	t.Run("TooFewWilds", func(t *testing.T) {
		bonus := &domain.BonusState{ActiveReels: 3, FreeSpinsMultiplier: 1}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, wildWindow(3, 2), seed, &cursor, false, nil)
		if out.FreeSpinsAwarded != 0 || bonus.InFreeSpins {
			t.Error("free spins triggered below the wild threshold")
		}
	})

	t.Run("NoRetriggerWhileActive", func(t *testing.T) {
		bonus := &domain.BonusState{
			ActiveReels:         3,
			InFreeSpins:         true,
			FreeSpinsRemaining:  3,
			FreeSpinsMultiplier: rc.FreeSpinMultiplier,
		}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, wildWindow(3, 3), seed, &cursor, true, nil)
		if out.FreeSpinsAwarded != 0 {
			t.Error("free spins retriggered inside an active sequence")
		}
		if bonus.FreeSpinsRemaining != 2 {
			t.Errorf("FreeSpinsRemaining = %d, want 2", bonus.FreeSpinsRemaining)
		}
	})

	t.Run("ExhaustionResetsMultiplier", func(t *testing.T) {
		bonus := &domain.BonusState{
			ActiveReels:         3,
			InFreeSpins:         true,
			FreeSpinsRemaining:  1,
			FreeSpinsMultiplier: rc.FreeSpinMultiplier,
		}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, plainWindow(3), seed, &cursor, true, nil)
		if !out.FreeSpinsEnded {
			t.Error("last free spin did not end the sequence")
		}
		if bonus.InFreeSpins || bonus.FreeSpinsRemaining != 0 || bonus.FreeSpinsMultiplier != 1 {
			t.Errorf("bonus state after exhaustion: %+v", bonus)
		}
	})

	t.Run("RetriggerOnFinalSpin", func(t *testing.T) {
		// The last free spin shows three wilds: the old sequence ends
		// and a fresh one starts on the same spin.
		bonus := &domain.BonusState{
			ActiveReels:         3,
			InFreeSpins:         true,
			FreeSpinsRemaining:  1,
			FreeSpinsMultiplier: rc.FreeSpinMultiplier,
		}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, wildWindow(3, 3), seed, &cursor, true, nil)
		if out.FreeSpinsAwarded != rc.FreeSpinCount || out.FreeSpinsEnded {
			t.Errorf("final-spin retrigger: %+v", out)
		}
		if !bonus.InFreeSpins || bonus.FreeSpinsRemaining != rc.FreeSpinCount {
			t.Errorf("bonus state after retrigger: %+v", bonus)
		}
	})
}

func TestJackpotAward(t *testing.T) {
	seed := mustSeed(t)
	rc := reelConfig(t, 0.0)

	fund := func(pool *jackpot.Pool, amount int64) {
		// Contribution rate of 1 turns wagers into pool cents directly.
		pool.Contribute(amount)
	}

	t.Run("AwardsAboveFloor", func(t *testing.T) {
		pool := jackpot.NewPool(1000, 1)
		fund(pool, 500)
		bonus := &domain.BonusState{ActiveReels: rc.MaxReels, FreeSpinsMultiplier: 1}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, jackpotWindow(rc, rc.MaxReels), seed, &cursor, false, pool)
		if !out.JackpotWon || out.JackpotAmount != 1500 {
			t.Errorf("jackpot: won=%v amount=%d, want true/1500", out.JackpotWon, out.JackpotAmount)
		}
		if pool.Amount() != 1000 {
			t.Errorf("pool after award = %d, want floor 1000", pool.Amount())
		}
	})

	t.Run("NoAwardAtFloor", func(t *testing.T) {
		pool := jackpot.NewPool(1000, 1)
		bonus := &domain.BonusState{ActiveReels: rc.MaxReels, FreeSpinsMultiplier: 1}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, jackpotWindow(rc, rc.MaxReels), seed, &cursor, false, pool)
		if out.JackpotWon {
			t.Error("jackpot awarded with pool at floor")
		}
	})

	t.Run("RequiresAllReelsActive", func(t *testing.T) {
		pool := jackpot.NewPool(1000, 1)
		fund(pool, 500)
		bonus := &domain.BonusState{ActiveReels: rc.MaxReels - 1, FreeSpinsMultiplier: 1}
		cursor := uint64(0)

		out := evaluateBonus(rc, bonus, jackpotWindow(rc, rc.MaxReels-1), seed, &cursor, false, pool)
		if out.JackpotWon {
			t.Error("jackpot awarded before every reel was unlocked")
		}
	})

	t.Run("Exclusivity", func(t *testing.T) {
		pool := jackpot.NewPool(1000, 1)
		fund(pool, 500)

		const spinners = 32
		var wg sync.WaitGroup
		wins := make(chan int64, spinners)

		for i := 0; i < spinners; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bonus := &domain.BonusState{ActiveReels: rc.MaxReels, FreeSpinsMultiplier: 1}
				cursor := uint64(0)
				out := evaluateBonus(rc, bonus, jackpotWindow(rc, rc.MaxReels), seed, &cursor, false, pool)
				if out.JackpotWon {
					wins <- out.JackpotAmount
				}
			}()
		}
		wg.Wait()
		close(wins)

		var winners int
		for amount := range wins {
			winners++
			if amount != 1500 {
				t.Errorf("winner received %d, want 1500", amount)
			}
		}
		if winners != 1 {
			t.Errorf("%d concurrent spins won the jackpot, want exactly 1", winners)
		}
	})
}
