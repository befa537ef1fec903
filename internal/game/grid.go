package game

import (
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/rng"
)

// buildGrid generates the full board for a grid round: select the
// outcome bucket, place its cell counts, shuffle with a seeded
// Fisher-Yates and lay the cells out row-major. Treasure values are
// fixed at generation from the wager and never recomputed.
//
// The board is fully determined by (difficulty, multipliers, seed,
// wager); fairness verification replays this exact function.
func buildGrid(d *config.DifficultyConfig, m config.CellMultipliers, seed domain.Seed, wager int64) (int, []domain.Cell) {
	bucketIdx := selectBucket(d, seed)
	bucket := d.Buckets[bucketIdx]

	cells := d.GridSize * d.GridSize
	kinds := make([]domain.CellKind, 0, cells)
	place := func(k domain.CellKind, n int) {
		for i := 0; i < n; i++ {
			kinds = append(kinds, k)
		}
	}
	place(domain.CellTrap, bucket.Traps)
	place(domain.CellSmallTreasure, bucket.Small)
	place(domain.CellMediumTreasure, bucket.Medium)
	place(domain.CellBigTreasure, bucket.Big)
	place(domain.CellJackpot, bucket.Jackpots)
	for len(kinds) < cells {
		kinds = append(kinds, domain.CellEmpty)
	}

	// Fisher-Yates over nonces 1..cells-1, one nonce per swap.
	nonce := uint64(nonceBucket + 1)
	for i := cells - 1; i > 0; i-- {
		j := rng.DrawInt(seed, nonce, i+1)
		nonce++
		kinds[i], kinds[j] = kinds[j], kinds[i]
	}

	grid := make([]domain.Cell, cells)
	for i, k := range kinds {
		grid[i] = domain.Cell{
			X:     i % d.GridSize,
			Y:     i / d.GridSize,
			Kind:  k,
			State: domain.CellHidden,
			Value: treasureValue(k, m, wager),
		}
	}
	return bucketIdx, grid
}

// treasureValue fixes a cell's payout in cents at generation time.
// Fractional cents truncate toward zero, so rounding can only ever
// favor the house.
func treasureValue(k domain.CellKind, m config.CellMultipliers, wager int64) int64 {
	if !k.IsTreasure() {
		return 0
	}
	return int64(float64(wager) * m.For(k))
}
