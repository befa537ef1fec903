package game

import (
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/alexbotov/roundengine/internal/rng"
)

// nonceBucket is the nonce reserved for the outcome bucket draw. Grid
// generation consumes nonces 1..cells-1 for the shuffle, so a round's
// cursor starts at cells.
const nonceBucket = 0

// selectBucket picks an outcome bucket for the round by walking the
// difficulty's probability table in slice order against a single seeded
// draw. The walk order is part of the fairness contract: the same seed
// and table always select the same bucket.
func selectBucket(d *config.DifficultyConfig, seed domain.Seed) int {
	target := rng.Draw(seed, nonceBucket)

	var cumulative float64
	for i, b := range d.Buckets {
		cumulative += b.Probability
		if target < cumulative {
			return i
		}
	}
	// Float accumulation can leave the last boundary a hair under 1.0.
	return len(d.Buckets) - 1
}
