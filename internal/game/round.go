package game

import (
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/domain"
)

// reveal applies one reveal transition to an in-memory round. It
// validates before mutating anything, so a rejected reveal leaves the
// round byte-identical to its loaded state.
func reveal(r *domain.Round, x, y int) (*domain.Cell, error) {
	if r.Status != domain.RoundActive {
		return nil, ErrGameNotActive
	}
	cell := r.CellAt(x, y)
	if cell == nil {
		return nil, ErrInvalidCoordinates
	}
	if cell.State == domain.CellRevealed {
		return nil, ErrAlreadyRevealed
	}

	cell.State = domain.CellRevealed
	r.MovesMade++
	r.LastRevealX, r.LastRevealY = x, y

	if cell.Kind == domain.CellTrap {
		r.Status = domain.RoundLost
		r.ActivePayout = 0
		return cell, nil
	}

	r.ActivePayout += cell.Value
	if r.MovesMade >= r.MaxMoves {
		r.Status = domain.RoundWon
	}
	return cell, nil
}

// cashOut ends an active round voluntarily, banking the accumulated
// payout.
func cashOut(r *domain.Round) error {
	if r.Status != domain.RoundActive {
		return ErrGameNotActive
	}
	r.Status = domain.RoundCashedOut
	return nil
}

// hiddenSafeCells returns the indices of cells a power-up may target:
// hidden (or hinted, a hint does not consume the cell) and not a trap.
func hiddenSafeCells(r *domain.Round) []int {
	var out []int
	for i := range r.Grid {
		c := &r.Grid[i]
		if c.State != domain.CellRevealed && c.Kind != domain.CellTrap {
			out = append(out, i)
		}
	}
	return out
}

// CompassHint points toward the nearest unrevealed treasure. Direction
// is one of the eight compass points ("n", "ne", ... "nw"), with north
// toward decreasing y; distance is Manhattan. Found is false when no
// unrevealed treasure remains.
type CompassHint struct {
	Direction string `json:"direction"`
	Distance  int    `json:"distance"`
	Found     bool   `json:"found"`
}

// compassHint computes the hint from the most recently revealed cell,
// or the board center before the first reveal. Ties on distance break
// in row-major order, which keeps the hint deterministic.
func compassHint(r *domain.Round) CompassHint {
	fromX, fromY := r.LastRevealX, r.LastRevealY
	if fromX < 0 || fromY < 0 {
		fromX, fromY = r.GridSize/2, r.GridSize/2
	}

	best := -1
	bestDist := 0
	for i := range r.Grid {
		c := &r.Grid[i]
		if c.State == domain.CellRevealed || !c.Kind.IsTreasure() {
			continue
		}
		dist := abs(c.X-fromX) + abs(c.Y-fromY)
		if best == -1 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best == -1 {
		return CompassHint{}
	}

	target := &r.Grid[best]
	return CompassHint{
		Direction: compassDirection(target.X-fromX, target.Y-fromY),
		Distance:  bestDist,
		Found:     true,
	}
}

func compassDirection(dx, dy int) string {
	var dir string
	switch {
	case dy < 0:
		dir = "n"
	case dy > 0:
		dir = "s"
	}
	switch {
	case dx > 0:
		dir += "e"
	case dx < 0:
		dir += "w"
	}
	if dir == "" {
		dir = "here"
	}
	return dir
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// entryCost returns the total debit to start a grid round.
func entryCost(d *config.DifficultyConfig, wager int64) int64 {
	return wager + d.EntryCost
}
