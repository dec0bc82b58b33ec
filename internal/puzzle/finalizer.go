package puzzle

import (
	"sort"
)

// Difficulty breakpoints on final line length and the display rating bands
// they map to. Presentation defaults, not correctness invariants.
const (
	hardMinPlies   = 12
	mediumMinPlies = 8

	easyRatingFloor   = 1500
	easyRatingCeil    = 1800
	mediumRatingFloor = 1800
	mediumRatingCeil  = 2200
	hardRatingFloor   = 2200
	hardRatingCeil    = 2600
)

// Finalizer deduplicates, classifies, orders and truncates the accepted
// puzzle set.
type Finalizer struct{}

func NewFinalizer() *Finalizer { return &Finalizer{} }

// Finalize drops exact start-position duplicates (the same mistake harvested
// twice), assigns difficulty and rating from the final line length, sorts
// longest line first and truncates to target.
func (f *Finalizer) Finalize(puzzles []Puzzle, target int) []Puzzle {
	seen := make(map[string]struct{}, len(puzzles))
	out := make([]Puzzle, 0, len(puzzles))
	for _, p := range puzzles {
		if _, dup := seen[p.StartPosition]; dup {
			continue
		}
		seen[p.StartPosition] = struct{}{}
		p.Difficulty = classifyDifficulty(len(p.MoveSequence))
		p.Rating = ratingFor(p.Difficulty, len(p.MoveSequence))
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].MoveSequence) != len(out[j].MoveSequence) {
			return len(out[i].MoveSequence) > len(out[j].MoveSequence)
		}
		return out[i].SourceGameID < out[j].SourceGameID
	})

	if target > 0 && len(out) > target {
		out = out[:target]
	}
	return out
}

func classifyDifficulty(plies int) Difficulty {
	switch {
	case plies >= hardMinPlies:
		return DifficultyHard
	case plies >= mediumMinPlies:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// ratingFor interpolates within the difficulty's band so longer lines land
// higher inside their band.
func ratingFor(d Difficulty, plies int) int {
	var floor, ceil, lo, hi int
	switch d {
	case DifficultyHard:
		floor, ceil, lo, hi = hardRatingFloor, hardRatingCeil, hardMinPlies, 16
	case DifficultyMedium:
		floor, ceil, lo, hi = mediumRatingFloor, mediumRatingCeil, mediumMinPlies, hardMinPlies-1
	default:
		floor, ceil, lo, hi = easyRatingFloor, easyRatingCeil, 4, mediumMinPlies-1
	}
	if plies <= lo {
		return floor
	}
	if plies >= hi {
		return ceil
	}
	return floor + (ceil-floor)*(plies-lo)/(hi-lo)
}
