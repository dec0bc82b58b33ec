package puzzle

import (
	"context"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/chess"
)

// Line is an ordered sequence of half-moves in UCI notation, replayable
// deterministically from a start position.
type Line []string

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Puzzle is a finished, validated tactical exercise derived from one of the
// user's own mistakes. Immutable once built.
type Puzzle struct {
	ID            string     `json:"id"`
	StartPosition string     `json:"start_position"`
	MoveSequence  Line       `json:"move_sequence"`
	SideToMove    string     `json:"side_to_move"`
	Difficulty    Difficulty `json:"difficulty"`
	Rating        int        `json:"rating"`
	SourceGameID  string     `json:"source_game_id"`
	IsFlipped     bool       `json:"is_flipped"`
	Tier          string     `json:"tier"`
}

// Shortfall reasons. "No source data" (an empty candidate pool) is reported
// distinctly from candidates existing but none surviving quality tiers.
const (
	ReasonNoSourceData        = "no source data"
	ReasonInsufficientQuality = "insufficient quality"
)

// ShortfallInfo reports when fewer puzzles were produced than requested.
// The pipeline never pads the gap with invented content.
type ShortfallInfo struct {
	Requested int    `json:"requested"`
	Produced  int    `json:"produced"`
	Reason    string `json:"reason,omitempty"`
}

func (s ShortfallInfo) Short() bool { return s.Produced < s.Requested }

// Progress is a running signal emitted while a tier is being processed.
type Progress struct {
	Tier      string
	Processed int
	Accepted  int
	Rejected  int
}

type ProgressFunc func(Progress)

// Analyzer is the engine surface the pipeline consumes; satisfied by
// chess.Analyzer and by scripted fakes in tests.
type Analyzer interface {
	Analyze(ctx context.Context, fen string, depth int, budget time.Duration) (chess.AnalysisResult, error)
}
