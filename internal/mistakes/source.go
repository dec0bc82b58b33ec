package mistakes

import (
	"context"
	"strconv"
)

// Candidate is one detected suboptimal move from a user's past game: the
// position before the move and the objectively correct move the user missed.
// Candidates are read-only inputs to the puzzle pipeline.
type Candidate struct {
	FEN          string
	CorrectMove  string
	SourceGameID string
	MoveNumber   int
}

// Key identifies a candidate for deduplication across pipeline tiers.
func (c Candidate) Key() string {
	return c.SourceGameID + "#" + strconv.Itoa(c.MoveNumber)
}

// Source supplies mistake candidates for a user. Implementations may return
// fewer than limit; an empty result is valid and means no source data.
type Source interface {
	FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error)
}
