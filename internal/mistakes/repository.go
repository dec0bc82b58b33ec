package mistakes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Repository persists harvested mistake candidates in Postgres and serves
// them back to the pipeline.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT
			fen,
			correct_move,
			source_game_id,
			move_number
		FROM mistakes
		WHERE username = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, normalizeUsername(username), limit)
	if err != nil {
		return nil, fmt.Errorf("select mistakes: %w", err)
	}
	defer rows.Close()

	cands := make([]Candidate, 0, limit)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.FEN, &c.CorrectMove, &c.SourceGameID, &c.MoveNumber); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mistakes: %w", err)
	}
	return cands, nil
}

// InsertMistakes stores candidates, skipping any already recorded for the
// same game and move.
func (r *Repository) InsertMistakes(ctx context.Context, username string, cands []Candidate) error {
	if len(cands) == 0 {
		return nil
	}
	const query = `
		INSERT INTO mistakes (
			username,
			fen,
			correct_move,
			source_game_id,
			move_number,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (username, source_game_id, move_number) DO NOTHING`

	user := normalizeUsername(username)
	for _, c := range cands {
		if _, err := r.db.ExecContext(ctx, query, user, c.FEN, c.CorrectMove, c.SourceGameID, c.MoveNumber); err != nil {
			return fmt.Errorf("insert mistake: %w", err)
		}
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
