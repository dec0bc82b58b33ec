package chess

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ApplyMove applies a UCI move to the position described by fen and returns
// the resulting FEN. The second return is false when the FEN does not parse
// or the move is not legal in that position.
func ApplyMove(fen, move string) (string, bool) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", false
	}
	mv, err := nchess.UCINotation{}.Decode(game.Position(), strings.ToLower(strings.TrimSpace(move)))
	if err != nil {
		return "", false
	}
	if err := game.Move(mv, nil); err != nil {
		return "", false
	}
	return game.FEN(), true
}

// ValidLine reports whether every move in moves is legal when applied
// sequentially from fen.
func ValidLine(fen string, moves []string) bool {
	cur := fen
	for _, mv := range moves {
		next, ok := ApplyMove(cur, mv)
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

// SideToMove extracts the side to move from a FEN as "white" or "black".
func SideToMove(fen string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 2 {
		return "", false
	}
	switch fields[1] {
	case "w":
		return "white", true
	case "b":
		return "black", true
	}
	return "", false
}

// IsUCIMove reports whether s is a syntactically well-formed UCI move
// (e.g. "e2e4", "e7e8q"). It does not check legality.
func IsUCIMove(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if !isFile(s[0]) || !isRank(s[1]) || !isFile(s[2]) || !isRank(s[3]) {
		return false
	}
	if s[0] == s[2] && s[1] == s[3] {
		return false
	}
	if len(s) == 5 {
		switch s[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

func isFile(c byte) bool { return c >= 'a' && c <= 'h' }
func isRank(c byte) bool { return c >= '1' && c <= '8' }

// FlipFEN rotates a position 180 degrees and swaps the colors: piece
// placement is mirrored through the board center, the side to move flips,
// castling rights trade sides, the en-passant square is remapped, and the
// move counters carry over. The flipped position is the original as seen by
// the opponent, which is what puzzle normalization needs to hand the solver
// the stronger side.
func FlipFEN(fen string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) != 6 {
		return "", fmt.Errorf("flip fen: expected 6 fields, got %d", len(fields))
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return "", fmt.Errorf("flip fen: expected 8 ranks, got %d", len(ranks))
	}
	flipped := make([]string, 8)
	for i, rank := range ranks {
		rev := make([]byte, len(rank))
		for j := 0; j < len(rank); j++ {
			rev[len(rank)-1-j] = swapPieceCase(rank[j])
		}
		flipped[7-i] = string(rev)
	}

	turn := "w"
	if fields[1] == "w" {
		turn = "b"
	}

	castling := flipCastling(fields[2])
	ep, err := flipSquare(fields[3])
	if err != nil {
		return "", fmt.Errorf("flip fen: %w", err)
	}

	out := strings.Join(flipped, "/") + " " + turn + " " + castling + " " + ep + " " + fields[4] + " " + fields[5]
	if _, err := gameFromFEN(out); err != nil {
		return "", fmt.Errorf("flip fen: result invalid: %w", err)
	}
	return out, nil
}

func swapPieceCase(c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 'A'
	case c >= 'A' && c <= 'Z':
		return c - 'A' + 'a'
	default:
		return c
	}
}

func flipCastling(s string) string {
	if s == "-" {
		return s
	}
	var white, black strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'K':
			black.WriteByte('k')
		case 'Q':
			black.WriteByte('q')
		case 'k':
			white.WriteByte('K')
		case 'q':
			white.WriteByte('Q')
		}
	}
	out := white.String() + black.String()
	if out == "" {
		return "-"
	}
	return out
}

func flipSquare(s string) (string, error) {
	if s == "-" {
		return s, nil
	}
	if len(s) != 2 || !isFile(s[0]) || !isRank(s[1]) {
		return "", fmt.Errorf("bad square %q", s)
	}
	file := 'a' + 'h' - rune(s[0])
	rank := '1' + '8' - rune(s[1])
	return string(file) + string(rank), nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	fenOpt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(fenOpt), nil
}
