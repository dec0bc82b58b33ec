package puzzle

import (
	"context"
	"fmt"
	"testing"

	"github.com/pawnsposes/puzzlegen/internal/chess"
	"github.com/pawnsposes/puzzlegen/internal/mistakes"
)

// seedCandidates builds n distinct candidates whose correct move leads to a
// position the fake engine supports for supportPlies further plies. The
// fullmove counter keeps each candidate's position space disjoint.
func seedCandidates(t *testing.T, fake *fakeAnalyzer, n, supportPlies int) []mistakes.Candidate {
	t.Helper()
	cands := make([]mistakes.Candidate, n)
	for i := 0; i < n; i++ {
		fen := fmt.Sprintf("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 %d", i+1)
		afterSeed, ok := chess.ApplyMove(fen, "e2e4")
		if !ok {
			t.Fatalf("seed move illegal at candidate %d", i)
		}
		fake.register(afterSeed, supportPlies)
		cands[i] = mistakes.Candidate{
			FEN:          fen,
			CorrectMove:  "e2e4",
			SourceGameID: fmt.Sprintf("game-%03d", i),
			MoveNumber:   10,
		}
	}
	return cands
}

func newTestGenerator(t *testing.T, fake *fakeAnalyzer, source mistakes.Source, target int) *Generator {
	t.Helper()
	g, err := NewGenerator(fake, source, Config{
		TargetPuzzleCount: target,
		Workers:           4,
		BatchSize:         8,
		AnalysisDepth:     14,
		LossThresholdCP:   -250,
	}, nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerateFullTargetFromDeepPool(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	source.Add("alice", seedCandidates(t, fake, 50, 15)...)

	g := newTestGenerator(t, fake, source, 20)
	puzzles, info, err := g.GenerateMistakePuzzles(context.Background(), "alice", Options{})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}

	if len(puzzles) != 20 {
		t.Fatalf("expected 20 puzzles, got %d", len(puzzles))
	}
	if info.Short() {
		t.Fatalf("unexpected shortfall: %+v", info)
	}
	for i, p := range puzzles {
		if len(p.MoveSequence) != 16 {
			t.Fatalf("puzzle %d: expected 16 plies, got %d", i, len(p.MoveSequence))
		}
		if p.Tier != "long" {
			t.Fatalf("puzzle %d: expected long tier, got %q", i, p.Tier)
		}
		if p.Difficulty != DifficultyHard {
			t.Fatalf("puzzle %d: 16 plies should be hard, got %s", i, p.Difficulty)
		}
		if p.IsFlipped {
			t.Fatalf("puzzle %d: unexpected flip", i)
		}
		if p.SideToMove != "white" {
			t.Fatalf("puzzle %d: side = %q", i, p.SideToMove)
		}
		if p.MoveSequence[0] != "e2e4" {
			t.Fatalf("puzzle %d: line must start with the correct move, got %q", i, p.MoveSequence[0])
		}
		if !chess.ValidLine(p.StartPosition, p.MoveSequence) {
			t.Fatalf("puzzle %d: line not replayable", i)
		}
		if p.ID == "" {
			t.Fatalf("puzzle %d: missing id", i)
		}
	}
}

func TestGenerateCascadesThroughTiers(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	deep := seedCandidates(t, fake, 5, 15)
	source.Add("bob", deep...)

	// Shallow candidates reuse later counters to stay disjoint from the
	// deep ones.
	shallow := make([]mistakes.Candidate, 20)
	for i := range shallow {
		fen := fmt.Sprintf("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 %d", 100+i)
		afterSeed, ok := chess.ApplyMove(fen, "e2e4")
		if !ok {
			t.Fatalf("seed move illegal")
		}
		fake.register(afterSeed, 3)
		shallow[i] = mistakes.Candidate{
			FEN:          fen,
			CorrectMove:  "e2e4",
			SourceGameID: fmt.Sprintf("shallow-%03d", i),
			MoveNumber:   10,
		}
	}
	source.Add("bob", shallow...)

	g := newTestGenerator(t, fake, source, 20)
	puzzles, info, err := g.GenerateMistakePuzzles(context.Background(), "bob", Options{})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}

	if len(puzzles) != 20 {
		t.Fatalf("expected 20 puzzles, got %d", len(puzzles))
	}
	if info.Short() {
		t.Fatalf("unexpected shortfall: %+v", info)
	}

	long, tactical := 0, 0
	seen := make(map[string]struct{})
	for _, p := range puzzles {
		if _, dup := seen[p.SourceGameID]; dup {
			t.Fatalf("source game %s used twice", p.SourceGameID)
		}
		seen[p.SourceGameID] = struct{}{}
		switch len(p.MoveSequence) {
		case 16:
			long++
			if p.Tier != "long" {
				t.Fatalf("16-ply puzzle in tier %q", p.Tier)
			}
		case 4:
			tactical++
			if p.Tier != "tactical" {
				t.Fatalf("4-ply puzzle in tier %q", p.Tier)
			}
		default:
			t.Fatalf("unexpected line length %d", len(p.MoveSequence))
		}
	}
	if long != 5 {
		t.Fatalf("expected all 5 deep candidates accepted at long tier, got %d", long)
	}
	if tactical != 15 {
		t.Fatalf("expected 15 tactical fills, got %d", tactical)
	}
	for i := 0; i < 5; i++ {
		if len(puzzles[i].MoveSequence) != 16 {
			t.Fatalf("longest lines must sort first, position %d has %d plies", i, len(puzzles[i].MoveSequence))
		}
	}
}

func TestGenerateReportsInsufficientQuality(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	source.Add("carol", seedCandidates(t, fake, 3, 15)...)

	g := newTestGenerator(t, fake, source, 20)
	puzzles, info, err := g.GenerateMistakePuzzles(context.Background(), "carol", Options{})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}

	if len(puzzles) != 3 {
		t.Fatalf("expected 3 puzzles, got %d", len(puzzles))
	}
	if !info.Short() {
		t.Fatalf("expected shortfall")
	}
	if info.Reason != ReasonInsufficientQuality {
		t.Fatalf("reason = %q, want %q", info.Reason, ReasonInsufficientQuality)
	}
	if info.Requested != 20 || info.Produced != 3 {
		t.Fatalf("unexpected shortfall counts: %+v", info)
	}
}

func TestGenerateReportsNoSourceData(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()

	g := newTestGenerator(t, fake, source, 20)
	puzzles, info, err := g.GenerateMistakePuzzles(context.Background(), "nobody", Options{})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}

	if puzzles == nil || len(puzzles) != 0 {
		t.Fatalf("expected empty non-nil set, got %v", puzzles)
	}
	if info.Reason != ReasonNoSourceData {
		t.Fatalf("reason = %q, want %q", info.Reason, ReasonNoSourceData)
	}
	if fake.callCount() != 0 {
		t.Fatalf("engine must not run without candidates, got %d calls", fake.callCount())
	}
}

func TestGenerateSkipsUnusableCandidates(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	good := seedCandidates(t, fake, 2, 15)
	source.Add("dave", good...)
	source.Add("dave", mistakes.Candidate{
		FEN:          startFEN,
		CorrectMove:  "e2e5", // not legal
		SourceGameID: "bad-game",
		MoveNumber:   3,
	})

	g := newTestGenerator(t, fake, source, 20)
	puzzles, _, err := g.GenerateMistakePuzzles(context.Background(), "dave", Options{})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}
	if len(puzzles) != 2 {
		t.Fatalf("expected the 2 usable candidates, got %d", len(puzzles))
	}
	for _, p := range puzzles {
		if p.SourceGameID == "bad-game" {
			t.Fatalf("unusable candidate became a puzzle")
		}
	}
}

func TestGenerateMaxPuzzlesOverride(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	source.Add("erin", seedCandidates(t, fake, 30, 15)...)

	g := newTestGenerator(t, fake, source, 20)
	puzzles, info, err := g.GenerateMistakePuzzles(context.Background(), "erin", Options{MaxPuzzles: 5})
	if err != nil {
		t.Fatalf("GenerateMistakePuzzles: %v", err)
	}
	if len(puzzles) != 5 {
		t.Fatalf("expected override to 5, got %d", len(puzzles))
	}
	if info.Requested != 5 {
		t.Fatalf("requested = %d, want 5", info.Requested)
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	fake := newFakeAnalyzer()
	source := mistakes.NewMemSource()
	source.Add("frank", seedCandidates(t, fake, 10, 15)...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newTestGenerator(t, fake, source, 20)
	puzzles, _, err := g.GenerateMistakePuzzles(ctx, "frank", Options{})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if len(puzzles) != 0 {
		t.Fatalf("no work should complete after cancel, got %d", len(puzzles))
	}
}
