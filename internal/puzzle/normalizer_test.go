package puzzle

import (
	"context"
	"testing"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/chess"
)

func testNormalizer(fake *fakeAnalyzer) *Normalizer {
	ext := NewExtender(fake, 14, nil)
	return NewNormalizer(fake, ext, NormalizerConfig{
		LossThresholdCP: -250,
		ShallowDepth:    8,
		ShallowBudget:   50 * time.Millisecond,
	}, nil)
}

func TestNormalizePassThroughWhenNotLosing(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.setEval(startFEN, 120)

	tier := StrategyTier{Label: "tactical", MinPlies: 4, MaxPlies: 10, PerPlyBudgetMs: 100}
	line := Line{"e2e4", "e7e5", "g1f3", "b8c6"}

	out, err := testNormalizer(fake).Normalize(context.Background(), startFEN, line, tier)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Rejected || out.Flipped {
		t.Fatalf("expected pass-through, got %+v", out)
	}
	if out.FEN != startFEN || len(out.Line) != len(line) {
		t.Fatalf("pass-through altered the puzzle: %+v", out)
	}
}

func TestNormalizePassThroughAtThresholdBoundary(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.setEval(startFEN, -250)

	tier := StrategyTier{Label: "tactical", MinPlies: 4, MaxPlies: 10, PerPlyBudgetMs: 100}
	out, err := testNormalizer(fake).Normalize(context.Background(), startFEN, Line{"e2e4"}, tier)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Flipped || out.Rejected {
		t.Fatalf("eval exactly at threshold must not flip: %+v", out)
	}
}

func TestNormalizeFlipsLostPosition(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.setEval(startFEN, -400)

	flipped, err := chess.FlipFEN(startFEN)
	if err != nil {
		t.Fatalf("FlipFEN: %v", err)
	}
	fake.register(flipped, 6)

	tier := StrategyTier{Label: "tactical", MinPlies: 4, MaxPlies: 10, PerPlyBudgetMs: 100}
	out, err := testNormalizer(fake).Normalize(context.Background(), startFEN, Line{"e2e4", "e7e5", "g1f3", "b8c6"}, tier)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Rejected {
		t.Fatalf("unexpected reject")
	}
	if !out.Flipped {
		t.Fatalf("expected flip for eval -400")
	}
	if out.FEN != flipped {
		t.Fatalf("expected flipped fen %q, got %q", flipped, out.FEN)
	}
	if len(out.Line) < tier.MinPlies {
		t.Fatalf("flipped line too short: %d", len(out.Line))
	}
	if !chess.ValidLine(out.FEN, out.Line) {
		t.Fatalf("flipped line not replayable: %v", out.Line)
	}

	side, ok := chess.SideToMove(out.FEN)
	if !ok || side == "white" {
		t.Fatalf("expected side to move to swap, got %q", side)
	}
}

func TestNormalizeRejectsWhenFlippedLineTooShort(t *testing.T) {
	fake := newFakeAnalyzer()
	fake.setEval(startFEN, -500)

	flipped, err := chess.FlipFEN(startFEN)
	if err != nil {
		t.Fatalf("FlipFEN: %v", err)
	}
	fake.register(flipped, 2)

	tier := StrategyTier{Label: "short", MinPlies: 6, MaxPlies: 12, PerPlyBudgetMs: 100}
	out, err := testNormalizer(fake).Normalize(context.Background(), startFEN, Line{"e2e4"}, tier)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !out.Rejected {
		t.Fatalf("expected reject when flipped support is short, got %+v", out)
	}
}

func TestNormalizePassThroughWhenEvalUnavailable(t *testing.T) {
	afterE4, ok := chess.ApplyMove(startFEN, "e2e4")
	if !ok {
		t.Fatalf("apply e2e4")
	}
	scripted := &scriptedAnalyzer{results: map[string]chess.AnalysisResult{
		afterE4: {BestMove: "e7e5", Principal: []string{"e7e5"}},
	}}
	ext := NewExtender(scripted, 14, nil)
	n := NewNormalizer(scripted, ext, NormalizerConfig{}, nil)

	tier := StrategyTier{Label: "tactical", MinPlies: 4, MaxPlies: 10, PerPlyBudgetMs: 100}
	out, err := n.Normalize(context.Background(), afterE4, Line{"e7e5"}, tier)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.Flipped || out.Rejected {
		t.Fatalf("missing eval must pass through, got %+v", out)
	}
}
