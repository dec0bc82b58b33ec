package puzzle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pawnsposes/puzzlegen/internal/chess"
	"github.com/pawnsposes/puzzlegen/internal/mistakes"
	"go.uber.org/zap"
)

// candidateFetchFactor oversamples the candidate pool relative to the
// target: per-candidate success is unreliable, so a pool several times the
// target is needed for the strict tiers to fill the quota.
const candidateFetchFactor = 4

type Config struct {
	Tiers             []StrategyTier
	TargetPuzzleCount int
	Workers           int
	BatchSize         int
	AnalysisDepth     int
	LossThresholdCP   int
}

// Generator is the adaptive puzzle pipeline: it pulls mistake candidates,
// extends each into a multi-ply line through the tier cascade, normalizes
// the sides, and finalizes the set.
type Generator struct {
	engine     Analyzer
	source     mistakes.Source
	cfg        Config
	extender   *Extender
	normalizer *Normalizer
	scheduler  *Scheduler
	finalizer  *Finalizer
	logger     *zap.Logger
}

func NewGenerator(engine Analyzer, source mistakes.Source, cfg Config, logger *zap.Logger) (*Generator, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil analyzer")
	}
	if source == nil {
		return nil, fmt.Errorf("nil mistake source")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers()
	}
	if err := ValidateTiers(cfg.Tiers); err != nil {
		return nil, err
	}
	if cfg.TargetPuzzleCount <= 0 {
		cfg.TargetPuzzleCount = 20
	}

	extender := NewExtender(engine, cfg.AnalysisDepth, logger)
	normalizer := NewNormalizer(engine, extender, NormalizerConfig{LossThresholdCP: cfg.LossThresholdCP}, logger)
	scheduler := NewScheduler(cfg.Workers, cfg.BatchSize, logger)

	return &Generator{
		engine:     engine,
		source:     source,
		cfg:        cfg,
		extender:   extender,
		normalizer: normalizer,
		scheduler:  scheduler,
		finalizer:  NewFinalizer(),
		logger:     logger,
	}, nil
}

type Options struct {
	// MaxPuzzles overrides the configured target when positive.
	MaxPuzzles int
	Progress   ProgressFunc
}

// GenerateMistakePuzzles is the pipeline entry point. It guarantees, as far
// as the candidate pool allows, the target number of puzzles; when the pool
// cannot support it the gap is reported through ShortfallInfo, never papered
// over with invented content. The context cancels in-flight work promptly;
// puzzles accepted before cancellation are still returned.
func (g *Generator) GenerateMistakePuzzles(ctx context.Context, username string, opts Options) ([]Puzzle, ShortfallInfo, error) {
	target := opts.MaxPuzzles
	if target <= 0 {
		target = g.cfg.TargetPuzzleCount
	}

	started := time.Now()
	cands, err := g.source.FetchMistakes(ctx, username, target*candidateFetchFactor)
	if err != nil {
		return nil, ShortfallInfo{Requested: target}, fmt.Errorf("fetch mistakes: %w", err)
	}
	if len(cands) == 0 {
		g.logger.Info("no mistake candidates", zap.String("username", username))
		return []Puzzle{}, ShortfallInfo{Requested: target, Produced: 0, Reason: ReasonNoSourceData}, nil
	}

	g.logger.Info("puzzle generation started",
		zap.String("username", username),
		zap.Int("candidates", len(cands)),
		zap.Int("target", target))

	used := make(map[string]struct{}, len(cands))
	var accepted []Puzzle

	for _, tier := range g.cfg.Tiers {
		if len(accepted) >= target || ctx.Err() != nil {
			break
		}

		remaining := make([]mistakes.Candidate, 0, len(cands))
		for _, c := range cands {
			if _, ok := used[c.Key()]; !ok {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			break
		}

		g.logger.Info("tier started",
			zap.String("tier", tier.Label),
			zap.Int("min_plies", tier.MinPlies),
			zap.Int("remaining", len(remaining)),
			zap.Int("accepted_so_far", len(accepted)))

		results := g.scheduler.Run(ctx, tier, remaining, g.extractFunc(tier), opts.Progress)
		for _, res := range results {
			used[res.Candidate.Key()] = struct{}{}
			accepted = append(accepted, res.Puzzle)
		}
	}

	final := g.finalizer.Finalize(accepted, target)

	info := ShortfallInfo{Requested: target, Produced: len(final)}
	if info.Short() {
		info.Reason = ReasonInsufficientQuality
	}

	g.logger.Info("puzzle generation finished",
		zap.String("username", username),
		zap.Int("produced", len(final)),
		zap.Int("requested", target),
		zap.Duration("elapsed", time.Since(started)))

	if err := ctx.Err(); err != nil {
		return final, info, err
	}
	return final, info, nil
}

// extractFunc builds the per-candidate worker body for one tier: seed the
// line with the candidate's correct move, extend from the resulting
// position, length-check against the tier, then normalize the winning side.
func (g *Generator) extractFunc(tier StrategyTier) ExtractFunc {
	return func(ctx context.Context, cand mistakes.Candidate) (*Puzzle, error) {
		afterSeed, ok := chess.ApplyMove(cand.FEN, cand.CorrectMove)
		if !ok {
			// Bad source data; the candidate is unusable at every tier but
			// cheap enough to re-reject.
			return nil, nil
		}

		ext, err := g.extender.Extend(ctx, afterSeed, tier.MinPlies-1, tier.MaxPlies-1, tier.PerPlyBudget())
		if err != nil {
			return nil, err
		}
		line := append(Line{cand.CorrectMove}, ext...)
		if len(line) < tier.MinPlies {
			return nil, nil
		}

		outcome, err := g.normalizer.Normalize(ctx, cand.FEN, line, tier)
		if err != nil {
			return nil, err
		}
		if outcome.Rejected {
			return nil, nil
		}

		side, ok := chess.SideToMove(outcome.FEN)
		if !ok {
			return nil, nil
		}

		return &Puzzle{
			ID:            uuid.NewString(),
			StartPosition: outcome.FEN,
			MoveSequence:  outcome.Line,
			SideToMove:    side,
			SourceGameID:  cand.SourceGameID,
			IsFlipped:     outcome.Flipped,
			Tier:          tier.Label,
		}, nil
	}
}
