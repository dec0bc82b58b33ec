package puzzle

import (
	"context"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/chess"
	"go.uber.org/zap"
)

// NormalizeOutcome is the result of winning-side normalization. Rejected
// means the position could not be presented from a winning perspective and
// the candidate should not become a puzzle at this tier.
type NormalizeOutcome struct {
	FEN      string
	Line     Line
	Flipped  bool
	Rejected bool
}

type NormalizerConfig struct {
	// LossThresholdCP marks the side to move as lost when the shallow eval
	// falls below it (e.g. -250). From the mover's perspective.
	LossThresholdCP int
	ShallowDepth    int
	ShallowBudget   time.Duration
}

// Normalizer guarantees the solver plays the stronger side. A position
// already lost for the side to move is rotated 180 degrees and re-solved
// from the opponent's seat.
type Normalizer struct {
	engine   Analyzer
	extender *Extender
	cfg      NormalizerConfig
	logger   *zap.Logger
}

func NewNormalizer(engine Analyzer, extender *Extender, cfg NormalizerConfig, logger *zap.Logger) *Normalizer {
	if cfg.LossThresholdCP >= 0 {
		cfg.LossThresholdCP = -250
	}
	if cfg.ShallowDepth <= 0 {
		cfg.ShallowDepth = 8
	}
	if cfg.ShallowBudget <= 0 {
		cfg.ShallowBudget = 300 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{engine: engine, extender: extender, cfg: cfg, logger: logger}
}

// Normalize checks fen with a shallow probe. If the side to move is not
// losing, the position and line pass through untouched. Otherwise the board
// is flipped and a fresh solution line is built for the flipped position; it
// must still satisfy the tier's minimum length or the outcome is a reject.
// Errors are reserved for engine transport failures.
func (n *Normalizer) Normalize(ctx context.Context, fen string, line Line, tier StrategyTier) (NormalizeOutcome, error) {
	res, err := n.engine.Analyze(ctx, fen, n.cfg.ShallowDepth, n.cfg.ShallowBudget)
	if err != nil {
		return NormalizeOutcome{}, err
	}
	if !res.EvalOK || res.EvalCP >= n.cfg.LossThresholdCP {
		return NormalizeOutcome{FEN: fen, Line: line}, nil
	}

	flipped, err := chess.FlipFEN(fen)
	if err != nil {
		// Unflippable position (malformed FEN slipping through); better to
		// lose the candidate than present a losing puzzle.
		n.logger.Warn("cannot flip losing position", zap.String("fen", fen), zap.Error(err))
		return NormalizeOutcome{Rejected: true}, nil
	}

	newLine, err := n.extender.Extend(ctx, flipped, tier.MinPlies, tier.MaxPlies, tier.PerPlyBudget())
	if err != nil {
		return NormalizeOutcome{}, err
	}
	if len(newLine) < tier.MinPlies {
		n.logger.Debug("flipped line too short",
			zap.String("fen", flipped), zap.Int("len", len(newLine)), zap.Int("min_plies", tier.MinPlies))
		return NormalizeOutcome{Rejected: true}, nil
	}

	n.logger.Debug("puzzle flipped to winning side",
		zap.String("fen", fen), zap.Int("eval_cp", res.EvalCP))
	return NormalizeOutcome{FEN: flipped, Line: newLine, Flipped: true}, nil
}
