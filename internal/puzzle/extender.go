package puzzle

import (
	"context"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/chess"
	"go.uber.org/zap"
)

const (
	// PV-harvest budgets: the first query of a position gets a generous
	// window, re-queries after advancing are cheaper.
	pvFirstRoundPlies = 4
	pvLaterRoundPlies = 2
)

// Extender grows a move line from a start position by repeated engine
// queries. PV-harvest takes whole principal variations per call and is the
// primary mode; stepwise re-analyzes after every ply and is the fallback for
// positions where the engine returns short or degenerate PVs.
type Extender struct {
	engine Analyzer
	depth  int
	logger *zap.Logger
}

func NewExtender(engine Analyzer, depth int, logger *zap.Logger) *Extender {
	if depth <= 0 {
		depth = 14
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extender{engine: engine, depth: depth, logger: logger}
}

// Extend builds a line of at most maxPlies from fen, preferring PV-harvest
// and falling back to stepwise when the harvest stalls below minPlies. A
// line shorter than minPlies is returned as-is; the caller decides whether
// it is acceptable. The error is non-nil only for engine transport failures.
func (e *Extender) Extend(ctx context.Context, fen string, minPlies, maxPlies int, perPly time.Duration) (Line, error) {
	line, err := e.harvestPV(ctx, fen, maxPlies, perPly)
	if err != nil {
		return line, err
	}
	if len(line) >= minPlies {
		return line, nil
	}

	e.logger.Debug("pv harvest stalled, retrying stepwise",
		zap.String("fen", fen), zap.Int("harvested", len(line)), zap.Int("min_plies", minPlies))

	stepped, err := e.stepwise(ctx, fen, maxPlies, perPly)
	if err != nil {
		return line, err
	}
	if len(stepped) > len(line) {
		return stepped, nil
	}
	return line, nil
}

// harvestPV repeatedly takes the engine's principal variation as the next
// chunk of plies. Every harvested move is legality-checked against the
// working position; the first illegal move truncates the line, because
// nothing after it can be trusted.
func (e *Extender) harvestPV(ctx context.Context, fen string, maxPlies int, perPly time.Duration) (Line, error) {
	var line Line
	working := fen
	budget := perPly * pvFirstRoundPlies

	for len(line) < maxPlies {
		res, err := e.engine.Analyze(ctx, working, e.depth, budget)
		if err != nil {
			return line, err
		}

		chunk := res.Principal
		if len(chunk) == 0 && res.BestMove != "" {
			chunk = []string{res.BestMove}
		}
		if len(chunk) == 0 {
			break
		}

		grew := false
		for _, mv := range chunk {
			if len(line) >= maxPlies {
				break
			}
			next, ok := chess.ApplyMove(working, mv)
			if !ok {
				e.logger.Debug("illegal move in pv, truncating line",
					zap.String("fen", working), zap.String("move", mv), zap.Int("line_len", len(line)))
				return line, nil
			}
			line = append(line, mv)
			working = next
			grew = true
		}
		if !grew {
			break
		}
		budget = perPly * pvLaterRoundPlies
	}
	return line, nil
}

// stepwise advances one ply per engine call, taking only the best move each
// time. Slower but robust on sharp positions.
func (e *Extender) stepwise(ctx context.Context, fen string, maxPlies int, perPly time.Duration) (Line, error) {
	var line Line
	working := fen

	for len(line) < maxPlies {
		res, err := e.engine.Analyze(ctx, working, e.depth, perPly)
		if err != nil {
			return line, err
		}
		if res.BestMove == "" {
			break
		}
		next, ok := chess.ApplyMove(working, res.BestMove)
		if !ok {
			e.logger.Debug("illegal best move, truncating line",
				zap.String("fen", working), zap.String("move", res.BestMove), zap.Int("line_len", len(line)))
			break
		}
		line = append(line, res.BestMove)
		working = next
	}
	return line, nil
}
