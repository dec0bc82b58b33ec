package mistakes

import (
	"context"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/pawnsposes/puzzlegen/internal/chess"
	"go.uber.org/zap"
)

// Analyzer is the engine surface the harvester needs.
type Analyzer interface {
	Analyze(ctx context.Context, fen string, depth int, budget time.Duration) (chess.AnalysisResult, error)
}

type HarvesterConfig struct {
	// ThresholdCP is the minimum centipawn loss versus the engine best move
	// for a played move to count as a mistake.
	ThresholdCP int
	Depth       int
	Budget      time.Duration
	// SkipPlies excludes the opening, where "mistakes" are usually just
	// theory the engine dislikes.
	SkipPlies int
}

// Harvester replays a user's games and emits a candidate wherever the played
// move loses materially against the engine's best move.
type Harvester struct {
	engine Analyzer
	cfg    HarvesterConfig
	logger *zap.Logger
}

func NewHarvester(engine Analyzer, cfg HarvesterConfig, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ThresholdCP <= 0 {
		cfg.ThresholdCP = 150
	}
	if cfg.Depth <= 0 {
		cfg.Depth = 10
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 400 * time.Millisecond
	}
	if cfg.SkipPlies <= 0 {
		cfg.SkipPlies = 6
	}
	return &Harvester{engine: engine, cfg: cfg, logger: logger}
}

// HarvestGame walks one game and returns the user's mistakes. Moves that
// fail to parse truncate the walk; engine failures on a single position skip
// that position only.
func (h *Harvester) HarvestGame(ctx context.Context, gm Game, username string) ([]Candidate, error) {
	userIsWhite := strings.EqualFold(gm.White, username)
	if !userIsWhite && !strings.EqualFold(gm.Black, username) {
		return nil, nil
	}

	game := nchess.NewGame()
	var out []Candidate

	for ply, san := range gm.Moves {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pos := game.Position()
		mv, err := nchess.AlgebraicNotation{}.Decode(pos, san)
		if err != nil {
			h.logger.Warn("harvest: unparseable move, truncating game",
				zap.String("game_id", gm.ID), zap.Int("ply", ply), zap.String("san", san))
			break
		}

		moverIsUser := (pos.Turn() == nchess.White) == userIsWhite
		fenBefore := game.FEN()
		playedUCI := nchess.UCINotation{}.Encode(pos, mv)

		if err := game.Move(mv, nil); err != nil {
			break
		}

		if !moverIsUser || ply < h.cfg.SkipPlies {
			continue
		}

		cand, ok := h.probe(ctx, fenBefore, playedUCI, gm.ID, ply)
		if ok {
			out = append(out, cand)
		}
	}
	return out, nil
}

// probe compares the played move against the engine best move at the same
// position. Both positions are scored from the mover's perspective.
func (h *Harvester) probe(ctx context.Context, fenBefore, playedUCI, gameID string, ply int) (Candidate, bool) {
	before, err := h.engine.Analyze(ctx, fenBefore, h.cfg.Depth, h.cfg.Budget)
	if err != nil || before.Empty() || !before.EvalOK {
		return Candidate{}, false
	}
	if strings.EqualFold(before.BestMove, playedUCI) {
		return Candidate{}, false
	}

	fenAfter, ok := chess.ApplyMove(fenBefore, playedUCI)
	if !ok {
		return Candidate{}, false
	}
	after, err := h.engine.Analyze(ctx, fenAfter, h.cfg.Depth, h.cfg.Budget)
	if err != nil || !after.EvalOK {
		return Candidate{}, false
	}

	// after.EvalCP is from the opponent's perspective; negate to compare.
	loss := before.EvalCP - (-after.EvalCP)
	if loss < h.cfg.ThresholdCP {
		return Candidate{}, false
	}

	return Candidate{
		FEN:          fenBefore,
		CorrectMove:  before.BestMove,
		SourceGameID: gameID,
		MoveNumber:   ply/2 + 1,
	}, true
}

// LichessSource combines the export client and the harvester into a
// mistake source for the pipeline.
type LichessSource struct {
	client    *LichessClient
	harvester *Harvester
	maxGames  int
	logger    *zap.Logger
}

func NewLichessSource(client *LichessClient, harvester *Harvester, maxGames int, logger *zap.Logger) *LichessSource {
	if maxGames <= 0 {
		maxGames = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LichessSource{client: client, harvester: harvester, maxGames: maxGames, logger: logger}
}

func (s *LichessSource) FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error) {
	games, err := s.client.FetchRecentGames(ctx, username, s.maxGames)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, gm := range games {
		if limit > 0 && len(out) >= limit {
			break
		}
		cands, err := s.harvester.HarvestGame(ctx, gm, username)
		if err != nil {
			return out, err
		}
		out = append(out, cands...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	s.logger.Info("harvest complete",
		zap.String("username", username),
		zap.Int("games", len(games)),
		zap.Int("candidates", len(out)))
	return out, nil
}
