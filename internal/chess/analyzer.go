package chess

import (
	"context"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/chess/uci"
	"go.uber.org/zap"
)

// AnalysisResult is the outcome of a single engine query. A zero result
// (no best move, empty principal variation) means the engine produced
// nothing within its budget; that is a data condition, not an error.
type AnalysisResult struct {
	BestMove  string
	Principal []string
	EvalCP    int
	EvalOK    bool
}

// Empty reports whether the engine produced no usable move.
func (r AnalysisResult) Empty() bool {
	return r.BestMove == "" && len(r.Principal) == 0
}

type AnalyzerConfig struct {
	BinaryPath string
	Threads    int
	HashMB     int
	// Sessions bounds concurrent engine processes.
	Sessions int
}

// Analyzer adapts the UCI session pool to the pipeline's analysis contract.
// It enforces time budgets on every call, validates principal-variation
// syntax, and never retries; retry strategy belongs to callers.
type Analyzer struct {
	pool   *uci.Pool
	opt    uci.Options
	logger *zap.Logger
}

func NewAnalyzer(cfg AnalyzerConfig, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: cfg.BinaryPath, Capacity: cfg.Sessions})
	if err != nil {
		return nil, err
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	hash := cfg.HashMB
	if hash <= 0 {
		hash = 128
	}
	return &Analyzer{
		pool:   pool,
		opt:    uci.Options{Threads: threads, HashMB: hash, MultiPV: 1},
		logger: logger,
	}, nil
}

// Analyze evaluates fen within budget. A search that ran out of budget with
// partial data yields that partial data; only transport-level failures
// (engine process dead, pipes broken) surface as errors.
func (a *Analyzer) Analyze(ctx context.Context, fen string, depth int, budget time.Duration) (AnalysisResult, error) {
	session, err := a.pool.Acquire(ctx, a.opt)
	if err != nil {
		return AnalysisResult{}, err
	}
	var releaseErr error
	defer func() {
		a.pool.Release(session, releaseErr)
	}()

	limits := uci.Limits{Depth: depth}
	if budget > 0 {
		limits.MoveTimeMillis = int(budget.Milliseconds())
	}

	resp, err := session.Search(ctx, uci.SearchRequest{FEN: fen, Limits: limits})
	if err != nil {
		releaseErr = err
		return AnalysisResult{}, err
	}

	result := fromSearchResponse(resp)
	if resp.Partial {
		a.logger.Debug("analysis budget expired",
			zap.String("fen", fen),
			zap.Int("depth", depth),
			zap.Duration("budget", budget),
			zap.Int("pv_len", len(result.Principal)))
	}
	return result, nil
}

func (a *Analyzer) Close() error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Close()
}

func fromSearchResponse(resp uci.SearchResponse) AnalysisResult {
	var result AnalysisResult
	if len(resp.Candidates) > 0 {
		top := resp.Candidates[0]
		result.Principal = sanitizePV(top.Principal)
		result.EvalCP = top.EvalCP
		result.EvalOK = top.EvalOK
	}
	best := resp.BestMove
	if !IsUCIMove(best) {
		best = ""
	}
	if best == "" && len(result.Principal) > 0 {
		best = result.Principal[0]
	}
	result.BestMove = best
	return result
}

// sanitizePV truncates at the first malformed move: anything after it would
// be replayed from a position we cannot trust.
func sanitizePV(pv []string) []string {
	out := make([]string, 0, len(pv))
	for _, mv := range pv {
		if !IsUCIMove(mv) {
			break
		}
		out = append(out, mv)
	}
	return out
}
