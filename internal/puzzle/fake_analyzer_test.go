package puzzle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/pawnsposes/puzzlegen/internal/chess"
)

// fakeAnalyzer emulates an engine by playing the first legal move from each
// position. Positions are registered with a ply budget; when a budget is
// consumed through a returned variation the derived positions inherit the
// remainder, so repeated queries along the same line stay consistent.
// Unregistered positions evaluate to +50 with an empty variation.
type fakeAnalyzer struct {
	mu      sync.Mutex
	support map[string]int
	evals   map[string]int
	errs    map[string]error
	chunk   int // max PV plies per call, 0 = all remaining
	calls   int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		support: make(map[string]int),
		evals:   make(map[string]int),
		errs:    make(map[string]error),
	}
}

func (f *fakeAnalyzer) register(fen string, plies int) {
	f.mu.Lock()
	f.support[fen] = plies
	f.mu.Unlock()
}

func (f *fakeAnalyzer) setEval(fen string, cp int) {
	f.mu.Lock()
	f.evals[fen] = cp
	f.mu.Unlock()
}

func (f *fakeAnalyzer) failOn(fen string) {
	f.mu.Lock()
	f.errs[fen] = fmt.Errorf("engine unavailable")
	f.mu.Unlock()
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAnalyzer) Analyze(_ context.Context, fen string, _ int, _ time.Duration) (chess.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := f.errs[fen]; err != nil {
		return chess.AnalysisResult{}, err
	}

	eval, ok := f.evals[fen]
	if !ok {
		eval = 50
	}

	remaining := f.support[fen]
	plies := remaining
	if f.chunk > 0 && plies > f.chunk {
		plies = f.chunk
	}

	pv, err := f.playout(fen, plies, remaining)
	if err != nil {
		return chess.AnalysisResult{}, err
	}
	res := chess.AnalysisResult{Principal: pv, EvalCP: eval, EvalOK: true}
	if len(pv) > 0 {
		res.BestMove = pv[0]
	}
	return res, nil
}

// playout must be called with f.mu held.
func (f *fakeAnalyzer) playout(fen string, plies, remaining int) ([]string, error) {
	if plies <= 0 {
		return nil, nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	game := nchess.NewGame(opt)
	var pv []string
	for i := 0; i < plies; i++ {
		moves := game.ValidMoves()
		if len(moves) == 0 {
			break
		}
		mv := moves[0]
		uci := strings.ToLower(nchess.UCINotation{}.Encode(game.Position(), &mv))
		if err := game.Move(&mv, nil); err != nil {
			break
		}
		pv = append(pv, uci)
		f.support[game.FEN()] = remaining - (i + 1)
	}
	return pv, nil
}
