package puzzle

import (
	"context"
	"sync"

	"github.com/pawnsposes/puzzlegen/internal/mistakes"
	"go.uber.org/zap"
)

// ExtractFunc attempts to turn one candidate into a puzzle at the current
// tier. A nil puzzle with nil error means the candidate was rejected at this
// tier; an error is a per-candidate failure and is absorbed by the scheduler.
type ExtractFunc func(ctx context.Context, cand mistakes.Candidate) (*Puzzle, error)

// Scheduler fans a candidate pool out to a bounded worker pool in fixed-size
// batches. The batch boundary is the backpressure mechanism: a new batch
// starts only after the previous one fully settles, so concurrent engine
// load never exceeds the worker count.
type Scheduler struct {
	workers   int
	batchSize int
	logger    *zap.Logger
}

func NewScheduler(workers, batchSize int, logger *zap.Logger) *Scheduler {
	if workers <= 0 {
		workers = 6
	}
	if batchSize < workers {
		batchSize = workers * 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{workers: workers, batchSize: batchSize, logger: logger}
}

type extraction struct {
	cand   mistakes.Candidate
	puzzle *Puzzle
	err    error
}

// Accepted pairs a produced puzzle with its source candidate so the caller
// can mark the candidate used.
type Accepted struct {
	Candidate mistakes.Candidate
	Puzzle    Puzzle
}

// Run processes candidates under the tier's settings. Workers are
// side-effect-free; this goroutine is the single aggregator that owns the
// accepted list and the counters. Cancellation stops scheduling promptly and
// whatever was already accepted is returned.
func (s *Scheduler) Run(ctx context.Context, tier StrategyTier, cands []mistakes.Candidate, extract ExtractFunc, progress ProgressFunc) []Accepted {
	var accepted []Accepted
	processed, rejected := 0, 0

	for start := 0; start < len(cands); start += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + s.batchSize
		if end > len(cands) {
			end = len(cands)
		}
		batch := cands[start:end]

		for res := range s.runBatch(ctx, batch, extract) {
			processed++
			switch {
			case res.err != nil:
				rejected++
				s.logger.Warn("candidate extraction failed",
					zap.String("tier", tier.Label),
					zap.String("candidate", res.cand.Key()),
					zap.Error(res.err))
			case res.puzzle == nil:
				rejected++
			default:
				accepted = append(accepted, Accepted{Candidate: res.cand, Puzzle: *res.puzzle})
			}
			if progress != nil {
				progress(Progress{Tier: tier.Label, Processed: processed, Accepted: len(accepted), Rejected: rejected})
			}
		}

		s.logger.Info("batch complete",
			zap.String("tier", tier.Label),
			zap.Int("processed", processed),
			zap.Int("accepted", len(accepted)),
			zap.Int("rejected", rejected))
	}

	return accepted
}

func (s *Scheduler) runBatch(ctx context.Context, batch []mistakes.Candidate, extract ExtractFunc) <-chan extraction {
	jobs := make(chan mistakes.Candidate)
	results := make(chan extraction)

	workers := s.workers
	if workers > len(batch) {
		workers = len(batch)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				p, err := extract(ctx, cand)
				results <- extraction{cand: cand, puzzle: p, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cand := range batch {
			select {
			case jobs <- cand:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
