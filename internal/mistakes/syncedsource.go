package mistakes

import (
	"context"

	"go.uber.org/zap"
)

// CandidateStore is the persistence surface SyncedSource needs; satisfied
// by Repository.
type CandidateStore interface {
	FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error)
	InsertMistakes(ctx context.Context, username string, cands []Candidate) error
}

// SyncedSource serves persisted candidates and falls back to live
// harvesting when the store has none, persisting what the harvest finds so
// the next run is cheap.
type SyncedSource struct {
	store  CandidateStore
	live   Source
	logger *zap.Logger
}

func NewSyncedSource(store CandidateStore, live Source, logger *zap.Logger) *SyncedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncedSource{store: store, live: live, logger: logger}
}

func (s *SyncedSource) FetchMistakes(ctx context.Context, username string, limit int) ([]Candidate, error) {
	cands, err := s.store.FetchMistakes(ctx, username, limit)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		return cands, nil
	}
	if s.live == nil {
		return cands, nil
	}

	cands, err = s.live.FetchMistakes(ctx, username, limit)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		if err := s.store.InsertMistakes(ctx, username, cands); err != nil {
			// Persistence is an optimization; the harvest result stands.
			s.logger.Warn("persist harvested mistakes failed",
				zap.String("username", username), zap.Error(err))
		}
	}
	return cands, nil
}
