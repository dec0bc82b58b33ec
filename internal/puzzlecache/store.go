package puzzlecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pawnsposes/puzzlegen/internal/puzzle"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 6 * time.Hour

// Store caches generated puzzle sets per user in Redis. The version string
// is part of the key, so invalidation is the caller's concern: bump the
// configured version and the old entries simply age out.
type Store struct {
	rdb     *redis.Client
	version string
	ttl     time.Duration
}

func NewStore(rdb *redis.Client, version string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	version = strings.TrimSpace(version)
	if version == "" {
		version = "v1"
	}
	return &Store{rdb: rdb, version: version, ttl: ttl}
}

func (s *Store) key(username string) string {
	return "puzzles:" + s.version + ":" + strings.ToLower(strings.TrimSpace(username))
}

type cachedSet struct {
	Puzzles   []puzzle.Puzzle      `json:"puzzles"`
	Shortfall puzzle.ShortfallInfo `json:"shortfall"`
	SavedAt   time.Time            `json:"saved_at"`
}

func (s *Store) Save(ctx context.Context, username string, puzzles []puzzle.Puzzle, shortfall puzzle.ShortfallInfo) error {
	raw, err := json.Marshal(cachedSet{Puzzles: puzzles, Shortfall: shortfall, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal puzzle set: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(username), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save puzzle set: %w", err)
	}
	return nil
}

// Load returns the cached set, or nil when absent.
func (s *Store) Load(ctx context.Context, username string) ([]puzzle.Puzzle, *puzzle.ShortfallInfo, error) {
	raw, err := s.rdb.Get(ctx, s.key(username)).Bytes()
	if err == redis.Nil {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load puzzle set: %w", err)
	}
	var set cachedSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, nil, fmt.Errorf("unmarshal puzzle set: %w", err)
	}
	return set.Puzzles, &set.Shortfall, nil
}

func (s *Store) Invalidate(ctx context.Context, username string) error {
	return s.rdb.Del(ctx, s.key(username)).Err()
}
