package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	StockfishPath string

	RedisURL    string
	DatabaseURL string

	LichessBaseURL string
	LichessToken   string

	TargetPuzzleCount  int
	Workers            int
	BatchSize          int
	AnalysisDepth      int
	LossThresholdCP    int
	HarvestThresholdCP int
	HarvestDepth       int
	HarvestBudgetMs    int

	TiersFile    string
	CacheVersion string
	CacheTTLSec  int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		LichessBaseURL:     "https://lichess.org",
		TargetPuzzleCount:  20,
		Workers:            6,
		BatchSize:          12,
		AnalysisDepth:      14,
		LossThresholdCP:    -250,
		HarvestThresholdCP: 150,
		HarvestDepth:       10,
		HarvestBudgetMs:    400,
		CacheVersion:       "v1",
		CacheTTLSec:        6 * 3600,
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("LICHESS_BASE_URL")); v != "" {
		cfg.LichessBaseURL = v
	}
	cfg.LichessToken = strings.TrimSpace(os.Getenv("LICHESS_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("PUZZLE_TARGET_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TargetPuzzleCount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_WORKERS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_ANALYSIS_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AnalysisDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_LOSS_THRESHOLD_CP")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n < 0 {
			cfg.LossThresholdCP = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HARVEST_THRESHOLD_CP")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HarvestThresholdCP = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HARVEST_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HarvestDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HARVEST_BUDGET_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HarvestBudgetMs = n
		}
	}

	cfg.TiersFile = strings.TrimSpace(os.Getenv("PUZZLE_TIERS_FILE"))
	if v := strings.TrimSpace(os.Getenv("PUZZLE_CACHE_VERSION")); v != "" {
		cfg.CacheVersion = v
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_CACHE_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheTTLSec = n
		}
	}

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}

	return cfg, nil
}
