package builder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pawnsposes/puzzlegen/internal/chess"
	"github.com/pawnsposes/puzzlegen/internal/config"
	"github.com/pawnsposes/puzzlegen/internal/mistakes"
	"github.com/pawnsposes/puzzlegen/internal/puzzle"
	"github.com/pawnsposes/puzzlegen/internal/puzzlecache"
)

// Deps holds the wired pipeline. Close releases the engine pool and the
// database handle.
type Deps struct {
	Generator *puzzle.Generator
	Analyzer  *chess.Analyzer
	Source    mistakes.Source
	Cache     *puzzlecache.Store

	db *sql.DB
}

func (d *Deps) Close() error {
	var firstErr error
	if d.Analyzer != nil {
		if err := d.Analyzer.Close(); err != nil {
			firstErr = err
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New wires the pipeline from configuration. The mistake source is the
// Postgres repository when DATABASE_URL is set, otherwise live harvesting
// from the Lichess export API.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required for the analysis engine")
	}
	analyzer, err := chess.NewAnalyzer(chess.AnalyzerConfig{
		BinaryPath: cfg.StockfishPath,
		Sessions:   cfg.Workers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init analyzer: %w", err)
	}

	tiers := puzzle.DefaultTiers()
	if cfg.TiersFile != "" {
		tiers, err = puzzle.LoadTiers(cfg.TiersFile)
		if err != nil {
			return nil, fmt.Errorf("load tiers: %w", err)
		}
	}

	deps := &Deps{Analyzer: analyzer}

	client := mistakes.NewLichessClient(cfg.LichessBaseURL, mistakes.WithToken(cfg.LichessToken))
	harvester := mistakes.NewHarvester(analyzer, mistakes.HarvesterConfig{
		ThresholdCP: cfg.HarvestThresholdCP,
		Depth:       cfg.HarvestDepth,
		Budget:      time.Duration(cfg.HarvestBudgetMs) * time.Millisecond,
	}, logger)
	live := mistakes.NewLichessSource(client, harvester, 0, logger)
	deps.Source = live

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		deps.db = db
		deps.Source = mistakes.NewSyncedSource(mistakes.NewRepository(db), live, logger)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		ropts, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(ropts)
		deps.Cache = puzzlecache.NewStore(rdb, cfg.CacheVersion, time.Duration(cfg.CacheTTLSec)*time.Second)
	}

	gen, err := puzzle.NewGenerator(analyzer, deps.Source, puzzle.Config{
		Tiers:             tiers,
		TargetPuzzleCount: cfg.TargetPuzzleCount,
		Workers:           cfg.Workers,
		BatchSize:         cfg.BatchSize,
		AnalysisDepth:     cfg.AnalysisDepth,
		LossThresholdCP:   cfg.LossThresholdCP,
	}, logger)
	if err != nil {
		return nil, err
	}
	deps.Generator = gen

	return deps, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
