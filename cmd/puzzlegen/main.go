package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pawnsposes/puzzlegen/internal/builder"
	appcfg "github.com/pawnsposes/puzzlegen/internal/config"
	"github.com/pawnsposes/puzzlegen/internal/obslog"
	"github.com/pawnsposes/puzzlegen/internal/puzzle"
)

func main() {
	var (
		user    = flag.String("user", "", "username whose mistakes seed the puzzles (required)")
		count   = flag.Int("count", 0, "override target puzzle count")
		refresh = flag.Bool("refresh", false, "ignore any cached puzzle set and regenerate")
		pretty  = flag.Bool("pretty", false, "indent JSON output")
	)
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *count > 0 {
		cfg.TargetPuzzleCount = *count
	}

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	deps, err := builder.New(cfg, logger)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if deps.Cache != nil && !*refresh {
		puzzles, cachedShortfall, err := deps.Cache.Load(ctx, *user)
		if err != nil {
			logger.Warn("cache load failed", zap.Error(err))
		} else if puzzles != nil {
			logger.Info("serving cached puzzle set",
				zap.String("user", *user),
				zap.Int("count", len(puzzles)))
			var sf puzzle.ShortfallInfo
			if cachedShortfall != nil {
				sf = *cachedShortfall
			}
			if err := emit(os.Stdout, puzzles, sf, *pretty); err != nil {
				log.Fatalf("encode output: %v", err)
			}
			return
		}
	}

	puzzles, shortfall, err := deps.Generator.GenerateMistakePuzzles(ctx, *user, puzzle.Options{
		Progress: func(p puzzle.Progress) {
			logger.Info("tier progress",
				zap.String("tier", p.Tier),
				zap.Int("processed", p.Processed),
				zap.Int("accepted", p.Accepted),
				zap.Int("rejected", p.Rejected))
		},
	})
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		// Tiers finished before the failure still yielded puzzles; hand
		// them over before exiting non-zero.
		if len(puzzles) > 0 {
			if eerr := emit(os.Stdout, puzzles, shortfall, *pretty); eerr != nil {
				log.Fatalf("encode output: %v", eerr)
			}
		}
		os.Exit(1)
	}
	if shortfall.Short() {
		logger.Warn("puzzle shortfall",
			zap.Int("requested", shortfall.Requested),
			zap.Int("produced", shortfall.Produced),
			zap.String("reason", shortfall.Reason))
	}

	if deps.Cache != nil {
		if err := deps.Cache.Save(ctx, *user, puzzles, shortfall); err != nil {
			logger.Warn("cache save failed", zap.Error(err))
		}
	}

	if err := emit(os.Stdout, puzzles, shortfall, *pretty); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}

type output struct {
	Puzzles   []puzzle.Puzzle       `json:"puzzles"`
	Shortfall *puzzle.ShortfallInfo `json:"shortfall,omitempty"`
}

func emit(w io.Writer, puzzles []puzzle.Puzzle, shortfall puzzle.ShortfallInfo, pretty bool) error {
	out := output{Puzzles: puzzles}
	if shortfall.Short() {
		out.Shortfall = &shortfall
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
