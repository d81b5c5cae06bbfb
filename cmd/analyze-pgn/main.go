// Command analyze-pgn replays games from a PGN file through Stockfish and
// writes per-move centipawn loss as CSV.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
	"github.com/freeeve/blunderboard/internal/ingest"
	"github.com/freeeve/blunderboard/internal/logx"
)

func main() {
	defaultStockfish := "stockfish"
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		defaultStockfish = envPath
	}

	var (
		inputPath     = pflag.String("input", "", "PGN file to analyse (.pgn or .pgn.zst)")
		outputPath    = pflag.String("output", "analysis.csv", "output CSV file (.zst suffix compresses)")
		ratingMin     = pflag.Int("rating-min", 0, "skip games where either player is rated below this")
		maxGames      = pflag.Int("max-games", 100, "stop after this many games (0 = all)")
		stockfishPath = pflag.String("stockfish", defaultStockfish, "path to Stockfish executable")
		analyzeTime   = pflag.Duration("analyze-time", 100*time.Millisecond, "engine time per position")
		hashMB        = pflag.Int("hash", 64, "Stockfish hash MB")
		threads       = pflag.Int("threads", 1, "Stockfish threads")
		logLevel      = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	logger, err := logx.NewLogger(logx.Config{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	if *inputPath == "" || !ingest.IsPGNFile(*inputPath) {
		logger.Fatal().Str("input", *inputPath).Msg("--input must name a .pgn or .pgn.zst file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := eval.NewSession(eval.SessionConfig{
		Factory: eval.NewUCIFactory(eval.EngineConfig{
			Path:    *stockfishPath,
			HashMB:  *hashMB,
			Threads: *threads,
			Logger:  logger,
		}),
		Logger: logger.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create engine session")
	}
	defer session.Close()

	if err := session.Acquire(ctx); err != nil {
		logger.Fatal().Err(err).Str("stockfish", *stockfishPath).Msg("start engine")
	}

	analyzer, err := analysis.New(analysis.Config{
		Logger:       logger.With().Str("component", "analysis").Logger(),
		AnalyzeTime:  *analyzeTime,
		CacheEntries: 200000,
	}, session)
	if err != nil {
		logger.Fatal().Err(err).Msg("create analyzer")
	}

	out, err := createReport(*outputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("create output")
	}

	startTime := time.Now()
	var (
		all      [][]analysis.MoveRecord
		gameNum  int
		failures int
	)
	stats, readErr := ingest.ReadFile(ctx, *inputPath, ingest.Filter{RatingMin: *ratingMin, MaxGames: *maxGames}, logger, func(g *ingest.Game) error {
		gameNum++
		moves := g.UCIMoves()
		if len(moves) == 0 {
			return nil
		}

		res, err := analyzer.Replay(ctx, board.StartingPosition(), moves, nil)
		if err != nil {
			var ime *board.IllegalMoveError
			if errors.As(err, &ime) {
				logger.Warn().Err(err).Int("game", gameNum).Msg("skipping game")
				failures++
				return nil
			}
			return fmt.Errorf("game %d: %w", gameNum, err)
		}

		if err := out.WriteGame(gameNum, g.Headers, res.Moves); err != nil {
			return err
		}
		all = append(all, res.Moves)

		logger.Info().
			Int("game", gameNum).
			Str("white", g.Headers["White"]).
			Str("black", g.Headers["Black"]).
			Int("moves", len(res.Moves)).
			Int("total_loss", res.TotalLoss).
			Msg("game analysed")
		return nil
	})

	if err := out.Close(); err != nil {
		logger.Error().Err(err).Msg("close output")
	}
	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		logger.Fatal().Err(readErr).Msg("analysis failed")
	}

	summary, err := analysis.Aggregate(all)
	if err != nil {
		logger.Warn().Err(err).Msg("no games analysed")
		return
	}

	ev := logger.Info().
		Int("games", summary.Games).
		Int("moves", summary.Moves).
		Int64("skipped", stats.Skipped).
		Int("failed", failures).
		Float64("average_loss", summary.AverageLoss).
		Dur("elapsed", time.Since(startTime)).
		Str("output", *outputPath)
	for i, b := range summary.MostCommonBlunders {
		ev = ev.Str(fmt.Sprintf("blunder_%d", i+1), fmt.Sprintf("%s x%d", b.Move, b.Count))
	}
	ev.Msg("done")
}
