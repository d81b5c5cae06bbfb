package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/archive"
	"github.com/freeeve/blunderboard/internal/config"
	"github.com/freeeve/blunderboard/internal/eco"
	"github.com/freeeve/blunderboard/internal/eval"
	"github.com/freeeve/blunderboard/internal/httpapi"
	"github.com/freeeve/blunderboard/internal/logx"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := logx.NewLogger(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The engine process starts on first use, not here.
	session, err := eval.NewSession(eval.SessionConfig{
		Factory: eval.NewUCIFactory(eval.EngineConfig{
			Path:    cfg.Engine.Path,
			HashMB:  cfg.Engine.HashMB,
			Threads: cfg.Engine.Threads,
			Nice:    cfg.Engine.Nice,
			Logger:  logger.With().Str("component", "engine").Logger(),
		}),
		Logger: logger.With().Str("component", "engine").Logger(),
		Grace:  cfg.Engine.Grace,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create engine session")
	}

	analyzer, err := analysis.New(analysis.Config{
		Logger:       logger.With().Str("component", "analysis").Logger(),
		AnalyzeTime:  cfg.Analysis.AnalyzeTime,
		BotTime:      cfg.Analysis.BotTime,
		CacheEntries: cfg.Analysis.CacheEntries,
		DefaultElo:   cfg.Analysis.DefaultElo,
		MinElo:       cfg.Analysis.MinElo,
		MaxElo:       cfg.Analysis.MaxElo,
	}, session)
	if err != nil {
		logger.Fatal().Err(err).Msg("create analyzer")
	}

	// Load ECO opening book
	var book *eco.Book
	if cfg.ECODir != "" {
		book = eco.NewBook()
		if err := book.LoadDir(cfg.ECODir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.ECODir).Msg("failed to load ECO book")
			book = nil
		} else {
			logger.Info().Int("openings", book.Count()).Int("skipped", book.Skipped()).Msg("ECO book loaded")
		}
	}

	archiveCfg := archive.Config{
		BaseURL:     cfg.Archive.BaseURL,
		UserAgent:   cfg.Archive.UserAgent,
		Timeout:     cfg.Archive.Timeout,
		Concurrency: cfg.Archive.Concurrency,
		CacheTTL:    cfg.Archive.CacheTTL,
		Openings:    book,
		Logger:      logger.With().Str("component", "archive").Logger(),
	}
	if cfg.Archive.RedisURL != "" {
		rc, err := archive.NewRedisCache(ctx, cfg.Archive.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("archive cache disabled")
		} else {
			defer rc.Close()
			archiveCfg.Cache = rc
			logger.Info().Dur("ttl", cfg.Archive.CacheTTL).Msg("archive cache enabled")
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(logger.With().Str("component", "http").Logger(), httpapi.Options{
			Analyzer:       analyzer,
			Engine:         session,
			Games:          archive.NewClient(archiveCfg),
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long games are replayed synchronously
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("engine", cfg.Engine.Path).
			Dur("analyze_time", cfg.Analysis.AnalyzeTime).
			Dur("bot_time", cfg.Analysis.BotTime).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	shutdown(logger, srv, session)
}

// shutdown stops accepting requests, waits for in-flight ones and then
// stops the engine exactly once.
func shutdown(logger zerolog.Logger, srv *http.Server, session *eval.Session) {
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	if err := session.Close(); err != nil {
		logger.Warn().Err(err).Msg("engine shutdown error")
	}

	st := session.GetStatus()
	logger.Info().
		Int64("queries", st.Queries).
		Int64("restarts", st.Restarts).
		Int64("timeouts", st.Timeouts).
		Msg("shutdown complete")
}
