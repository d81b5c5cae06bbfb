package eval

import (
	"fmt"
	"time"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"
)

// Engine is one running UCI engine process. Implementations need not be
// safe for concurrent use; Session serialises every call.
type Engine interface {
	SetOption(name string, value any) error
	Search(fen string, movetime time.Duration) (*SearchResult, error)
	Close()
}

// SearchResult is the outcome of one timed search.
type SearchResult struct {
	BestMove string   // bestmove token, "" or "(none)" when there is none
	PV       []string // principal variation, may be empty
	Score    RawScore // relative to the side to move
	Depth    int
}

// Move returns the first move of the principal line, falling back to the
// bestmove token. It returns "" when the engine had no move.
func (r *SearchResult) Move() string {
	if len(r.PV) > 0 && r.PV[0] != "" {
		return r.PV[0]
	}
	if r.BestMove == "(none)" || r.BestMove == "0000" {
		return ""
	}
	return r.BestMove
}

// Factory starts a new Engine.
type Factory func() (Engine, error)

// EngineConfig configures the Stockfish process.
type EngineConfig struct {
	Path    string
	HashMB  int // Stockfish hash table size
	Threads int // Stockfish threads
	Nice    int // Nice value for the process (0 = disabled)
	Logger  zerolog.Logger
}

// NewUCIFactory returns a Factory that spawns the configured UCI binary.
func NewUCIFactory(cfg EngineConfig) Factory {
	if cfg.HashMB == 0 {
		cfg.HashMB = 64
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	return func() (Engine, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("stockfish path required")
		}
		engine, err := uci.NewEngine(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}

		if err := engine.UCI(); err != nil {
			engine.Close()
			return nil, fmt.Errorf("uci handshake: %w", err)
		}

		opts := uci.Options{
			Hash:    cfg.HashMB,
			Threads: cfg.Threads,
			MultiPV: 1,
			Ponder:  false,
			OwnBook: false,
		}
		if err := engine.SetOptions(opts); err != nil {
			engine.Close()
			return nil, fmt.Errorf("set options: %w", err)
		}
		// uciok and readyok are skipped by the next search's reader.
		if err := engine.SendCommand("isready"); err != nil {
			engine.Close()
			return nil, fmt.Errorf("isready: %w", err)
		}

		if cfg.Nice > 0 {
			nice := cfg.Nice
			if nice > 19 {
				cfg.Logger.Warn().Int("requested", nice).Int("clamped", 19).Msg("nice value clamped to max 19")
				nice = 19
			}
			if err := engine.SetNice(nice); err != nil {
				cfg.Logger.Warn().Err(err).Int("nice", nice).Msg("failed to set nice value")
			}
		}

		return &uciEngine{engine: engine}, nil
	}
}

type uciEngine struct {
	engine *uci.Engine
}

func (e *uciEngine) SetOption(name string, value any) error {
	return e.engine.SendOption(name, value)
}

func (e *uciEngine) Search(fen string, movetime time.Duration) (*SearchResult, error) {
	if err := e.engine.SetFEN(fen); err != nil {
		return nil, fmt.Errorf("set FEN: %w", err)
	}

	ms := movetime.Milliseconds()
	if ms < 1 {
		ms = 1 // movetime 0 would search forever
	}
	// Bound lines are dropped by default; the deepest exact score wins.
	results, err := e.engine.Go(0, "", ms)
	if err != nil {
		return nil, fmt.Errorf("stockfish search: %w", err)
	}

	res := &SearchResult{BestMove: results.BestMove}
	if len(results.Results) == 0 {
		return res, nil
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	res.Depth = best.Depth
	res.PV = best.BestMoves
	if best.Mate {
		res.Score = Mate(best.Score)
	} else {
		res.Score = CP(best.Score)
	}
	return res, nil
}

func (e *uciEngine) Close() {
	if e.engine != nil {
		e.engine.Close()
	}
}
