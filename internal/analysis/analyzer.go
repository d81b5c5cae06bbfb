// Package analysis turns engine searches into per-position evaluations,
// per-move centipawn loss for whole games, cross-game blunder statistics
// and strength-limited bot moves.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/cache"
	"github.com/freeeve/blunderboard/internal/eval"
)

// Searcher runs one engine query. *eval.Session implements it.
type Searcher interface {
	Search(ctx context.Context, q eval.Query) (*eval.SearchResult, error)
}

// Config configures an Analyzer.
type Config struct {
	Logger       zerolog.Logger
	AnalyzeTime  time.Duration // per-position budget for analysis (default 100ms)
	BotTime      time.Duration // per-move budget for bot play (default 500ms)
	CacheEntries int           // evaluation cache size (0 = disabled)
	DefaultElo   int           // bot rating when the request has none (default 1200)
	MinElo       int           // lowest rating the engine accepts (default 1320)
	MaxElo       int           // highest rating the engine accepts (default 3190)
}

// Analyzer evaluates positions and games against a shared engine session.
type Analyzer struct {
	engine Searcher
	cfg    Config
	log    zerolog.Logger
	cache  *cache.Cache[Analysis]
}

// New creates an Analyzer.
func New(cfg Config, engine Searcher) (*Analyzer, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine session required")
	}
	if cfg.AnalyzeTime == 0 {
		cfg.AnalyzeTime = 100 * time.Millisecond
	}
	if cfg.BotTime == 0 {
		cfg.BotTime = 500 * time.Millisecond
	}
	if cfg.AnalyzeTime < 0 || cfg.BotTime < 0 {
		return nil, ErrInvalidBudget
	}
	if cfg.DefaultElo == 0 {
		cfg.DefaultElo = 1200
	}
	if cfg.MinElo == 0 {
		cfg.MinElo = 1320
	}
	if cfg.MaxElo == 0 {
		cfg.MaxElo = 3190
	}

	return &Analyzer{
		engine: engine,
		cfg:    cfg,
		log:    cfg.Logger,
		cache:  cache.New[Analysis](cfg.CacheEntries),
	}, nil
}

// AnalyzeTime returns the per-position budget used for analysis.
func (a *Analyzer) AnalyzeTime() time.Duration {
	return a.cfg.AnalyzeTime
}

// CacheStats returns evaluation cache counters.
func (a *Analyzer) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// Analysis is the evaluation of one position.
type Analysis struct {
	BestMove string // first move of the principal line, "" when there is none
	Score    int    // White-relative centipawns, ±eval.MateScore for mate
}

// Analyze evaluates pos within budget. Positions with no legal moves are
// scored without consulting the engine.
func (a *Analyzer) Analyze(ctx context.Context, pos *board.Position, budget time.Duration) (Analysis, error) {
	if pos == nil {
		return Analysis{}, fmt.Errorf("%w: nil position", board.ErrInvalidPosition)
	}
	if budget <= 0 {
		return Analysis{}, fmt.Errorf("%w: got %s", ErrInvalidBudget, budget)
	}

	if pos.IsGameOver() {
		return terminalAnalysis(pos), nil
	}

	fen := pos.FEN()
	key := fen + "|" + budget.String()
	if ev, ok := a.cache.Get(key); ok {
		return ev, nil
	}

	res, err := a.engine.Search(ctx, eval.Query{FEN: fen, MoveTime: budget})
	if err != nil {
		return Analysis{}, err
	}

	score, err := eval.Normalize(res.Score, pos.SideToMove())
	if err != nil {
		return Analysis{}, fmt.Errorf("%w: fen %s", err, fen)
	}

	ev := Analysis{BestMove: res.Move(), Score: score}
	a.cache.Put(key, ev)

	a.log.Debug().
		Str("fen", fen).
		Str("best_move", ev.BestMove).
		Int("score", ev.Score).
		Int("depth", res.Depth).
		Msg("evaluated")

	return ev, nil
}

// terminalAnalysis scores a position with no legal moves: the side to
// move is mated or it is stalemate.
func terminalAnalysis(pos *board.Position) Analysis {
	if !pos.InCheck() {
		return Analysis{}
	}
	// Mate(0) is always well formed.
	score, _ := eval.Normalize(eval.Mate(0), pos.SideToMove())
	return Analysis{Score: score}
}
