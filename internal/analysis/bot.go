package analysis

import (
	"context"
	"fmt"

	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
)

// ClampElo maps a requested rating into the range the engine accepts.
// Zero or negative selects the default rating.
func (a *Analyzer) ClampElo(elo int) int {
	if elo <= 0 {
		elo = a.cfg.DefaultElo
	}
	if elo < a.cfg.MinElo {
		return a.cfg.MinElo
	}
	if elo > a.cfg.MaxElo {
		return a.cfg.MaxElo
	}
	return elo
}

// PickMove picks a move for the side to move in pos, playing at roughly
// the given rating.
func (a *Analyzer) PickMove(ctx context.Context, pos *board.Position, elo int) (string, error) {
	if pos == nil {
		return "", fmt.Errorf("%w: nil position", board.ErrInvalidPosition)
	}
	if pos.IsGameOver() {
		return "", ErrGameAlreadyOver
	}

	rating := a.ClampElo(elo)
	res, err := a.engine.Search(ctx, eval.Query{
		FEN:      pos.FEN(),
		MoveTime: a.cfg.BotTime,
		Elo:      rating,
	})
	if err != nil {
		return "", err
	}

	mv := res.BestMove
	if mv == "" || mv == "(none)" || mv == "0000" {
		mv = res.Move()
	}
	if mv == "" {
		return "", ErrNoMoveFound
	}
	if _, err := pos.Legal(mv); err != nil {
		return "", fmt.Errorf("%w: engine returned %s: %v", ErrNoMoveFound, mv, err)
	}

	a.log.Debug().
		Str("fen", pos.FEN()).
		Int("elo", rating).
		Str("move", mv).
		Msg("bot move")

	return mv, nil
}
