package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/freeeve/blunderboard/internal/board"
)

// TopBlunderCount is how many worst moves a GameResult keeps.
const TopBlunderCount = 3

// MoveRecord is the analysis of one played move.
type MoveRecord struct {
	MoveNumber    int    // 1-based half-move index
	Move          string // the move played, UCI
	BestMove      string // engine's preferred move before it, "" when none
	EvalBefore    int    // White-relative, before the move
	EvalAfter     int    // White-relative, after the move
	CentipawnLoss int    // from the mover's perspective; negative means the move beat the engine's estimate
}

// GameResult is the analysis of a move sequence.
type GameResult struct {
	Moves       []MoveRecord
	TotalLoss   int // sum of absolute losses
	TopBlunders []MoveRecord
}

// CentipawnLoss returns how much a move lost for the side that played it.
func CentipawnLoss(before, after int, mover board.Color) int {
	if mover == board.White {
		return before - after
	}
	return after - before
}

// Replay analyses each move of moves played from start, or from the
// standard starting position when start is nil. All moves are
// checked for legality before the engine is consulted, so an illegal move
// anywhere in the sequence yields a *board.IllegalMoveError and no work.
// onRecord, when non-nil, is called with each record as it is produced.
func (a *Analyzer) Replay(ctx context.Context, start *board.Position, moves []string, onRecord func(MoveRecord)) (*GameResult, error) {
	if start == nil {
		start = board.StartingPosition()
	}
	if len(moves) == 0 {
		return nil, ErrNoMovesProvided
	}

	check := start.Clone()
	for i, m := range moves {
		if err := check.Apply(m); err != nil {
			return nil, &board.IllegalMoveError{Index: i + 1, Move: m, Err: err}
		}
	}

	budget := a.cfg.AnalyzeTime
	pos := start.Clone()
	result := &GameResult{Moves: make([]MoveRecord, 0, len(moves))}

	// The evaluation after move i is the evaluation before move i+1.
	before, err := a.Analyze(ctx, pos, budget)
	if err != nil {
		return nil, fmt.Errorf("analyze move 1: %w", err)
	}

	for i, m := range moves {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mover := pos.SideToMove()
		if err := pos.Apply(m); err != nil {
			return nil, &board.IllegalMoveError{Index: i + 1, Move: m, Err: err}
		}

		after, err := a.Analyze(ctx, pos, budget)
		if err != nil {
			return nil, fmt.Errorf("analyze move %d: %w", i+1, err)
		}

		rec := MoveRecord{
			MoveNumber:    i + 1,
			Move:          m,
			BestMove:      before.BestMove,
			EvalBefore:    before.Score,
			EvalAfter:     after.Score,
			CentipawnLoss: CentipawnLoss(before.Score, after.Score, mover),
		}
		result.Moves = append(result.Moves, rec)
		result.TotalLoss += abs(rec.CentipawnLoss)
		if onRecord != nil {
			onRecord(rec)
		}

		before = after
	}

	result.TopBlunders = topBlunders(result.Moves, TopBlunderCount)

	a.log.Info().
		Int("moves", len(result.Moves)).
		Int("total_loss", result.TotalLoss).
		Msg("game analyzed")

	return result, nil
}

// topBlunders returns up to n records with the largest absolute loss.
// Ties keep game order.
func topBlunders(records []MoveRecord, n int) []MoveRecord {
	sorted := append([]MoveRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return abs(sorted[i].CentipawnLoss) > abs(sorted[j].CentipawnLoss)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
