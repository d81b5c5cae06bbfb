// Package board wraps pgn.GameState with the position rules the analysis
// pipeline needs: FEN parsing, move-sequence replay and UCI move legality.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"
)

var (
	// ErrInvalidPosition is returned for a malformed FEN or move notation.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrIllegalMove is returned for a well-formed move that is not legal in
	// the position it is applied to.
	ErrIllegalMove = errors.New("illegal move")
)

// StartFEN is the standard starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Color is the side to move.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// IllegalMoveError reports the move at Index (1-based) of a sequence that
// could not be parsed or applied.
type IllegalMoveError struct {
	Index int
	Move  string
	Err   error
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %s at position %d", e.Move, e.Index)
}

func (e *IllegalMoveError) Unwrap() error {
	return e.Err
}

// Position is a legal board state.
type Position struct {
	gs *pgn.GameState
}

// StartingPosition returns the standard initial position.
func StartingPosition() *Position {
	return &Position{gs: pgn.NewStartingPosition()}
}

// ParseFEN parses and validates a FEN string. Only boards that can occur
// in a game are accepted: one king per side, no pawns on the back ranks and
// the side not to move not in check. Move clocks are kept.
func ParseFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty FEN", ErrInvalidPosition)
	}
	fields := strings.Fields(fen)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fmt.Errorf("%w: FEN needs 4 to 6 fields: %q", ErrInvalidPosition, fen)
	}
	if fields[1] != "w" && fields[1] != "b" {
		return nil, fmt.Errorf("%w: bad side to move %q", ErrInvalidPosition, fields[1])
	}
	if err := checkPlacement(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}

	gs, err := pgn.NewGame(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if gs.Halfmove < 0 {
		return nil, fmt.Errorf("%w: negative halfmove clock", ErrInvalidPosition)
	}
	if err := checkLegal(gs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return &Position{gs: gs}, nil
}

// checkPlacement verifies the board field has 8 ranks of 8 squares.
func checkPlacement(placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("board has %d ranks", len(ranks))
	}
	for i, rank := range ranks {
		n := 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				n += int(ch - '0')
			} else {
				n++
			}
		}
		if n != 8 {
			return fmt.Errorf("rank %d has %d squares", 8-i, n)
		}
	}
	return nil
}

func checkLegal(gs *pgn.GameState) error {
	var kings [2]int
	for sq := pgn.Square(0); sq < 64; sq++ {
		switch gs.PieceAt(sq) {
		case 'K':
			kings[pgn.White]++
		case 'k':
			kings[pgn.Black]++
		case 'P', 'p':
			if r := sq / 8; r == 0 || r == 7 {
				return fmt.Errorf("pawn on back rank")
			}
		}
	}
	if kings[pgn.White] != 1 || kings[pgn.Black] != 1 {
		return fmt.Errorf("need one king per side, have %d white and %d black", kings[pgn.White], kings[pgn.Black])
	}

	waiting := gs.SideToMove ^ 1
	if gs.IsSquareAttacked(gs.KingSquare(waiting), gs.SideToMove) {
		return fmt.Errorf("side not to move is in check")
	}

	if gs.EP >= 0 {
		wantRank := pgn.Square(5) // white to move, black pawn just pushed
		if gs.SideToMove == pgn.Black {
			wantRank = 2
		}
		if gs.EP/8 != wantRank {
			return fmt.Errorf("en passant square on wrong rank")
		}
	}
	return nil
}

// FromMoves replays UCI moves from the standard starting position.
func FromMoves(moves []string) (*Position, error) {
	pos := StartingPosition()
	for i, m := range moves {
		if err := pos.Apply(m); err != nil {
			return nil, &IllegalMoveError{Index: i + 1, Move: m, Err: err}
		}
	}
	return pos, nil
}

// Clone returns an independent copy.
func (p *Position) Clone() *Position {
	return &Position{gs: p.gs.Copy()}
}

// FEN returns the position in Forsyth-Edwards Notation.
func (p *Position) FEN() string {
	return p.gs.ToFEN()
}

// SideToMove returns the color whose turn it is.
func (p *Position) SideToMove() Color {
	if p.gs.SideToMove == pgn.Black {
		return Black
	}
	return White
}

// LegalMoves returns all legal moves in UCI notation.
func (p *Position) LegalMoves() []string {
	return MovesToUCI(pgn.GenerateLegalMoves(p.gs))
}

// Legal checks a UCI move against the position and returns the matching
// library move.
func (p *Position) Legal(uci string) (pgn.Mv, error) {
	want, err := ParseMove(uci)
	if err != nil {
		return pgn.Mv{}, err
	}
	for _, mv := range pgn.GenerateLegalMoves(p.gs) {
		if FromPGN(mv) == want {
			return mv, nil
		}
	}
	return pgn.Mv{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
}

// Apply plays a UCI move, advancing the position and flipping the side to
// move. The position is unchanged on error.
func (p *Position) Apply(uci string) error {
	mv, err := p.Legal(uci)
	if err != nil {
		return err
	}
	if err := pgn.ApplyMove(p.gs, mv); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	return nil
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.gs.IsInCheck()
}

// IsGameOver reports whether the side to move has no legal moves.
func (p *Position) IsGameOver() bool {
	return len(pgn.GenerateLegalMoves(p.gs)) == 0
}

// IsCheckmate reports whether the side to move is mated.
func (p *Position) IsCheckmate() bool {
	return p.IsGameOver() && p.InCheck()
}

// IsStalemate reports whether the side to move has no moves and is not in
// check.
func (p *Position) IsStalemate() bool {
	return p.IsGameOver() && !p.InCheck()
}
