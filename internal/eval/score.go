package eval

import (
	"errors"
	"fmt"

	"github.com/freeeve/blunderboard/internal/board"
)

// MateScore is the magnitude used for any forced mate, whatever its distance.
const MateScore = 100000

// ErrMalformedScore is returned when the engine reported neither a
// centipawn value nor a mate distance.
var ErrMalformedScore = errors.New("malformed engine score")

// ScoreKind tells which half of a RawScore is set.
type ScoreKind uint8

const (
	ScoreNone ScoreKind = iota
	ScoreCP
	ScoreMate
)

// RawScore is a score as the engine reports it, relative to the side to
// move in the searched position.
type RawScore struct {
	Kind ScoreKind
	// CP is the centipawn evaluation when Kind == ScoreCP.
	CP int
	// Mate is the mate distance when Kind == ScoreMate: positive means the
	// side to move mates, zero or negative means it is mated.
	Mate int
}

// CP builds a centipawn RawScore.
func CP(cp int) RawScore { return RawScore{Kind: ScoreCP, CP: cp} }

// Mate builds a mate-in-n RawScore.
func Mate(n int) RawScore { return RawScore{Kind: ScoreMate, Mate: n} }

// Normalize converts a raw score reported from perspective's point of view
// into a White-relative score. Mates collapse to ±MateScore.
func Normalize(raw RawScore, perspective board.Color) (int, error) {
	var score int
	switch raw.Kind {
	case ScoreCP:
		score = raw.CP
	case ScoreMate:
		score = -MateScore
		if raw.Mate > 0 {
			score = MateScore
		}
	default:
		return 0, ErrMalformedScore
	}

	if perspective == board.Black {
		score = -score
	}
	return clamp(score), nil
}

// clamp keeps finite scores inside the mate sentinel range.
func clamp(score int) int {
	if score > MateScore {
		return MateScore
	}
	if score < -MateScore {
		return -MateScore
	}
	return score
}

func (r RawScore) String() string {
	switch r.Kind {
	case ScoreCP:
		return fmt.Sprintf("cp %d", r.CP)
	case ScoreMate:
		return fmt.Sprintf("mate %d", r.Mate)
	default:
		return "none"
	}
}
