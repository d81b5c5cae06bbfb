package board

import (
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Move encoding (uint32):
//   bits 0-5:   from square (0-63)
//   bits 6-11:  to square (0-63)
//   bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
//   bits 15-31: reserved

// Move is a single ply in compact form. It carries no position, so a Move
// is only meaningful once checked against one with Position.Legal.
type Move uint32

const (
	moveFromMask   = 0x3F   // bits 0-5
	moveToMask     = 0xFC0  // bits 6-11
	movePromoMask  = 0x7000 // bits 12-14
	movePromoShift = 12
	moveToShift    = 6
)

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

// EncodeMove creates a Move from square indices and optional promotion.
// from, to: square indices 0-63 (A1=0, B1=1, ..., H8=63)
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return 0
	}
	m := uint32(from) | (uint32(to) << moveToShift) | (uint32(promo) << movePromoShift)
	return Move(m)
}

// FromSquare returns the source square index (0-63).
func (m Move) FromSquare() int {
	return int(m & moveFromMask)
}

// ToSquare returns the destination square index (0-63).
func (m Move) ToSquare() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// String returns the move in UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	from := m.FromSquare()
	to := m.ToSquare()

	b := []byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	}
	if promo := m.Promotion(); promo > 0 && promo <= 4 {
		b = append(b, "qrbn"[promo-1])
	}
	return string(b)
}

// ParseMove parses UCI notation. It checks syntax only; legality needs a
// position.
func ParseMove(uci string) (Move, error) {
	uci = strings.TrimSpace(uci)
	if len(uci) != 4 && len(uci) != 5 {
		return 0, fmt.Errorf("%w: bad UCI move length: %q", ErrInvalidPosition, uci)
	}

	fromFile := int(uci[0]) - 'a'
	fromRank := int(uci[1]) - '1'
	toFile := int(uci[2]) - 'a'
	toRank := int(uci[3]) - '1'

	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 {
		return 0, fmt.Errorf("%w: invalid from square in UCI move %q", ErrInvalidPosition, uci)
	}
	if toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return 0, fmt.Errorf("%w: invalid to square in UCI move %q", ErrInvalidPosition, uci)
	}

	var promo byte = PromoNone
	if len(uci) == 5 {
		switch uci[4] {
		case 'q', 'Q':
			promo = PromoQueen
		case 'r', 'R':
			promo = PromoRook
		case 'b', 'B':
			promo = PromoBishop
		case 'n', 'N':
			promo = PromoKnight
		default:
			return 0, fmt.Errorf("%w: invalid promotion piece %q", ErrInvalidPosition, uci[4])
		}
	}

	return EncodeMove(fromRank*8+fromFile, toRank*8+toFile, promo), nil
}

// FromPGN converts a move produced by the pgn library.
func FromPGN(mv pgn.Mv) Move {
	var promo byte = PromoNone
	switch mv.Promo {
	case pgn.PromoQueen:
		promo = PromoQueen
	case pgn.PromoRook:
		promo = PromoRook
	case pgn.PromoBishop:
		promo = PromoBishop
	case pgn.PromoKnight:
		promo = PromoKnight
	}
	return EncodeMove(int(mv.From), int(mv.To), promo)
}

// MoveToUCI converts a pgn.Mv to UCI notation.
func MoveToUCI(mv pgn.Mv) string {
	return FromPGN(mv).String()
}

// MovesToUCI converts a move list to UCI notation.
func MovesToUCI(moves []pgn.Mv) []string {
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, MoveToUCI(mv))
	}
	return out
}
