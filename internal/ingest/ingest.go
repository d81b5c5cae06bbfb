// Package ingest streams games out of PGN files and PGN text.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/board"
)

// ErrStop can be returned by a game callback to end reading early without
// an error.
var ErrStop = errors.New("stop reading games")

// Game is one parsed game.
type Game struct {
	Headers map[string]string
	Moves   []pgn.Mv
}

// UCIMoves returns the mainline in UCI notation.
func (g *Game) UCIMoves() []string {
	return board.MovesToUCI(g.Moves)
}

// Filter selects which games are passed on.
type Filter struct {
	RatingMin int // both players at least this rated (0 = any)
	MaxGames  int // stop after this many accepted games (0 = all)
}

// Stats summarises one read.
type Stats struct {
	Games   int64
	Skipped int64
	Elapsed time.Duration
}

// ReadFile streams games from a .pgn or .pgn.zst file, calling fn for each
// game that passes f.
func ReadFile(ctx context.Context, path string, f Filter, log zerolog.Logger, fn func(*Game) error) (Stats, error) {
	var st Stats
	startTime := time.Now()
	lastLog := startTime

	parser := pgn.Games(path)

	var cbErr error
	stopped := false
gameLoop:
	for g := range parser.Games {
		select {
		case <-ctx.Done():
			parser.Stop()
			stopped = true
			cbErr = ctx.Err()
			break gameLoop
		default:
		}

		if f.MaxGames > 0 && st.Games >= int64(f.MaxGames) {
			parser.Stop()
			stopped = true
			break gameLoop
		}

		whiteRating := parseRating(g.Tags["WhiteElo"])
		blackRating := parseRating(g.Tags["BlackElo"])
		if f.RatingMin > 0 && (whiteRating < f.RatingMin || blackRating < f.RatingMin) {
			st.Skipped++
			continue
		}

		game := &Game{Headers: make(map[string]string, len(g.Tags)), Moves: g.Moves}
		for k, v := range g.Tags {
			game.Headers[k] = v
		}

		if err := fn(game); err != nil {
			parser.Stop()
			stopped = true
			cbErr = err
			break gameLoop
		}
		st.Games++

		if time.Since(lastLog) > 10*time.Second {
			log.Info().
				Str("file", filepath.Base(path)).
				Int64("games", st.Games).
				Int64("skipped", st.Skipped).
				Msg("read progress")
			lastLog = time.Now()
		}
	}
	st.Elapsed = time.Since(startTime)

	if cbErr != nil && !errors.Is(cbErr, ErrStop) {
		return st, cbErr
	}
	if stopped {
		return st, nil
	}
	if err := parser.Err(); err != nil {
		return st, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return st, nil
}

// ReadAll parses PGN text into games. The parser reads from disk, so the
// text is staged in a temporary file.
func ReadAll(ctx context.Context, r io.Reader) ([]*Game, error) {
	tmp, err := os.CreateTemp("", "blunderboard-*.pgn")
	if err != nil {
		return nil, fmt.Errorf("stage pgn: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stage pgn: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage pgn: %w", err)
	}

	var games []*Game
	_, err = ReadFile(ctx, tmp.Name(), Filter{}, zerolog.Nop(), func(g *Game) error {
		games = append(games, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

// IsPGNFile reports whether name looks like a .pgn or .pgn.zst file.
func IsPGNFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".pgn" {
		return true
	}
	if ext == ".zst" {
		base := name[:len(name)-4]
		return filepath.Ext(base) == ".pgn"
	}
	return false
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
