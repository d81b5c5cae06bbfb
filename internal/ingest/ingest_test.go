package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const samplePGN = `[Event "Live Chess"]
[White "alice"]
[Black "bob"]
[Result "1-0"]
[WhiteElo "1500"]
[BlackElo "1400"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0

[Event "Live Chess"]
[White "carol"]
[Black "alice"]
[Result "0-1"]
[WhiteElo "2100"]
[BlackElo "2050"]

1. f3 e5 2. g4 Qh4# 0-1

[Event "Live Chess"]
[White "dave"]
[Black "erin"]
[Result "1/2-1/2"]
[WhiteElo "?"]
[BlackElo "1800"]

1. d4 d5 1/2-1/2
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(samplePGN), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAll(t *testing.T) {
	games, err := ReadAll(context.Background(), strings.NewReader(samplePGN))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("games = %d, want 3", len(games))
	}
	if games[0].Headers["White"] != "alice" || games[1].Headers["Result"] != "0-1" {
		t.Errorf("headers = %v / %v", games[0].Headers, games[1].Headers)
	}
	want := []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6", "h5f7"}
	if got := games[0].UCIMoves(); !reflect.DeepEqual(got, want) {
		t.Errorf("UCIMoves = %v, want %v", got, want)
	}
}

func TestReadFileFilter(t *testing.T) {
	path := writeSample(t)
	tests := []struct {
		name    string
		filter  Filter
		games   int64
		skipped int64
	}{
		{"all", Filter{}, 3, 0},
		{"rated", Filter{RatingMin: 1450}, 1, 2},
		{"max", Filter{MaxGames: 2}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ReadFile(context.Background(), path, tt.filter, zerolog.Nop(), func(*Game) error { return nil })
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if st.Games != tt.games || st.Skipped != tt.skipped {
				t.Errorf("stats = %+v, want games %d skipped %d", st, tt.games, tt.skipped)
			}
		})
	}
}

func TestReadFileCallbackStops(t *testing.T) {
	path := writeSample(t)

	n := 0
	_, err := ReadFile(context.Background(), path, Filter{}, zerolog.Nop(), func(*Game) error {
		n++
		return ErrStop
	})
	if err != nil || n != 1 {
		t.Errorf("ErrStop: err = %v, calls = %d", err, n)
	}

	boom := errors.New("boom")
	_, err = ReadFile(context.Background(), path, Filter{}, zerolog.Nop(), func(*Game) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestIsPGNFile(t *testing.T) {
	tests := map[string]bool{
		"games.pgn":     true,
		"games.pgn.zst": true,
		"games.zst":     false,
		"games.txt":     false,
		"pgn":           false,
	}
	for name, want := range tests {
		if got := IsPGNFile(name); got != want {
			t.Errorf("IsPGNFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := map[string]int{"": 0, "?": 0, "-": 0, "1500": 1500, "abc": 0}
	for in, want := range tests {
		if got := parseRating(in); got != want {
			t.Errorf("parseRating(%q) = %d, want %d", in, got, want)
		}
	}
}
