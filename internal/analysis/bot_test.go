package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
	"github.com/freeeve/blunderboard/internal/eval/evaltest"
)

func TestClampElo(t *testing.T) {
	a := newAnalyzer(t, evaltest.New(), 0)
	tests := []struct {
		in, want int
	}{
		{0, 1320},
		{-5, 1320},
		{800, 1320},
		{1500, 1500},
		{3190, 3190},
		{4000, 3190},
	}
	for _, tt := range tests {
		if got := a.ClampElo(tt.in); got != tt.want {
			t.Errorf("ClampElo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPickMoveLimitsStrength(t *testing.T) {
	fake := evaltest.New()
	a := newAnalyzer(t, fake, 0)

	mv, err := a.PickMove(context.Background(), board.StartingPosition(), 1800)
	if err != nil {
		t.Fatalf("PickMove: %v", err)
	}
	if _, err := board.StartingPosition().Legal(mv); err != nil {
		t.Errorf("PickMove returned illegal move %q", mv)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("engine calls = %d, want 1", len(calls))
	}
	if calls[0].Options["UCI_LimitStrength"] != true || calls[0].Options["UCI_Elo"] != 1800 {
		t.Errorf("options during search = %v", calls[0].Options)
	}
	if calls[0].MoveTime != a.cfg.BotTime {
		t.Errorf("MoveTime = %s, want %s", calls[0].MoveTime, a.cfg.BotTime)
	}
	if fake.Option("UCI_LimitStrength") != false {
		t.Errorf("strength limit left enabled after the query")
	}
}

func TestPickMoveGameOver(t *testing.T) {
	fake := evaltest.New()
	a := newAnalyzer(t, fake, 0)
	pos, _ := board.ParseFEN(foolsMateFEN)

	if _, err := a.PickMove(context.Background(), pos, 0); !errors.Is(err, ErrGameAlreadyOver) {
		t.Errorf("err = %v, want ErrGameAlreadyOver", err)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("engine consulted for a finished game")
	}
}

func TestPickMoveNoMove(t *testing.T) {
	tests := []struct {
		name string
		res  *eval.SearchResult
	}{
		{"none", &eval.SearchResult{BestMove: "(none)", Score: eval.CP(0)}},
		{"empty", &eval.SearchResult{Score: eval.CP(0)}},
		{"illegal", &eval.SearchResult{BestMove: "e7e5", Score: eval.CP(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := evaltest.New()
			fake.Set(board.StartFEN, tt.res)
			a := newAnalyzer(t, fake, 0)
			if _, err := a.PickMove(context.Background(), board.StartingPosition(), 1200); !errors.Is(err, ErrNoMoveFound) {
				t.Errorf("err = %v, want ErrNoMoveFound", err)
			}
		})
	}
}
