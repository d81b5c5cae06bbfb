package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
	"github.com/freeeve/blunderboard/internal/eval/evaltest"
)

func TestReplayOpening(t *testing.T) {
	fake := evaltest.New()
	a := newAnalyzer(t, fake, 0)

	var streamed []MoveRecord
	res, err := a.Replay(context.Background(), nil, []string{"e2e4", "e7e5", "g1f3"}, func(r MoveRecord) {
		streamed = append(streamed, r)
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(res.Moves) != 3 || len(streamed) != 3 {
		t.Fatalf("records = %d, streamed = %d, want 3", len(res.Moves), len(streamed))
	}
	for i, rec := range res.Moves {
		if rec.MoveNumber != i+1 {
			t.Errorf("record %d: MoveNumber = %d", i, rec.MoveNumber)
		}
		if rec.BestMove == "" {
			t.Errorf("record %d: no best move", i)
		}
	}
	if res.TotalLoss < 0 {
		t.Errorf("TotalLoss = %d, want >= 0", res.TotalLoss)
	}
	// one search per position: start plus one after each move
	if n := len(fake.Calls()); n != 4 {
		t.Errorf("engine calls = %d, want 4", n)
	}
}

func TestReplayLossPerspective(t *testing.T) {
	fake := evaltest.New()
	// scores are relative to the side to move
	fake.Set(board.StartFEN, &eval.SearchResult{BestMove: "e2e4", Score: eval.CP(30)})
	fake.Set(fenAfter(t, "e2e4"), &eval.SearchResult{BestMove: "c7c5", Score: eval.CP(-40)})
	fake.Set(fenAfter(t, "e2e4", "e7e5"), &eval.SearchResult{BestMove: "g1f3", Score: eval.CP(25)})
	fake.Set(fenAfter(t, "e2e4", "e7e5", "g1f3"), &eval.SearchResult{BestMove: "b8c6", Score: eval.CP(250)})
	a := newAnalyzer(t, fake, 0)

	res, err := a.Replay(context.Background(), board.StartingPosition(), []string{"e2e4", "e7e5", "g1f3"}, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	want := []MoveRecord{
		{MoveNumber: 1, Move: "e2e4", BestMove: "e2e4", EvalBefore: 30, EvalAfter: 40, CentipawnLoss: -10},
		{MoveNumber: 2, Move: "e7e5", BestMove: "c7c5", EvalBefore: 40, EvalAfter: 25, CentipawnLoss: -15},
		{MoveNumber: 3, Move: "g1f3", BestMove: "g1f3", EvalBefore: 25, EvalAfter: -250, CentipawnLoss: 275},
	}
	for i := range want {
		if res.Moves[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, res.Moves[i], want[i])
		}
	}
	if res.TotalLoss != 300 {
		t.Errorf("TotalLoss = %d, want 300", res.TotalLoss)
	}
	wantTop := []string{"g1f3", "e7e5", "e2e4"}
	if len(res.TopBlunders) != len(wantTop) {
		t.Fatalf("TopBlunders = %+v", res.TopBlunders)
	}
	for i, m := range wantTop {
		if res.TopBlunders[i].Move != m {
			t.Errorf("TopBlunders[%d] = %s, want %s", i, res.TopBlunders[i].Move, m)
		}
	}
}

func TestReplayIllegalMoveNoEngineWork(t *testing.T) {
	fake := evaltest.New()
	a := newAnalyzer(t, fake, 0)

	calls := 0
	res, err := a.Replay(context.Background(), nil, []string{"e2e4", "e2e4", "g1f3", "b8c6", "f1c4"}, func(MoveRecord) { calls++ })
	var ime *board.IllegalMoveError
	if !errors.As(err, &ime) {
		t.Fatalf("err = %v, want *board.IllegalMoveError", err)
	}
	if ime.Index != 2 || ime.Move != "e2e4" {
		t.Errorf("IllegalMoveError = %+v, want index 2 move e2e4", ime)
	}
	if res != nil || calls != 0 {
		t.Errorf("partial result returned")
	}
	if n := len(fake.Calls()); n != 0 {
		t.Errorf("engine calls = %d, want 0", n)
	}
}

func TestReplayMalformedMove(t *testing.T) {
	a := newAnalyzer(t, evaltest.New(), 0)
	_, err := a.Replay(context.Background(), nil, []string{"e2e4", "zz"}, nil)
	var ime *board.IllegalMoveError
	if !errors.As(err, &ime) || ime.Index != 2 {
		t.Fatalf("err = %v, want IllegalMoveError at 2", err)
	}
}

func TestReplayNoMoves(t *testing.T) {
	a := newAnalyzer(t, evaltest.New(), 0)
	if _, err := a.Replay(context.Background(), nil, nil, nil); !errors.Is(err, ErrNoMovesProvided) {
		t.Errorf("err = %v, want ErrNoMovesProvided", err)
	}
}

func TestReplayCancelled(t *testing.T) {
	a := newAnalyzer(t, evaltest.New(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Replay(ctx, nil, []string{"e2e4"}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReplayEndsInMate(t *testing.T) {
	a := newAnalyzer(t, evaltest.New(), 0)
	res, err := a.Replay(context.Background(), nil, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	last := res.Moves[len(res.Moves)-1]
	if last.EvalAfter != -eval.MateScore {
		t.Errorf("EvalAfter = %d, want %d", last.EvalAfter, -eval.MateScore)
	}
	if last.BestMove == "" {
		t.Errorf("position before mate should have a best move")
	}
}

func TestTopBlundersStable(t *testing.T) {
	recs := []MoveRecord{
		{MoveNumber: 1, CentipawnLoss: 50},
		{MoveNumber: 2, CentipawnLoss: -200},
		{MoveNumber: 3, CentipawnLoss: 200},
		{MoveNumber: 4, CentipawnLoss: 10},
		{MoveNumber: 5, CentipawnLoss: 50},
	}
	got := topBlunders(recs, TopBlunderCount)
	want := []int{2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, n := range want {
		if got[i].MoveNumber != n {
			t.Errorf("got[%d] = move %d, want %d", i, got[i].MoveNumber, n)
		}
	}
	if recs[0].MoveNumber != 1 || recs[1].MoveNumber != 2 {
		t.Errorf("input reordered")
	}
}
