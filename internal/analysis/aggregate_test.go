package analysis

import (
	"errors"
	"testing"
)

func TestAggregateNoData(t *testing.T) {
	if _, err := Aggregate(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestAggregateBelowThreshold(t *testing.T) {
	s, err := Aggregate([][]MoveRecord{{
		{Move: "e2e4", CentipawnLoss: 10},
		{Move: "e7e5", CentipawnLoss: -20},
		{Move: "g1f3", CentipawnLoss: 99},
	}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(s.MostCommonBlunders) != 0 {
		t.Errorf("blunders = %v, want none", s.MostCommonBlunders)
	}
	if s.AverageLoss != 89.0/3.0 {
		t.Errorf("AverageLoss = %v, want %v", s.AverageLoss, 89.0/3.0)
	}
	if s.Games != 1 || s.Moves != 3 {
		t.Errorf("Games = %d, Moves = %d", s.Games, s.Moves)
	}
}

func TestAggregateEmptyGames(t *testing.T) {
	s, err := Aggregate([][]MoveRecord{{}, {}})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if s.AverageLoss != 0 || s.Moves != 0 || s.Games != 2 {
		t.Errorf("summary = %+v", s)
	}
}

func TestAggregateMostCommon(t *testing.T) {
	games := [][]MoveRecord{
		{
			{Move: "a2a3", CentipawnLoss: 150},
			{Move: "b2b3", CentipawnLoss: 100},
			{Move: "c2c3", CentipawnLoss: 300},
		},
		{
			{Move: "c2c3", CentipawnLoss: 120},
			{Move: "d2d3", CentipawnLoss: 500},
			{Move: "e2e3", CentipawnLoss: 101},
			{Move: "f2f3", CentipawnLoss: 400},
			{Move: "a2a3", CentipawnLoss: 5},
		},
	}
	s, err := Aggregate(games)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []BlunderCount{
		{"c2c3", 2},
		{"a2a3", 1},
		{"b2b3", 1},
		{"d2d3", 1},
		{"e2e3", 1},
	}
	if len(s.MostCommonBlunders) != len(want) {
		t.Fatalf("blunders = %v", s.MostCommonBlunders)
	}
	for i := range want {
		if s.MostCommonBlunders[i] != want[i] {
			t.Errorf("blunders[%d] = %v, want %v", i, s.MostCommonBlunders[i], want[i])
		}
	}
	if s.Moves != 8 || s.Games != 2 {
		t.Errorf("Moves = %d, Games = %d", s.Moves, s.Games)
	}
}
