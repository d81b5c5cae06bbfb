package httpapi

import (
	"encoding/json"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/archive"
	"github.com/freeeve/blunderboard/internal/cache"
	"github.com/freeeve/blunderboard/internal/eco"
	"github.com/freeeve/blunderboard/internal/eval"
)

// AnalyzeRequest asks for one position, given as a FEN or as moves from
// the starting position. FEN wins when both are present.
type AnalyzeRequest struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"`
}

type AnalyzeResponse struct {
	BestMove   *string `json:"best_move"`
	Evaluation int     `json:"evaluation"` // centipawns, positive favours White
}

// GameRequest asks for a whole game. Moves are played from FEN, or from
// the starting position when FEN is empty.
type GameRequest struct {
	FEN   string   `json:"fen"`
	Moves []string `json:"moves"`
}

type MoveRecord struct {
	MoveNumber       int     `json:"move_number"`
	MoveUCI          string  `json:"move_uci"`
	BestMoveUCI      *string `json:"best_move_uci"`
	EvaluationBefore int     `json:"evaluation_before"`
	EvaluationAfter  int     `json:"evaluation_after"`
	CentipawnLoss    int     `json:"centipawn_loss"`
}

type GameAnalysisResponse struct {
	Analysis           []MoveRecord `json:"analysis"`
	TotalCentipawnLoss int          `json:"total_centipawn_loss"`
	TopBlunders        []MoveRecord `json:"top_blunders"`
}

type BotMoveRequest struct {
	FEN string `json:"fen"`
	Elo int    `json:"elo"` // 0 or absent selects the default rating
}

type BotMoveResponse struct {
	Move string `json:"move"`
}

type AggregateRequest struct {
	Analyses [][]MoveRecord `json:"analyses"`
}

// BlunderCount encodes as a [move, count] pair.
type BlunderCount struct {
	Move  string
	Count int
}

func (b BlunderCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{b.Move, b.Count})
}

type AggregateResponse struct {
	AverageCentipawnLoss float64        `json:"average_centipawn_loss"`
	MostCommonBlunders   []BlunderCount `json:"most_common_blunders"`
	TotalGamesAnalyzed   int            `json:"total_games_analyzed"`
	TotalMovesAnalyzed   int            `json:"total_moves_analyzed"`
}

type GameResponse struct {
	Headers map[string]string `json:"headers"`
	Moves   []string          `json:"moves"`
	Opening *eco.Opening      `json:"opening,omitempty"`
}

type GamesResponse struct {
	Games []GameResponse `json:"games"`
}

type EngineStatusResponse struct {
	Engine eval.Status `json:"engine"`
	Cache  cache.Stats `json:"cache"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toMoveRecord(r analysis.MoveRecord) MoveRecord {
	return MoveRecord{
		MoveNumber:       r.MoveNumber,
		MoveUCI:          r.Move,
		BestMoveUCI:      optional(r.BestMove),
		EvaluationBefore: r.EvalBefore,
		EvaluationAfter:  r.EvalAfter,
		CentipawnLoss:    r.CentipawnLoss,
	}
}

func toMoveRecords(rs []analysis.MoveRecord) []MoveRecord {
	out := make([]MoveRecord, 0, len(rs))
	for _, r := range rs {
		out = append(out, toMoveRecord(r))
	}
	return out
}

func fromMoveRecords(rs []MoveRecord) []analysis.MoveRecord {
	out := make([]analysis.MoveRecord, 0, len(rs))
	for _, r := range rs {
		rec := analysis.MoveRecord{
			MoveNumber:    r.MoveNumber,
			Move:          r.MoveUCI,
			EvalBefore:    r.EvaluationBefore,
			EvalAfter:     r.EvaluationAfter,
			CentipawnLoss: r.CentipawnLoss,
		}
		if r.BestMoveUCI != nil {
			rec.BestMove = *r.BestMoveUCI
		}
		out = append(out, rec)
	}
	return out
}

func toGameAnalysisResponse(res *analysis.GameResult) GameAnalysisResponse {
	return GameAnalysisResponse{
		Analysis:           toMoveRecords(res.Moves),
		TotalCentipawnLoss: res.TotalLoss,
		TopBlunders:        toMoveRecords(res.TopBlunders),
	}
}

func toAggregateResponse(s *analysis.Summary) AggregateResponse {
	resp := AggregateResponse{
		AverageCentipawnLoss: s.AverageLoss,
		MostCommonBlunders:   make([]BlunderCount, 0, len(s.MostCommonBlunders)),
		TotalGamesAnalyzed:   s.Games,
		TotalMovesAnalyzed:   s.Moves,
	}
	for _, b := range s.MostCommonBlunders {
		resp.MostCommonBlunders = append(resp.MostCommonBlunders, BlunderCount{Move: b.Move, Count: b.Count})
	}
	return resp
}

func toGamesResponse(games []archive.Game) GamesResponse {
	resp := GamesResponse{Games: make([]GameResponse, 0, len(games))}
	for _, g := range games {
		moves := g.Moves
		if moves == nil {
			moves = []string{}
		}
		resp.Games = append(resp.Games, GameResponse{
			Headers: g.Headers,
			Moves:   moves,
			Opening: g.Opening,
		})
	}
	return resp
}
