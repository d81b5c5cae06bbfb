package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/board"
)

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}

	var pos *board.Position
	switch {
	case req.FEN != "":
		p, err := board.ParseFEN(req.FEN)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid FEN string.")
			return
		}
		pos = p
	case len(req.Moves) > 0:
		p, err := board.FromMoves(req.Moves)
		if err != nil {
			var ime *board.IllegalMoveError
			if errors.As(err, &ime) {
				writeJSONError(w, http.StatusBadRequest, "Invalid move UCI: "+ime.Move)
				return
			}
			writeError(reqLogger(r, h.log), w, err)
			return
		}
		pos = p
	default:
		writeJSONError(w, http.StatusBadRequest, "No FEN or moves provided for analysis.")
		return
	}

	res, err := h.analyzer.Analyze(r.Context(), pos, h.analyzer.AnalyzeTime())
	if err != nil {
		writeError(reqLogger(r, h.log), w, err)
		return
	}
	writeJSON(w, AnalyzeResponse{BestMove: optional(res.BestMove), Evaluation: res.Score})
}

// gameStart returns the position a game request starts from.
func gameStart(req GameRequest) (*board.Position, error) {
	if req.FEN == "" {
		return board.StartingPosition(), nil
	}
	return board.ParseFEN(req.FEN)
}

func (h *Handler) analyzeGame(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if !h.decode(w, r, &req) {
		return
	}
	log := reqLogger(r, h.log)

	if len(req.Moves) == 0 {
		writeError(log, w, analysis.ErrNoMovesProvided)
		return
	}
	start, err := gameStart(req)
	if err != nil {
		writeError(log, w, err)
		return
	}

	res, err := h.analyzer.Replay(r.Context(), start, req.Moves, nil)
	if err != nil {
		writeError(log, w, err)
		return
	}
	writeJSON(w, toGameAnalysisResponse(res))
}

func (h *Handler) botMove(w http.ResponseWriter, r *http.Request) {
	var req BotMoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	log := reqLogger(r, h.log)

	if req.FEN == "" {
		writeJSONError(w, http.StatusBadRequest, "FEN string is required.")
		return
	}
	pos, err := board.ParseFEN(req.FEN)
	if err != nil {
		writeError(log, w, err)
		return
	}

	mv, err := h.analyzer.PickMove(r.Context(), pos, req.Elo)
	if err != nil {
		writeError(log, w, err)
		return
	}
	writeJSON(w, BotMoveResponse{Move: mv})
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if !h.decode(w, r, &req) {
		return
	}

	games := make([][]analysis.MoveRecord, 0, len(req.Analyses))
	for _, g := range req.Analyses {
		games = append(games, fromMoveRecords(g))
	}

	s, err := analysis.Aggregate(games)
	if err != nil {
		writeError(reqLogger(r, h.log), w, err)
		return
	}
	writeJSON(w, toAggregateResponse(s))
}

func (h *Handler) playerGames(w http.ResponseWriter, r *http.Request) {
	log := reqLogger(r, h.log)
	if h.games == nil {
		writeJSONError(w, http.StatusInternalServerError, "Game archive lookup is not configured.")
		return
	}

	username := chi.URLParam(r, "username")
	games, err := h.games.Games(r.Context(), username)
	if err != nil {
		writeError(log, w, err)
		return
	}
	writeJSON(w, toGamesResponse(games))
}
