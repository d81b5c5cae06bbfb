package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/archive"
	"github.com/freeeve/blunderboard/internal/board"
	"github.com/freeeve/blunderboard/internal/eval"
)

// errorStatus maps a domain error to an HTTP status and the message shown
// to clients. Input problems are 400, everything else is 500.
func errorStatus(err error) (int, string) {
	var ime *board.IllegalMoveError
	switch {
	case errors.As(err, &ime):
		return http.StatusBadRequest, fmt.Sprintf("Illegal move %s at position %d", ime.Move, ime.Index)
	case errors.Is(err, board.ErrInvalidPosition):
		return http.StatusBadRequest, "Invalid FEN string."
	case errors.Is(err, analysis.ErrNoMovesProvided):
		return http.StatusBadRequest, "No moves provided for analysis."
	case errors.Is(err, analysis.ErrNoData):
		return http.StatusBadRequest, "No analysis data provided."
	case errors.Is(err, analysis.ErrGameAlreadyOver):
		return http.StatusBadRequest, "Game is already over."
	case errors.Is(err, analysis.ErrNoMoveFound):
		return http.StatusInternalServerError, "Engine could not find a move."
	case errors.Is(err, eval.ErrEngineUnavailable):
		return http.StatusInternalServerError, "Chess engine not loaded."
	case errors.Is(err, eval.ErrEngineTimeout),
		errors.Is(err, eval.ErrEngineFailed),
		errors.Is(err, eval.ErrMalformedScore):
		return http.StatusInternalServerError, "Error analyzing position: " + err.Error()
	case errors.Is(err, archive.ErrUpstreamFetch):
		return http.StatusInternalServerError, "Error fetching data from Chess.com: " + err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled."
	default:
		return http.StatusInternalServerError, "An unexpected error occurred: " + err.Error()
	}
}

// writeError logs err at a level matching its class and writes the mapped
// JSON error.
func writeError(log zerolog.Logger, w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).Int("status", status).Msg("request failed")
	writeJSONError(w, status, msg)
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Don't call http.Error after setting headers - it causes "superfluous WriteHeader"
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSONStatus(w, status, map[string]string{"error": msg})
}
