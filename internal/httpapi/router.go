// Package httpapi exposes analysis, bot play and archive lookup over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/freeeve/blunderboard/internal/analysis"
	"github.com/freeeve/blunderboard/internal/archive"
	"github.com/freeeve/blunderboard/internal/eval"
)

// EngineStatus reports on the engine session.
type EngineStatus interface {
	GetStatus() eval.Status
}

// GameSource lists a player's games.
type GameSource interface {
	Games(ctx context.Context, username string) ([]archive.Game, error)
}

// Options wires the router's dependencies.
type Options struct {
	Analyzer       *analysis.Analyzer
	Engine         EngineStatus
	Games          GameSource // optional; /api/games answers 500 without it
	AllowedOrigins []string   // CORS origins, "*" for any
	MaxBodyBytes   int64      // request body limit (default 1MB)
}

// Handler serves the API.
type Handler struct {
	analyzer *analysis.Analyzer
	engine   EngineStatus
	games    GameSource
	cors     *corsPolicy
	maxBody  int64
	log      zerolog.Logger
}

// NewRouter creates the HTTP handler for the API.
func NewRouter(log zerolog.Logger, opts Options) http.Handler {
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	h := &Handler{
		analyzer: opts.Analyzer,
		engine:   opts.Engine,
		games:    opts.Games,
		cors:     newCORSPolicy(opts.AllowedOrigins),
		maxBody:  opts.MaxBodyBytes,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.ready)

	// WebSocket upgrades need the raw connection, so no compression here.
	r.Get("/api/analyze_game/stream", h.analyzeGameStream)

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

		r.Get("/api/hello", h.hello)
		r.Get("/api/games/{username}", h.playerGames)
		r.Post("/api/analyze", h.analyze)
		r.Post("/api/analyze_game", h.analyzeGame)
		r.Post("/api/bot-move", h.botMove)
		r.Post("/api/aggregate_analysis", h.aggregate)
		r.Get("/api/engine/status", h.engineStatus)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ready fails once the engine session has been shut down.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.engine != nil && h.engine.GetStatus().Closed {
		http.Error(w, "engine session closed", http.StatusServiceUnavailable)
		return
	}
	h.health(w, r)
}

func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"message": "Hello from the backend API!"})
}

func (h *Handler) engineStatus(w http.ResponseWriter, r *http.Request) {
	var resp EngineStatusResponse
	if h.engine != nil {
		resp.Engine = h.engine.GetStatus()
	}
	resp.Cache = h.analyzer.CacheStats()
	writeJSON(w, resp)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}
