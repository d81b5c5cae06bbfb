package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/freeeve/blunderboard/internal/analysis"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// streamMessage is one frame of the game analysis stream.
type streamMessage struct {
	Type   string `json:"type"` // move, result or error
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	*MoveRecord
	*GameAnalysisResponse
}

// analyzeGameStream upgrades to a WebSocket, reads one GameRequest and
// sends a "move" frame per analysed move followed by a "result" frame.
// Failures are reported as an "error" frame before the close.
func (h *Handler) analyzeGameStream(w http.ResponseWriter, r *http.Request) {
	log := reqLogger(r, h.log)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || h.cors.allows(origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxBody)

	send := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(m)
	}
	fail := func(status int, msg string) {
		_ = send(streamMessage{Type: "error", Status: status, Error: msg})
		closeStream(conn, websocket.CloseNormalClosure, "")
	}

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Msg("stream closed before request")
		return
	}
	var req GameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		fail(http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if len(req.Moves) == 0 {
		fail(errorStatus(analysis.ErrNoMovesProvided))
		return
	}
	start, err := gameStart(req)
	if err != nil {
		fail(errorStatus(err))
		return
	}

	// A client that goes away cancels the replay.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	_ = conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var sendErr error
	res, err := h.analyzer.Replay(ctx, start, req.Moves, func(rec analysis.MoveRecord) {
		if sendErr != nil {
			return
		}
		mr := toMoveRecord(rec)
		if sendErr = send(streamMessage{Type: "move", MoveRecord: &mr}); sendErr != nil {
			cancel()
		}
	})
	if sendErr != nil {
		log.Debug().Err(sendErr).Msg("stream client gone")
		return
	}
	if err != nil {
		status, msg := errorStatus(err)
		log.Warn().Err(err).Int("status", status).Msg("stream analysis failed")
		fail(status, msg)
		return
	}

	resp := toGameAnalysisResponse(res)
	if err := send(streamMessage{Type: "result", GameAnalysisResponse: &resp}); err != nil {
		log.Debug().Err(err).Msg("stream client gone")
		return
	}
	closeStream(conn, websocket.CloseNormalClosure, "")
}

func closeStream(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
