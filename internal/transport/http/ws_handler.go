package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/session"
)

// WSHandler hosts quiz sessions and the live leaderboard over websockets.
type WSHandler struct {
	engine      *session.Engine
	sessions    app.SessionTracker
	leaderboard *app.LeaderboardService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewWSHandler(engine *session.Engine, sessions app.SessionTracker, leaderboard *app.LeaderboardService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		engine:      engine,
		sessions:    sessions,
		leaderboard: leaderboard,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

const writeWait = 5 * time.Second

// ServeQuiz runs one session for the participant in the path. Closing the socket
// before submission forces completion with the unload trigger.
func (h *WSHandler) ServeQuiz(w http.ResponseWriter, r *http.Request) {
	participantID := mux.Vars(r)["participantId"]

	acquired, err := h.sessions.Acquire(r.Context(), participantID)
	if err != nil {
		writeError(w, h.logger, "acquire session", err)
		return
	}
	if !acquired {
		writeError(w, h.logger, "acquire session", domain.ErrSessionActive)
		return
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := h.sessions.Release(releaseCtx, participantID); err != nil {
			h.logger.Warn("session release failed", "participant", participantID, "err", err)
		}
	}()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage, 32)
	writerDone := make(chan struct{})
	go h.writePump(conn, send, writerDone)

	answers := make(chan string)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(answers)
		// a read error means the participant left
		defer cancel()
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				return
			}
			if inbound.Type != "answer" {
				continue
			}
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				continue
			}
			select {
			case answers <- payload.Option:
			case <-ctx.Done():
				return
			}
		}
	}()

	notify := func(ev session.Event) {
		send <- outboundMessage{Type: string(ev.Kind), Payload: ev}
	}
	out, err := h.engine.Run(ctx, participantID, answers, notify)
	switch {
	case errors.Is(err, domain.ErrAlreadyCompleted):
		h.logger.Info("session blocked", "participant", participantID)
	case err != nil:
		h.logger.Warn("session ended with error", "participant", participantID, "state", out.State.String(), "err", err)
		if out.State == session.StateLoading {
			_, msg := classify(err)
			send <- outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
		}
	}

	cancel()
	close(send)
	<-writerDone
	conn.Close()
	<-readerDone
}

// ServeResults streams leaderboard snapshots until the client disconnects.
func (h *WSHandler) ServeResults(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe, err := h.leaderboard.Subscribe(r.Context())
	if err != nil {
		_, msg := classify(err)
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: msg}})
		if status, _ := classify(err); status >= http.StatusInternalServerError {
			h.logger.Error("leaderboard subscribe failed", "err", err)
		}
		return
	}
	defer unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: lb}); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// writePump is the only writer on conn. After a write failure it keeps draining send so
// producers never block, and it closes the socket once send is closed.
func (h *WSHandler) writePump(conn *websocket.Conn, send <-chan outboundMessage, done chan<- struct{}) {
	defer close(done)
	failed := false
	for msg := range send {
		if failed {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("ws write failed", "err", err)
			failed = true
		}
	}
	if !failed {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"),
			time.Now().Add(writeWait))
	}
}
