package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/session"
)

// Deps carries the services the HTTP layer is wired to.
type Deps struct {
	Questions   *app.QuestionSource
	Registry    *app.Registry
	Recorder    *app.CompletionRecorder
	Leaderboard *app.LeaderboardService
	Engine      *session.Engine
	Sessions    app.SessionTracker
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter mounts the REST and websocket endpoints.
func NewRouter(d Deps) http.Handler {
	api := NewAPIHandler(d.Questions, d.Registry, d.Recorder, d.Leaderboard, d.Logger)
	ws := NewWSHandler(d.Engine, d.Sessions, d.Leaderboard, d.Logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/questions", api.Questions).Methods(http.MethodGet)
	r.HandleFunc("/register", api.Register).Methods(http.MethodPost)
	r.HandleFunc("/user/{participantId}", api.Status).Methods(http.MethodGet)
	r.HandleFunc("/quiz/{participantId}/complete", api.Complete).Methods(http.MethodPost)
	r.HandleFunc("/results", api.Results).Methods(http.MethodGet)

	r.HandleFunc("/ws/quiz/{participantId}", ws.ServeQuiz).Methods(http.MethodGet)
	r.HandleFunc("/ws/results", ws.ServeResults).Methods(http.MethodGet)

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(r)
}
