package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// APIHandler serves the request/response endpoints.
type APIHandler struct {
	questions   *app.QuestionSource
	registry    *app.Registry
	recorder    *app.CompletionRecorder
	leaderboard *app.LeaderboardService
	logger      *slog.Logger
}

func NewAPIHandler(questions *app.QuestionSource, registry *app.Registry, recorder *app.CompletionRecorder, leaderboard *app.LeaderboardService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		questions:   questions,
		registry:    registry,
		recorder:    recorder,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

type questionsResponse struct {
	Questions []domain.PublicQuestion `json:"questions"`
}

type registerResponse struct {
	ParticipantID string `json:"participantId"`
}

type completeResponse struct {
	Success         bool `json:"success"`
	AlreadyRecorded bool `json:"alreadyRecorded"`
}

// Questions returns a fresh random subset without answer keys.
func (h *APIHandler) Questions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.questions.SelectPublic(r.Context())
	if err != nil {
		writeError(w, h.logger, "questions", err)
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{Questions: qs})
}

func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, "register", domain.Invalid("malformed request body"))
		return
	}
	p, err := h.registry.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	h.logger.Info("participant registered", "participant", p.ID)
	writeJSON(w, http.StatusCreated, registerResponse{ParticipantID: p.ID})
}

// Status reports only whether the participant has completed.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.registry.Status(r.Context(), mux.Vars(r)["participantId"])
	if err != nil {
		writeError(w, h.logger, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Complete records a finished session. A repeated submission succeeds with alreadyRecorded set.
func (h *APIHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req domain.Completion
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, "complete", domain.Invalid("malformed request body"))
		return
	}
	out, err := h.recorder.Complete(r.Context(), mux.Vars(r)["participantId"], req)
	if err != nil {
		writeError(w, h.logger, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Success: true, AlreadyRecorded: out.AlreadyRecorded})
}

func (h *APIHandler) Results(w http.ResponseWriter, r *http.Request) {
	lb, err := h.leaderboard.Compute(r.Context())
	if err != nil {
		writeError(w, h.logger, "results", err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
