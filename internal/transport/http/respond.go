package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"live-quiz-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to status codes. Storage and unknown failures are logged
// and reported with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "op", op, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDuplicateParticipant):
		return http.StatusBadRequest, domain.ErrDuplicateParticipant.Error()
	case errors.Is(err, domain.ErrInvalidParticipantID):
		return http.StatusBadRequest, domain.ErrInvalidParticipantID.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrParticipantNotFound):
		return http.StatusNotFound, domain.ErrParticipantNotFound.Error()
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict, domain.ErrSessionActive.Error()
	case errors.Is(err, domain.ErrEmptyPool):
		return http.StatusServiceUnavailable, "no questions available"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
