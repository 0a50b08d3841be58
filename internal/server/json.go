package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
	"github.com/playperu/partyroom/internal/roomstore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps a domain error to its HTTP status. Unrecognised errors
// are internal.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, roomstore.ErrNotFound),
		errors.Is(err, game.ErrUnknownPlayer),
		errors.Is(err, game.ErrUnknownTeam),
		errors.Is(err, game.ErrUnknownDuel),
		errors.Is(err, play.ErrUnknownQuiz):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrNotEnoughTeams),
		errors.Is(err, roomstore.ErrExists):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidOp):
		return http.StatusBadRequest
	case errors.Is(err, play.ErrCooldown):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
