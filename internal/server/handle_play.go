package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/partyroom/internal/play"
)

// AnswerRequest is the request body for a quiz answer.
type AnswerRequest struct {
	Answer *int `json:"answer"`
}

// DuelAnswerRequest is the request body for POST /api/rooms/{pin}/duels/{duelID}/answer.
type DuelAnswerRequest struct {
	PlayerID string `json:"playerId"`
	Answer   *int   `json:"answer"`
}

// StealRequest is the request body for POST .../steal.
type StealRequest struct {
	TargetTeamID string `json:"targetTeamId"`
}

// ReactionRequest is the request body for POST .../reactions.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

type okResponse struct {
	Status string `json:"status"`
}

func handleStartQuiz(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quiz, err := svc.StartQuiz(r.Context(), chi.URLParam(r, "pin"), chi.URLParam(r, "playerID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, quiz)
	}
}

func handleAnswerQuiz(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil || req.Answer == nil {
			writeError(w, http.StatusBadRequest, "answer is required")
			return
		}
		res, err := svc.AnswerQuiz(r.Context(),
			chi.URLParam(r, "pin"), chi.URLParam(r, "playerID"), chi.URLParam(r, "quizID"), *req.Answer)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleAnswerDuel(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DuelAnswerRequest
		if err := readJSON(r, &req); err != nil || req.Answer == nil || req.PlayerID == "" {
			writeError(w, http.StatusBadRequest, "playerId and answer are required")
			return
		}
		out, err := svc.AnswerDuel(r.Context(), chi.URLParam(r, "pin"), chi.URLParam(r, "duelID"), req.PlayerID, *req.Answer)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleSteal(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StealRequest
		if err := readJSON(r, &req); err != nil || req.TargetTeamID == "" {
			writeError(w, http.StatusBadRequest, "targetTeamId is required")
			return
		}
		if err := svc.Steal(r.Context(), chi.URLParam(r, "pin"), chi.URLParam(r, "playerID"), req.TargetTeamID); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
	}
}

func handleReact(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReactionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := svc.React(r.Context(), chi.URLParam(r, "pin"), chi.URLParam(r, "playerID"), req.Emoji); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
	}
}
