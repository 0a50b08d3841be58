package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
)

// AnnounceRequest is the request body for POST /api/host/rooms/{pin}/announce.
type AnnounceRequest struct {
	Message string `json:"message"`
}

// RandomEventRequest optionally names the catalog event to fire. An empty
// kind draws one at random.
type RandomEventRequest struct {
	Kind game.EventKind `json:"kind,omitempty"`
}

func handleSummary(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(r.Context(), chi.URLParam(r, "pin"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func handleAnnounce(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnnounceRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := svc.Announce(r.Context(), chi.URLParam(r, "pin"), req.Message); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
	}
}

func handleRandomEvent(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RandomEventRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		pin := chi.URLParam(r, "pin")

		var (
			e   game.CatalogEvent
			err error
		)
		if req.Kind == "" {
			e, err = svc.TriggerRandomEvent(r.Context(), pin)
		} else {
			e, err = svc.TriggerEvent(r.Context(), pin, req.Kind)
		}
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleTriggerDuel(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.TriggerDuel(r.Context(), chi.URLParam(r, "pin"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func handleStartMissions(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.StartMissions(r.Context(), chi.URLParam(r, "pin")); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Status: "ok"})
	}
}
