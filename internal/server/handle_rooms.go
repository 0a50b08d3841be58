package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
)

// CreateRoomResponse is the response for POST /api/rooms.
type CreateRoomResponse struct {
	Pin string `json:"pin"`
}

// RoomResponse is a room snapshot with the fields clients derive from it.
type RoomResponse struct {
	Room game.Room `json:"room"`
	View game.View `json:"view"`
}

// JoinRequest is the request body for POST /api/rooms/{pin}/join.
type JoinRequest struct {
	Name string `json:"name"`
}

// OpsRequest is the request body for POST /api/rooms/{pin}/ops.
type OpsRequest struct {
	Ops []game.Op `json:"ops"`
}

func handleCreateRoom(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin, err := svc.CreateRoom(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, CreateRoomResponse{Pin: pin})
	}
}

func handleGetRoom(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, view, err := svc.Snapshot(r.Context(), chi.URLParam(r, "pin"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Room: room, View: view})
	}
}

func handleJoin(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, err := svc.JoinRoom(r.Context(), chi.URLParam(r, "pin"), req.Name)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func handleStart(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := svc.StartGame(r.Context(), chi.URLParam(r, "pin"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Room: room, View: game.Derive(room, svc.Now())})
	}
}

func handleOps(logger *slog.Logger, svc *play.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		room, err := svc.Apply(r.Context(), chi.URLParam(r, "pin"), req.Ops)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Room: room, View: game.Derive(room, svc.Now())})
	}
}

const qrSize = 320

// handleQR renders the join URL for a room as a PNG. The URL is the room
// page on the host the request came in on.
func handleQR() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(joinURL(r, chi.URLParam(r, "pin")), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}

// joinURL is the player page for pin on the host the request came in on. A
// proxy's X-Forwarded-Proto is honored only for http and https.
func joinURL(r *http.Request, pin string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch proto := r.Header.Get("X-Forwarded-Proto"); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + r.Host + "/join/" + pin
}
