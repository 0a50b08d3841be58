package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/partyroom/internal/play"
	"github.com/playperu/partyroom/internal/roomstore"
)

const ssePingInterval = 30 * time.Second

// handleEvents streams room snapshots as Server-Sent Events. Slow readers
// skip intermediate snapshots but always get the latest one.
func handleEvents(logger *slog.Logger, svc *play.Service, store *roomstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin := chi.URLParam(r, "pin")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}
		sub, err := store.Subscribe(r.Context(), pin)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(ssePingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case snap := <-sub.C:
				frame := snapshotFrame(snap, svc.Now())
				data, err := json.Marshal(frame)
				if err != nil {
					logger.Error("encoding snapshot", "pin", pin, "error", err)
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
