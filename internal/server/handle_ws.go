package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/partyroom/internal/game"
	"github.com/playperu/partyroom/internal/play"
	"github.com/playperu/partyroom/internal/roomstore"
)

const (
	wsSessionLimit = 2 * time.Hour
	intentRate     = 5
	intentBurst    = 10
)

// Intent is an inbound WebSocket frame.
type Intent struct {
	Type         string    `json:"type"`
	DuelID       string    `json:"duelId,omitempty"`
	PlayerID     string    `json:"playerId,omitempty"`
	Answer       *int      `json:"answer,omitempty"`
	Emoji        string    `json:"emoji,omitempty"`
	TargetTeamID string    `json:"targetTeamId,omitempty"`
	Ops          []game.Op `json:"ops,omitempty"`
}

var errRateLimited = errors.New("too many messages")

// handleWS is the bidirectional sync channel: snapshots go out exactly as on
// the SSE stream, intents come in and are applied through the service.
func handleWS(logger *slog.Logger, svc *play.Service, store *roomstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pin := chi.URLParam(r, "pin")
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), wsSessionLimit)
		defer cancel()

		limiter := rate.NewLimiter(intentRate, intentBurst)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return store.Watch(gctx, pin, func(snap roomstore.Snapshot) error {
				return wsjson.Write(gctx, conn, snapshotFrame(snap, svc.Now()))
			})
		})
		g.Go(func() error {
			for {
				_, data, err := conn.Read(gctx)
				if err != nil {
					return err
				}
				if !limiter.Allow() {
					err = errRateLimited
				} else {
					err = dispatchIntent(gctx, svc, pin, data)
				}
				if err != nil {
					if werr := wsjson.Write(gctx, conn, intentError(logger, err)); werr != nil {
						return werr
					}
				}
			}
		})

		err = g.Wait()
		logger.Debug("websocket closed", "pin", pin, "error", err)
	}
}

func dispatchIntent(ctx context.Context, svc *play.Service, pin string, data []byte) error {
	var in Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("%w: malformed frame", game.ErrInvalidOp)
	}
	switch in.Type {
	case "answer_duel":
		if in.Answer == nil {
			return fmt.Errorf("%w: answer is required", game.ErrInvalidOp)
		}
		_, err := svc.AnswerDuel(ctx, pin, in.DuelID, in.PlayerID, *in.Answer)
		return err
	case "react":
		return svc.React(ctx, pin, in.PlayerID, in.Emoji)
	case "steal":
		return svc.Steal(ctx, pin, in.PlayerID, in.TargetTeamID)
	case "ops":
		_, err := svc.Apply(ctx, pin, in.Ops)
		return err
	}
	return fmt.Errorf("%w: unknown intent %q", game.ErrInvalidOp, in.Type)
}

func intentError(logger *slog.Logger, err error) Frame {
	msg := err.Error()
	if !errors.Is(err, errRateLimited) && errorStatus(err) == http.StatusInternalServerError {
		logger.Error("websocket intent failed", "error", err)
		msg = "internal error"
	}
	return Frame{Type: frameError, Error: msg}
}
