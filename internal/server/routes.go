package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/partyroom/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	svc, store, host := deps.Service, deps.Store, deps.Host

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Party Room API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())

	// Host console auth.
	r.Post("/api/host/login", handleHostLogin(host))
	r.Post("/api/host/logout", handleHostLogout(host))
	r.Get("/api/host/me", handleHostMe(host))

	r.Route("/api/host/rooms/{pin}", func(r chi.Router) {
		r.Use(pinMiddleware)
		r.Use(hostAuthMiddleware(host))
		r.Get("/", handleSummary(logger, svc))
		r.Post("/announce", handleAnnounce(logger, svc))
		r.Post("/random-event", handleRandomEvent(logger, svc))
		r.Post("/duel", handleTriggerDuel(logger, svc))
		r.Post("/missions", handleStartMissions(logger, svc))
	})

	r.With(hostAuthMiddleware(host)).Post("/api/rooms", handleCreateRoom(logger, svc))

	r.Route("/api/rooms/{pin}", func(r chi.Router) {
		r.Use(pinMiddleware)
		r.Get("/", handleGetRoom(logger, svc))
		r.Post("/join", handleJoin(logger, svc))
		r.With(hostAuthMiddleware(host)).Post("/start", handleStart(logger, svc))
		r.Post("/ops", handleOps(logger, svc))
		r.Get("/events", handleEvents(logger, svc, store))
		r.Get("/ws", handleWS(logger, svc, store))
		r.Get("/qr", handleQR())

		r.Route("/players/{playerID}", func(r chi.Router) {
			r.Post("/quiz", handleStartQuiz(logger, svc))
			r.Post("/quiz/{quizID}/answer", handleAnswerQuiz(logger, svc))
			r.Post("/steal", handleSteal(logger, svc))
			r.Post("/reactions", handleReact(logger, svc))
		})
		r.Post("/duels/{duelID}/answer", handleAnswerDuel(logger, svc))
	})

	if spaDir := deps.SPADir; spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
